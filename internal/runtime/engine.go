package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/omnihelp/switchboard/internal/logging"
	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/observability"
	"github.com/omnihelp/switchboard/pkg/ports"
)

// Default loop bounds. Both counters reset only at turn start.
const (
	DefaultClarifyBound = 2
	DefaultRetryBound   = 2
)

// Engine is the cyclic state-machine driver. It owns one TurnState per
// invocation and selects transitions until a terminal state is reached.
// Components never call each other directly; all data flows through the
// turn state under the engine's control.
type Engine struct {
	classifier ports.Classifier
	backends   map[domain.Route]ports.Backend
	synth      ports.Synthesizer
	elicitor   ports.Elicitor

	gate         Gate
	clarifyBound int
	retryBound   int
	turnTimeout  time.Duration
	nodeTimeout  time.Duration

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets a structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) { e.hooks = hooks }
}

// WithGate replaces the default confidence gate.
func WithGate(g Gate) EngineOption {
	return func(e *Engine) { e.gate = g }
}

// WithElicitor enables automatic clarification: instead of suspending the
// turn, the engine asks the elicitor and re-enters classification.
func WithElicitor(el ports.Elicitor) EngineOption {
	return func(e *Engine) { e.elicitor = el }
}

// WithClarifyBound sets the maximum clarification passes per turn.
func WithClarifyBound(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.clarifyBound = n
		}
	}
}

// WithRetryBound sets the maximum backend (and classifier) retries per turn.
func WithRetryBound(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.retryBound = n
		}
	}
}

// WithTurnTimeout bounds the whole state machine for one turn. Zero disables.
func WithTurnTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.turnTimeout = d }
}

// WithNodeTimeout bounds each external call independently of the turn bound.
// Zero disables.
func WithNodeTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.nodeTimeout = d }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine from a classifier, a route→backend table, and a
// synthesizer. The backend table is the only dispatch mechanism: there is no
// intent branching outside the gate.
func NewEngine(classifier ports.Classifier, backends map[domain.Route]ports.Backend, synth ports.Synthesizer, opts ...EngineOption) *Engine {
	e := &Engine{
		classifier:   classifier,
		backends:     backends,
		synth:        synth,
		gate:         NewGate(DefaultThreshold, domain.RoutePolicy),
		clarifyBound: DefaultClarifyBound,
		retryBound:   DefaultRetryBound,
		logger:       logging.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// maxTransitions is the hard ceiling on transitions per turn. Any input
// sequence terminates within clarification and retry bounds plus a constant;
// this guard converts a violation into a fallback instead of a hang.
func (e *Engine) maxTransitions() int {
	return e.clarifyBound*4 + e.retryBound*4 + 16
}

// ceilingExceeded reports whether the turn has outrun the transition ceiling.
// Once the machine is in fallback the guard stands down so the fallback node
// can terminate the turn.
func (e *Engine) ceilingExceeded(s *domain.TurnState, baseline int) bool {
	return len(s.Trail)-baseline > e.maxTransitions() && s.Phase != domain.PhaseFallback
}

// RunTurn drives the state machine from the state's current phase until the
// turn terminates or suspends for a human reply. The input state is not
// mutated; the returned state is the new version.
func (e *Engine) RunTurn(ctx context.Context, state *domain.TurnState) (*domain.TurnState, error) {
	if state == nil {
		return nil, errors.New("nil turn state")
	}
	s := state.Clone()

	if e.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.turnTimeout)
		defer cancel()
	}

	transitions := len(s.Trail)
	for !s.Terminal() {
		// A turn-level timeout aborts the in-flight node and forces fallback.
		if ctx.Err() != nil && s.Phase != domain.PhaseFallback {
			s.BackendErr = (&domain.TurnError{Kind: domain.KindTurnTimeout, Reason: "turn deadline exceeded", Cause: ctx.Err()}).Error()
			e.transition(ctx, s, "timeout", truncate(s.Query), "turn timed out", domain.PhaseFallback)
			continue
		}
		if e.ceilingExceeded(s, transitions) {
			s.BackendErr = (&domain.TurnError{Kind: domain.KindLoopBoundExceeded, Reason: "transition ceiling reached"}).Error()
			e.transition(ctx, s, "guard", "", "transition ceiling reached", domain.PhaseFallback)
			continue
		}

		switch s.Phase {
		case domain.PhaseStart:
			e.transition(ctx, s, "start", truncate(s.Query), "turn accepted", domain.PhaseClassifying)
		case domain.PhaseClassifying:
			e.classifyNode(ctx, s)
		case domain.PhaseGateDeciding:
			e.gateNode(ctx, s)
		case domain.PhaseClarifying:
			e.clarifyNode(ctx, s)
		case domain.PhaseDispatching:
			e.dispatchNode(ctx, s)
		case domain.PhaseSynthesizing:
			e.synthesizeNode(ctx, s)
		case domain.PhaseFallback:
			e.fallbackNode(ctx, s)
		default:
			return nil, fmt.Errorf("unknown phase %q", s.Phase)
		}
	}

	e.countOutcome(s)
	return s, nil
}

// Resume rehydrates a turn suspended for clarification with the user's
// reply and continues the machine. Counters and trail are preserved across
// the suspension boundary.
func (e *Engine) Resume(ctx context.Context, state *domain.TurnState, reply string) (*domain.TurnState, error) {
	if state == nil {
		return nil, errors.New("nil turn state")
	}
	if !state.AwaitingReply {
		return nil, domain.ErrNotAwaitingReply
	}

	s := state.Clone()
	s.History = append(s.History, domain.Message{Role: domain.RoleUser, Text: reply})
	s.Query = augmentQuery(s.Query, reply)
	s.ResetJudgment()
	s.AwaitingReply = false
	s.PendingQuestion = ""
	s.Phase = domain.PhaseClassifying

	return e.RunTurn(ctx, s)
}

// classifyNode runs one classification attempt. Retryable failures self-loop
// within the retry bound; everything else falls back.
func (e *Engine) classifyNode(ctx context.Context, s *domain.TurnState) {
	started := e.now()
	judgment, err := e.classify(ctx, s)
	if err != nil {
		observability.ClassifierLatency.WithLabelValues("error").Observe(e.now().Sub(started).Seconds())
		s.BackendErr = err.Error()
		e.logger.WarnContext(ctx, "classification failed", "turn_id", s.TurnID, "err", err)

		if domain.Retryable(err) && s.RetryAttempts < e.retryBound {
			s.RetryAttempts++
			e.transition(ctx, s, "classify", truncate(s.Query), "retrying: "+truncate(err.Error()), domain.PhaseClassifying)
			return
		}
		e.transition(ctx, s, "classify", truncate(s.Query), "classifier failed: "+truncate(err.Error()), domain.PhaseFallback)
		return
	}
	observability.ClassifierLatency.WithLabelValues("ok").Observe(e.now().Sub(started).Seconds())

	s.Intent = judgment.Intent
	s.Confidence = judgment.Confidence
	s.Rationale = judgment.Rationale
	s.MissingInfo = append([]string(nil), judgment.MissingInfo...)
	s.BackendErr = ""

	out := fmt.Sprintf("%s@%.2f", judgment.Intent, judgment.Confidence)
	e.logger.DebugContext(ctx, "classified", "turn_id", s.TurnID, "intent", judgment.Intent, "confidence", judgment.Confidence)
	e.transition(ctx, s, "classify", truncate(s.Query), out, domain.PhaseGateDeciding)
}

// classify calls the classifier under the node timeout and validates the
// structural invariants of its output.
func (e *Engine) classify(ctx context.Context, s *domain.TurnState) (*ports.Judgment, error) {
	callCtx := ctx
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	judgment, err := e.classifier.Classify(callCtx, s.History, s.Query)
	if err != nil {
		var te *domain.TurnError
		if errors.As(err, &te) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &domain.TurnError{Kind: domain.KindClassifierUnavailable, Reason: "classifier timed out", Retryable: true, Cause: err}
		}
		return nil, &domain.TurnError{Kind: domain.KindClassifierUnavailable, Reason: "classifier call failed", Cause: err}
	}

	// Intent without confidence (or vice versa) is malformed output, not a
	// judgment the gate may act on.
	switch {
	case judgment == nil:
		return nil, &domain.TurnError{Kind: domain.KindClassifierMalformed, Reason: "empty judgment", Retryable: true}
	case !judgment.Intent.Valid():
		return nil, &domain.TurnError{Kind: domain.KindClassifierMalformed, Reason: fmt.Sprintf("unknown intent %q", judgment.Intent), Retryable: true}
	case judgment.Confidence < 0 || judgment.Confidence > 1:
		return nil, &domain.TurnError{Kind: domain.KindClassifierMalformed, Reason: fmt.Sprintf("confidence %v out of range", judgment.Confidence), Retryable: true}
	case judgment.Rationale == "":
		return nil, &domain.TurnError{Kind: domain.KindClassifierMalformed, Reason: "missing routing rationale", Retryable: true}
	}
	return judgment, nil
}

// gateNode applies the confidence gate to the current judgment.
func (e *Engine) gateNode(ctx context.Context, s *domain.TurnState) {
	decision := e.gate.Decide(s.Intent, s.Confidence)
	in := fmt.Sprintf("%s@%.2f", s.Intent, s.Confidence)

	if decision.Proceed {
		s.Route = decision.Route
		next := domain.PhaseDispatching
		if decision.Route == domain.RouteFallback {
			next = domain.PhaseFallback
		}
		e.transition(ctx, s, "gate", in, decision.String(), next)
		return
	}

	if s.ClarifyAttempts < e.clarifyBound {
		e.transition(ctx, s, "gate", in, decision.String(), domain.PhaseClarifying)
		return
	}
	s.BackendErr = (&domain.TurnError{Kind: domain.KindLoopBoundExceeded, Reason: fmt.Sprintf("clarification bound %d exhausted", e.clarifyBound)}).Error()
	e.transition(ctx, s, "gate", in, "clarification bound exhausted", domain.PhaseFallback)
}

// synthesizeNode produces the final answer from the backend payload.
// Synthesis has no further fallback: a failure is reported as an error
// final-answer and the turn still terminates.
func (e *Engine) synthesizeNode(ctx context.Context, s *domain.TurnState) {
	callCtx := ctx
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	answer, err := e.synth.Synthesize(callCtx, s.Query, s.Result, s.History)
	if err != nil {
		e.logger.ErrorContext(ctx, "synthesis failed", "turn_id", s.TurnID, "err", err)
		s.BackendErr = (&domain.TurnError{Kind: domain.KindSynthesisFailure, Reason: "synthesis failed", Cause: err}).Error()
		s.FinalAnswer = "I found relevant information but could not compose an answer. Please try again."
		s.History = append(s.History, domain.Message{Role: domain.RoleAssistant, Text: s.FinalAnswer})
		e.transition(ctx, s, "synthesize", string(s.Route), "synthesis failed", domain.PhaseTerminal)
		return
	}

	s.FinalAnswer = answer
	s.History = append(s.History, domain.Message{Role: domain.RoleAssistant, Text: answer})
	e.transition(ctx, s, "synthesize", string(s.Route), "answer produced", domain.PhaseTerminal)
}

// fallbackNode produces the handoff record. It has no failure path.
func (e *Engine) fallbackNode(ctx context.Context, s *domain.TurnState) {
	reason := s.BackendErr
	if reason == "" {
		reason = "escalated to human operator"
	}
	s.Handoff = &domain.HandoffRecord{
		Reason:    reason,
		Rationale: s.Rationale,
		History:   append([]domain.Message(nil), s.History...),
		Trail:     append([]domain.TrailEntry(nil), s.Trail...),
		CreatedAt: e.now().UTC(),
	}
	e.logger.InfoContext(ctx, "turn handed off", "turn_id", s.TurnID, "reason", reason)
	e.transition(ctx, s, "fallback", reason, "handoff record produced", domain.PhaseTerminal)
}

// transition appends exactly one decision-trail entry, fires the hook,
// records metrics, and advances the phase. Every edge of the machine passes
// through here: trail length equals transition count by construction.
func (e *Engine) transition(ctx context.Context, s *domain.TurnState, node, input, output string, to domain.Phase) {
	from := s.Phase
	s.Trail = append(s.Trail, domain.TrailEntry{
		Node:      node,
		Input:     input,
		Output:    output,
		Timestamp: e.now().UTC(),
	})
	s.Phase = to

	observability.TransitionsTotal.WithLabelValues(node).Inc()
	e.logger.DebugContext(ctx, "transition", "turn_id", s.TurnID, "node", node, "from", from, "to", to, "output", output)

	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			Timestamp: e.now().UTC(),
			TurnID:    s.TurnID,
			From:      from,
			To:        to,
			Node:      node,
			Summary:   output,
		})
	}
}

func (e *Engine) countOutcome(s *domain.TurnState) {
	route := string(s.Route)
	if route == "" {
		route = "none"
	}
	switch {
	case s.AwaitingReply:
		observability.TurnsTotal.WithLabelValues(route, "awaiting_reply").Inc()
	case s.Handoff != nil:
		observability.TurnsTotal.WithLabelValues(route, "handoff").Inc()
	default:
		observability.TurnsTotal.WithLabelValues(route, "answered").Inc()
	}
}

// augmentQuery folds a clarification reply into the query text for the next
// classification pass.
func augmentQuery(query, reply string) string {
	if reply == "" {
		return query
	}
	return query + "\n" + reply
}

const summaryLimit = 120

// truncate shortens trail summaries, cutting on a rune boundary so
// checkpointed trails stay valid UTF-8.
func truncate(s string) string {
	if len(s) <= summaryLimit {
		return s
	}
	cut := summaryLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

package switchboard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"log/slog"

	"github.com/google/uuid"

	"github.com/omnihelp/switchboard/internal/runtime"
	"github.com/omnihelp/switchboard/pkg/adapters/memory"
	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
	"github.com/omnihelp/switchboard/pkg/session"
)

// Status summarizes how a turn ended.
type Status string

const (
	// StatusAnswered means the turn produced a final answer.
	StatusAnswered Status = "answered"
	// StatusAwaitingReply means the turn suspended on a clarifying question.
	StatusAwaitingReply Status = "awaiting_reply"
	// StatusHandoff means the turn fell back to a human handoff.
	StatusHandoff Status = "handoff"
)

// Outcome is the caller-facing result of Ask or Reply.
type Outcome struct {
	SessionID string
	Status    Status
	Answer    string
	Question  string
	Handoff   *domain.HandoffRecord
	Trail     []domain.TrailEntry
}

// Switchboard is the high-level entry point. It wraps the internal turn
// engine and persists session state across suspensions.
type Switchboard struct {
	engine   *runtime.Engine
	sessions *session.Manager

	store       ports.StateStore
	locker      ports.DistributedLocker
	elicitor    ports.Elicitor
	gate        *runtime.Gate
	hooks       domain.LifecycleHooks
	engineOpts  []runtime.EngineOption
	sessionOpts []session.Option
	logger      *slog.Logger
}

// Option configures the Switchboard.
type Option func(*Switchboard)

// WithStore sets the session persistence store (default: in-memory).
func WithStore(store ports.StateStore) Option {
	return func(s *Switchboard) { s.store = store }
}

// WithLocker enables distributed session locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Switchboard) { s.locker = locker }
}

// WithElicitor switches clarification into auto mode: instead of suspending,
// the turn asks the elicitor inline and continues.
func WithElicitor(e ports.Elicitor) Option {
	return func(s *Switchboard) { s.elicitor = e }
}

// WithGate overrides the default confidence gate.
func WithGate(gate runtime.Gate) Option {
	return func(s *Switchboard) { s.gate = &gate }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Switchboard) { s.hooks = hooks }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Switchboard) { s.logger = logger }
}

// WithEngineOptions passes options through to the turn engine, such as
// runtime.WithClarifyBound or runtime.WithTurnTimeout.
func WithEngineOptions(opts ...runtime.EngineOption) Option {
	return func(s *Switchboard) { s.engineOpts = append(s.engineOpts, opts...) }
}

// New builds a Switchboard over the given classifier, per-route backends,
// and synthesizer.
func New(classifier ports.Classifier, backends map[domain.Route]ports.Backend, synth ports.Synthesizer, opts ...Option) (*Switchboard, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}

	sb := &Switchboard{}
	for _, opt := range opts {
		opt(sb)
	}

	if sb.logger == nil {
		sb.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if sb.store == nil {
		sb.store = memory.NewStore()
	}

	engineOpts := []runtime.EngineOption{
		runtime.WithLogger(sb.logger),
		runtime.WithLifecycleHooks(sb.hooks),
	}
	if sb.gate != nil {
		engineOpts = append(engineOpts, runtime.WithGate(*sb.gate))
	}
	if sb.elicitor != nil {
		engineOpts = append(engineOpts, runtime.WithElicitor(sb.elicitor))
	}
	engineOpts = append(engineOpts, sb.engineOpts...)

	sb.engine = runtime.NewEngine(classifier, backends, synth, engineOpts...)

	sessionOpts := []session.Option{session.WithLogger(sb.logger)}
	if sb.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(sb.locker))
	}
	sessionOpts = append(sessionOpts, sb.sessionOpts...)
	sb.sessions = session.NewManager(sb.store, sessionOpts...)

	return sb, nil
}

// Ask runs one turn for the query. A fresh session ID is generated when
// sessionID is empty; an existing session contributes its conversation
// history. Asking on a session with a suspended turn returns
// domain.ErrAwaitingReply; continue it with Reply instead.
func (s *Switchboard) Ask(ctx context.Context, sessionID, query string) (*Outcome, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var outcome *Outcome
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var history []domain.Message
		prev, err := s.sessions.Store().Load(ctx, sessionID)
		switch {
		case err == nil:
			if prev.AwaitingReply {
				return domain.ErrAwaitingReply
			}
			history = prev.History
		case errors.Is(err, domain.ErrSessionNotFound):
			// first turn for this session
		default:
			return err
		}

		state := domain.NewTurnState(sessionID, uuid.NewString(), query, history)
		final, err := s.engine.RunTurn(ctx, state)
		if err != nil {
			return err
		}
		if err := s.sessions.Store().Save(ctx, sessionID, final); err != nil {
			return fmt.Errorf("checkpointing turn state: %w", err)
		}
		outcome = s.outcome(final)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Reply continues a suspended turn with the user's clarification. Loop
// counters and the decision trail carry over from the checkpoint.
func (s *Switchboard) Reply(ctx context.Context, sessionID, reply string) (*Outcome, error) {
	var outcome *Outcome
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if !state.AwaitingReply {
			return domain.ErrNotAwaitingReply
		}

		final, err := s.engine.Resume(ctx, state, reply)
		if err != nil {
			return err
		}
		if err := s.sessions.Store().Save(ctx, sessionID, final); err != nil {
			return fmt.Errorf("checkpointing turn state: %w", err)
		}
		outcome = s.outcome(final)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Sessions exposes the session manager for inspection and cleanup.
func (s *Switchboard) Sessions() *session.Manager {
	return s.sessions
}

func (s *Switchboard) outcome(state *domain.TurnState) *Outcome {
	out := &Outcome{
		SessionID: state.SessionID,
		Trail:     state.Trail,
	}
	switch {
	case state.AwaitingReply:
		out.Status = StatusAwaitingReply
		out.Question = state.PendingQuestion
	case state.Handoff != nil:
		out.Status = StatusHandoff
		out.Handoff = state.Handoff
	default:
		out.Status = StatusAnswered
		out.Answer = state.FinalAnswer
	}
	return out
}

package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/observability"
	"github.com/omnihelp/switchboard/pkg/ports"
)

// dispatchNode runs exactly one backend attempt for the committed route.
// Retryable failures self-loop (Dispatching → Dispatching) within the retry
// bound, carrying the failure text back to the adapter as a repair hint.
// Fatal or bound-exceeded failures fall back; there is no silent
// continuation to synthesis with missing data.
func (e *Engine) dispatchNode(ctx context.Context, s *domain.TurnState) {
	backend, ok := e.backends[s.Route]
	if !ok {
		s.BackendErr = fmt.Sprintf("%v: %s", domain.ErrNoBackend, s.Route)
		e.transition(ctx, s, "dispatch", string(s.Route), "no backend registered", domain.PhaseFallback)
		return
	}

	req := ports.BackendRequest{
		Query:   s.Query,
		History: s.History,
	}
	if s.RetryAttempts > 0 && s.BackendErr != "" {
		req.RepairHint = s.BackendErr
	}

	attempt := s.RetryAttempts + 1
	e.emitBackendCall(ctx, s, attempt)

	started := e.now()
	result, err := e.callBackend(ctx, backend, req)
	elapsed := e.now().Sub(started).Seconds()

	if err != nil {
		observability.BackendLatency.WithLabelValues(string(s.Route), "error").Observe(elapsed)
		e.emitBackendReturn(ctx, s, attempt, err)
		e.logger.WarnContext(ctx, "backend call failed",
			"turn_id", s.TurnID, "route", s.Route, "attempt", attempt, "err", err)

		// Any retry discards the partial result before the next attempt.
		s.Result = nil
		s.BackendErr = err.Error()

		if !domain.Retryable(err) {
			e.transition(ctx, s, "dispatch", string(s.Route), "fatal: "+truncate(err.Error()), domain.PhaseFallback)
			return
		}
		if s.RetryAttempts >= e.retryBound {
			s.BackendErr = (&domain.TurnError{
				Kind:   domain.KindLoopBoundExceeded,
				Reason: fmt.Sprintf("retry bound %d exhausted on route %s", e.retryBound, s.Route),
				Cause:  err,
			}).Error()
			e.transition(ctx, s, "dispatch", string(s.Route), "retry bound exhausted", domain.PhaseFallback)
			return
		}
		s.RetryAttempts++
		observability.BackendRetriesTotal.WithLabelValues(string(s.Route)).Inc()
		e.transition(ctx, s, "dispatch", string(s.Route), "retrying: "+truncate(err.Error()), domain.PhaseDispatching)
		return
	}

	observability.BackendLatency.WithLabelValues(string(s.Route), "ok").Observe(elapsed)
	e.emitBackendReturn(ctx, s, attempt, nil)

	// Success is written atomically: result set, error cleared, in one
	// transition.
	if result == nil {
		result = &domain.BackendResult{Route: s.Route}
	}
	result.Route = s.Route
	s.Result = result
	s.BackendErr = ""
	e.transition(ctx, s, "dispatch", string(s.Route), dispatchSummary(result), domain.PhaseSynthesizing)
}

// callBackend invokes the adapter under the node timeout and normalizes
// untyped errors into the turn-error taxonomy.
func (e *Engine) callBackend(ctx context.Context, backend ports.Backend, req ports.BackendRequest) (*domain.BackendResult, error) {
	callCtx := ctx
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	result, err := backend.Execute(callCtx, req)
	if err == nil {
		return result, nil
	}

	// The turn-level deadline expiring aborts the in-flight call and is
	// classified as a timeout regardless of what the adapter reported.
	if ctx.Err() != nil {
		return nil, &domain.TurnError{Kind: domain.KindTurnTimeout, Reason: "turn deadline exceeded", Cause: err}
	}
	var te *domain.TurnError
	if errors.As(err, &te) {
		return nil, err
	}
	// A node-level deadline with the turn still alive is transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, domain.NewRetryable("backend timed out", err)
	}
	return nil, domain.NewFatal("backend call failed", err)
}

func dispatchSummary(result *domain.BackendResult) string {
	switch {
	case len(result.Passages) > 0:
		return fmt.Sprintf("%d passages retrieved", len(result.Passages))
	case len(result.Rows) > 0:
		return fmt.Sprintf("%d rows returned", len(result.Rows))
	case len(result.WebResults) > 0:
		return fmt.Sprintf("%d web results", len(result.WebResults))
	default:
		return "empty result"
	}
}

func (e *Engine) emitBackendCall(ctx context.Context, s *domain.TurnState, attempt int) {
	if e.hooks.OnBackendCall == nil {
		return
	}
	e.hooks.OnBackendCall(ctx, &domain.BackendEvent{
		Timestamp: e.now().UTC(),
		TurnID:    s.TurnID,
		Route:     s.Route,
		Attempt:   attempt,
	})
}

func (e *Engine) emitBackendReturn(ctx context.Context, s *domain.TurnState, attempt int, err error) {
	if e.hooks.OnBackendReturn == nil {
		return
	}
	ev := &domain.BackendEvent{
		Timestamp: e.now().UTC(),
		TurnID:    s.TurnID,
		Route:     s.Route,
		Attempt:   attempt,
	}
	if err != nil {
		ev.IsError = true
		ev.Error = err.Error()
	}
	e.hooks.OnBackendReturn(ctx, ev)
}

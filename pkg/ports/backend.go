package ports

import (
	"context"

	"github.com/omnihelp/switchboard/pkg/domain"
)

// BackendRequest is the turn-state subset an adapter may see.
type BackendRequest struct {
	Query   string
	History []domain.Message

	// RepairHint carries adapter feedback from a failed previous attempt
	// (e.g. the validation error of a rejected query) so the adapter can
	// self-correct on retry. Empty on the first attempt.
	RepairHint string
}

// Backend is the uniform adapter contract the dispatcher invokes. Exactly
// one backend runs per cycle. Errors must be *domain.TurnError; the
// Retryable flag drives the dispatcher's bounded retry without any
// adapter-specific knowledge.
type Backend interface {
	Execute(ctx context.Context, req BackendRequest) (*domain.BackendResult, error)
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, req BackendRequest) (*domain.BackendResult, error)

// Execute implements Backend.
func (f BackendFunc) Execute(ctx context.Context, req BackendRequest) (*domain.BackendResult, error) {
	return f(ctx, req)
}

// Synthesizer turns a backend payload into the final answer text. Synthesis
// has no retry path: a failure here is reported as an error final-answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, result *domain.BackendResult, history []domain.Message) (string, error)
}

// Elicitor supplies clarification replies when the engine runs in automatic
// clarification mode. When no elicitor is configured the engine suspends the
// turn and awaits a human reply instead.
type Elicitor interface {
	Elicit(ctx context.Context, question string, missing []string) (string, error)
}

package ports

import (
	"context"

	"github.com/omnihelp/switchboard/pkg/domain"
)

// StateStore persists suspended turn state so a clarification can await a
// human reply across process boundaries ("stop & resume"). Implementations
// must round-trip every TurnState field exactly.
type StateStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.TurnState) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.TurnState, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all persisted sessions.
	List(ctx context.Context) ([]string, error)
}

package ports

import (
	"context"
	"testing"

	"github.com/omnihelp/switchboard/pkg/domain"
)

// RunStateStoreContract verifies that a StateStore implementation honors the
// persistence boundary: exact round-tripping of every TurnState field,
// ErrSessionNotFound semantics, and idempotent deletes. Adapter test suites
// call this against their concrete store.
func RunStateStoreContract(t *testing.T, store StateStore) {
	t.Helper()
	ctx := context.Background()

	state := domain.NewTurnState("contract-session", "turn-1", "What is your return policy?", []domain.Message{
		{Role: domain.RoleAssistant, Text: "Hello! How can I help?"},
	})
	state.Phase = domain.PhaseTerminal
	state.Intent = domain.IntentPolicy
	state.Confidence = 0.91
	state.Rationale = "mentions a store policy"
	state.MissingInfo = []string{"order_number"}
	state.Route = domain.RoutePolicy
	state.Result = &domain.BackendResult{
		Route: domain.RoutePolicy,
		Passages: []domain.Passage{
			{Text: "Returns accepted within 30 days.", Source: "policy.md", Locator: "§2", Score: 0.87},
		},
	}
	state.PendingQuestion = "Which order is this about?"
	state.AwaitingReply = true
	state.ClarifyAttempts = 1
	state.RetryAttempts = 2
	state.Trail = []domain.TrailEntry{
		{Node: "classify", Input: "query", Output: "policy@0.91", Timestamp: state.StartedAt},
	}

	t.Run("SaveAndLoad", func(t *testing.T) {
		if err := store.Save(ctx, "contract-session", state); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load(ctx, "contract-session")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if loaded.Query != state.Query {
			t.Errorf("Query mismatch: got %q, want %q", loaded.Query, state.Query)
		}
		if loaded.Intent != state.Intent || loaded.Confidence != state.Confidence {
			t.Errorf("judgment mismatch: got %s@%v, want %s@%v", loaded.Intent, loaded.Confidence, state.Intent, state.Confidence)
		}
		if loaded.Rationale != state.Rationale {
			t.Errorf("Rationale mismatch: got %q", loaded.Rationale)
		}
		if len(loaded.MissingInfo) != 1 || loaded.MissingInfo[0] != "order_number" {
			t.Errorf("MissingInfo not round-tripped: %v", loaded.MissingInfo)
		}
		if loaded.Route != state.Route {
			t.Errorf("Route mismatch: got %q", loaded.Route)
		}
		if loaded.Result == nil || len(loaded.Result.Passages) != 1 || loaded.Result.Passages[0].Source != "policy.md" {
			t.Errorf("Result not round-tripped: %+v", loaded.Result)
		}
		if !loaded.AwaitingReply || loaded.PendingQuestion != state.PendingQuestion {
			t.Errorf("suspension fields not round-tripped: awaiting=%v question=%q", loaded.AwaitingReply, loaded.PendingQuestion)
		}
		if loaded.ClarifyAttempts != 1 || loaded.RetryAttempts != 2 {
			t.Errorf("counters not preserved: clarify=%d retry=%d", loaded.ClarifyAttempts, loaded.RetryAttempts)
		}
		if len(loaded.Trail) != 1 || loaded.Trail[0].Node != "classify" {
			t.Errorf("Trail not preserved: %+v", loaded.Trail)
		}
		if len(loaded.History) != 2 {
			t.Errorf("History not preserved: %+v", loaded.History)
		}
	})

	t.Run("LoadIsolation", func(t *testing.T) {
		first, err := store.Load(ctx, "contract-session")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		first.Query = "mutated"
		first.Trail = append(first.Trail, domain.TrailEntry{Node: "bogus"})

		second, err := store.Load(ctx, "contract-session")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if second.Query == "mutated" || len(second.Trail) != 1 {
			t.Error("store leaked a mutable reference to its internal state")
		}
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		found := false
		for _, id := range ids {
			if id == "contract-session" {
				found = true
			}
		}
		if !found {
			t.Errorf("session missing from list: %v", ids)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "no-such-session")
		if err != domain.ErrSessionNotFound {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "contract-session"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Load(ctx, "contract-session"); err != domain.ErrSessionNotFound {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}
		// Deleting a missing session is not an error.
		if err := store.Delete(ctx, "contract-session"); err != nil {
			t.Errorf("second delete should be a no-op, got %v", err)
		}
	})
}

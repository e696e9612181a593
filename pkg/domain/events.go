package domain

import (
	"context"
	"time"
)

// TransitionEvent describes one edge taken by the machine.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	TurnID    string    `json:"turn_id"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Node      string    `json:"node"`
	Summary   string    `json:"summary,omitempty"`
}

// BackendEvent describes a backend adapter call or its return.
type BackendEvent struct {
	Timestamp time.Time `json:"timestamp"`
	TurnID    string    `json:"turn_id"`
	Route     Route     `json:"route"`
	Attempt   int       `json:"attempt"`
	IsError   bool      `json:"is_error,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LifecycleHooks defines optional callbacks for host observability. All
// fields may be nil. Hooks fire in addition to, never instead of, the
// decision trail carried on the turn state itself.
type LifecycleHooks struct {
	OnTransition    func(context.Context, *TransitionEvent)
	OnBackendCall   func(context.Context, *BackendEvent)
	OnBackendReturn func(context.Context, *BackendEvent)
}

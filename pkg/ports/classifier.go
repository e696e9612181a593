package ports

import (
	"context"

	"github.com/omnihelp/switchboard/pkg/domain"
)

// Judgment is the structured output of the classifier. Confidence always
// accompanies the intent; the engine rejects judgments that break that
// pairing before acting on them.
type Judgment struct {
	Intent      domain.Intent `json:"intent"`
	Confidence  float64       `json:"confidence"`
	Rationale   string        `json:"rationale"`
	MissingInfo []string      `json:"missing_info,omitempty"`
}

// Classifier assigns an intent and a confidence to the current query given
// the conversation so far. Failures are reported as *domain.TurnError so the
// engine can distinguish malformed output (retryable) from an unavailable
// classifier (fatal for the turn).
type Classifier interface {
	Classify(ctx context.Context, history []domain.Message, query string) (*Judgment, error)
}

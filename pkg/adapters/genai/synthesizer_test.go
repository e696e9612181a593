package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihelp/switchboard/pkg/domain"
)

func stubbedSynthesizer(fn generateFunc) *Synthesizer {
	return &Synthesizer{generate: fn, model: "test-model"}
}

func TestSynthesizer_ReturnsTrimmedAnswer(t *testing.T) {
	s := stubbedSynthesizer(func(ctx context.Context, prompt string) (string, error) {
		return "  Returns are accepted within 30 days.\n", nil
	})

	answer, err := s.Synthesize(context.Background(), "return policy?", &domain.BackendResult{
		Passages: []domain.Passage{{Text: "30 day returns", Source: "policy.md"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Returns are accepted within 30 days.", answer)
}

func TestSynthesizer_RequestFailure(t *testing.T) {
	s := stubbedSynthesizer(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("503")
	})

	_, err := s.Synthesize(context.Background(), "q", &domain.BackendResult{}, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindSynthesisFailure, domain.KindOf(err))
}

func TestSynthesizer_EmptyAnswerIsFailure(t *testing.T) {
	s := stubbedSynthesizer(func(ctx context.Context, prompt string) (string, error) {
		return "   ", nil
	})

	_, err := s.Synthesize(context.Background(), "q", &domain.BackendResult{}, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindSynthesisFailure, domain.KindOf(err))
}

func TestSynthesisPrompt_EvidenceRendering(t *testing.T) {
	t.Run("passages with sources", func(t *testing.T) {
		prompt := synthesisPrompt("q", &domain.BackendResult{
			Passages: []domain.Passage{
				{Text: "Refunds take 5 days", Source: "refunds.md", Locator: "section 2"},
			},
		}, nil)
		assert.Contains(t, prompt, "Refunds take 5 days")
		assert.Contains(t, prompt, "refunds.md")
		assert.Contains(t, prompt, "section 2")
	})

	t.Run("rows render column values", func(t *testing.T) {
		prompt := synthesisPrompt("q", &domain.BackendResult{
			Columns: []string{"order_id", "status"},
			Rows: []domain.Row{
				{"order_id": "A1", "status": "shipped"},
			},
		}, nil)
		assert.Contains(t, prompt, "order_id=A1")
		assert.Contains(t, prompt, "status=shipped")
	})

	t.Run("web results render urls", func(t *testing.T) {
		prompt := synthesisPrompt("q", &domain.BackendResult{
			WebResults: []domain.WebResult{
				{Title: "Shipping news", Snippet: "carriers delayed", URL: "https://example.com/news"},
			},
		}, nil)
		assert.Contains(t, prompt, "https://example.com/news")
	})

	t.Run("empty result is stated", func(t *testing.T) {
		prompt := synthesisPrompt("q", &domain.BackendResult{}, nil)
		assert.Contains(t, prompt, "no evidence was found")
	})
}

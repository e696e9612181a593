// Package retrieval answers policy questions by vector search over an
// indexed document corpus served by a Qdrant instance.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Backend implements ports.Backend by embedding the question and running a
// nearest-neighbor search against Qdrant's HTTP API.
type Backend struct {
	baseURL    string
	collection string
	embedder   Embedder
	httpClient *http.Client
	topK       int
	minScore   float32
}

// Option configures the Backend.
type Option func(*Backend)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// WithTopK sets how many passages to retrieve (default 5).
func WithTopK(k int) Option {
	return func(b *Backend) {
		if k > 0 {
			b.topK = k
		}
	}
}

// WithMinScore drops matches below the given similarity score.
func WithMinScore(score float32) Option {
	return func(b *Backend) {
		b.minScore = score
	}
}

// New creates a retrieval backend over the given Qdrant base URL and
// collection.
func New(baseURL, collection string, embedder Embedder, opts ...Option) *Backend {
	b := &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		topK:       5,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold float32   `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Result []searchMatch `json:"result"`
}

type searchMatch struct {
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Execute embeds the question and searches the collection. An empty match
// list is a valid result; synthesis decides how to answer from nothing.
func (b *Backend) Execute(ctx context.Context, req ports.BackendRequest) (*domain.BackendResult, error) {
	vector, err := b.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, domain.NewRetryable("embedding the query failed", err)
	}

	body, err := json.Marshal(searchRequest{
		Vector:         vector,
		Limit:          b.topK,
		WithPayload:    true,
		ScoreThreshold: b.minScore,
	})
	if err != nil {
		return nil, domain.NewFatal("marshaling search request failed", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", b.baseURL, b.collection)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewFatal("building search request failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewRetryable("vector search request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewRetryable("reading search response failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewRateLimited("vector store throttled the request", nil)
	case resp.StatusCode >= 500:
		return nil, domain.NewRetryable(fmt.Sprintf("vector store returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewFatal(fmt.Sprintf("vector store returned status %d: %s", resp.StatusCode, respBody), nil)
	}

	var sr searchResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, domain.NewRetryable("decoding search response failed", err)
	}

	passages := make([]domain.Passage, 0, len(sr.Result))
	for _, m := range sr.Result {
		passages = append(passages, domain.Passage{
			Text:    payloadString(m.Payload, "text"),
			Source:  payloadString(m.Payload, "source"),
			Locator: payloadString(m.Payload, "locator"),
			Score:   float64(m.Score),
		})
	}

	return &domain.BackendResult{
		Route:    domain.RoutePolicy,
		Passages: passages,
	}, nil
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// Package websearch answers open-web questions through a SearXNG instance.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

// htmlTagRegex matches HTML tags for stripping from snippets.
var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// Backend implements ports.Backend against a SearXNG instance.
type Backend struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxResults int
	allow      map[string]bool
	block      map[string]bool
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

// WithRateLimit caps outgoing searches at r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(b *Backend) {
		if r > 0 && burst > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// WithMaxResults caps the number of results returned (default 5).
func WithMaxResults(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.maxResults = n
		}
	}
}

// WithAllowedDomains restricts results to the given hostnames.
func WithAllowedDomains(domains []string) Option {
	return func(b *Backend) {
		b.allow = domainSet(domains)
	}
}

// WithBlockedDomains drops results from the given hostnames.
func WithBlockedDomains(domains []string) Option {
	return func(b *Backend) {
		b.block = domainSet(domains)
	}
}

func domainSet(domains []string) map[string]bool {
	if len(domains) == 0 {
		return nil
	}
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return set
}

// New creates a web search backend for the given SearXNG base URL.
func New(baseURL string, opts ...Option) *Backend {
	b := &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxResults: 5,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// searxngResponse represents the JSON response from SearXNG.
type searxngResponse struct {
	Results []searxngResult `json:"results"`
}

type searxngResult struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Content     string  `json:"content"`
	PublishedAt *string `json:"publishedDate"`
}

// Execute runs one search. HTTP 429 surfaces as a rate-limited error so the
// dispatcher can distinguish throttling from transport faults; network and
// server-side failures are retryable, other client errors are fatal.
func (b *Backend) Execute(ctx context.Context, req ports.BackendRequest) (*domain.BackendResult, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, domain.NewRetryable("rate limiter wait interrupted", err)
		}
	}

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json&categories=general",
		b.baseURL, url.QueryEscape(req.Query))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, domain.NewFatal("building search request failed", err)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewRetryable("search request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewRateLimited("search backend throttled the request", nil)
	case resp.StatusCode >= 500:
		return nil, domain.NewRetryable(fmt.Sprintf("search backend returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewFatal(fmt.Sprintf("search backend returned status %d", resp.StatusCode), nil)
	}

	var sr searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, domain.NewRetryable("decoding search response failed", err)
	}

	results := make([]domain.WebResult, 0, b.maxResults)
	for _, r := range sr.Results {
		if len(results) >= b.maxResults {
			break
		}
		if !b.domainAllowed(r.URL) {
			continue
		}
		wr := domain.WebResult{
			Title:   stripHTML(r.Title),
			URL:     r.URL,
			Snippet: stripHTML(r.Content),
		}
		if r.PublishedAt != nil {
			wr.Timestamp = parsePublished(*r.PublishedAt)
		}
		results = append(results, wr)
	}

	return &domain.BackendResult{
		Route:      domain.RouteWeb,
		WebResults: results,
	}, nil
}

func (b *Backend) domainAllowed(rawURL string) bool {
	if b.allow == nil && b.block == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if b.block != nil && b.block[host] {
		return false
	}
	if b.allow != nil {
		return b.allow[host]
	}
	return true
}

// stripHTML removes HTML tags from text.
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagRegex.ReplaceAllString(s, ""))
}

// parsePublished parses the publishedDate SearXNG reports. Engines emit it
// with and without a zone offset; unparseable values map to the zero time.
func parsePublished(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

package websearch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihelp/switchboard/pkg/adapters/websearch"
	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

const sampleResponse = `{
	"results": [
		{"title": "Carrier <b>delays</b>", "url": "https://news.example.com/delays", "content": "Shipping carriers report <em>delays</em>."},
		{"title": "Spam post", "url": "https://spam.example.net/x", "content": "irrelevant"},
		{"title": "Holiday schedule", "url": "https://news.example.com/holidays", "content": "Updated schedules."}
	]
}`

func TestBackend_SearchParsesAndStripsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "carrier delays", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	b := websearch.New(srv.URL)
	result, err := b.Execute(context.Background(), ports.BackendRequest{Query: "carrier delays"})
	require.NoError(t, err)

	require.Len(t, result.WebResults, 3)
	assert.Equal(t, domain.RouteWeb, result.Route)
	assert.Equal(t, "Carrier delays", result.WebResults[0].Title)
	assert.Equal(t, "Shipping carriers report delays.", result.WebResults[0].Snippet)
}

func TestBackend_PublishedDateParsing(t *testing.T) {
	const resp = `{
		"results": [
			{"title": "a", "url": "https://news.example.com/a", "content": "x", "publishedDate": "2026-03-01T10:30:00Z"},
			{"title": "b", "url": "https://news.example.com/b", "content": "x", "publishedDate": "2026-03-02T08:15:00"},
			{"title": "c", "url": "https://news.example.com/c", "content": "x", "publishedDate": "2026-03-03"},
			{"title": "d", "url": "https://news.example.com/d", "content": "x", "publishedDate": "last Tuesday"},
			{"title": "e", "url": "https://news.example.com/e", "content": "x"}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(resp))
	}))
	defer srv.Close()

	b := websearch.New(srv.URL)
	result, err := b.Execute(context.Background(), ports.BackendRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, result.WebResults, 5)

	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), result.WebResults[0].Timestamp)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC), result.WebResults[1].Timestamp)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), result.WebResults[2].Timestamp)
	assert.True(t, result.WebResults[3].Timestamp.IsZero())
	assert.True(t, result.WebResults[4].Timestamp.IsZero())
}

func TestBackend_MaxResultsCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	b := websearch.New(srv.URL, websearch.WithMaxResults(1))
	result, err := b.Execute(context.Background(), ports.BackendRequest{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, result.WebResults, 1)
}

func TestBackend_DomainFiltering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	t.Run("blocklist drops matching hosts", func(t *testing.T) {
		b := websearch.New(srv.URL, websearch.WithBlockedDomains([]string{"spam.example.net"}))
		result, err := b.Execute(context.Background(), ports.BackendRequest{Query: "q"})
		require.NoError(t, err)
		for _, r := range result.WebResults {
			assert.NotContains(t, r.URL, "spam.example.net")
		}
		assert.Len(t, result.WebResults, 2)
	})

	t.Run("allowlist keeps only matching hosts", func(t *testing.T) {
		b := websearch.New(srv.URL, websearch.WithAllowedDomains([]string{"news.example.com"}))
		result, err := b.Execute(context.Background(), ports.BackendRequest{Query: "q"})
		require.NoError(t, err)
		assert.Len(t, result.WebResults, 2)
	})
}

func TestBackend_ErrorClassification(t *testing.T) {
	newServer := func(status int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
	}

	t.Run("429 is rate limited", func(t *testing.T) {
		srv := newServer(http.StatusTooManyRequests)
		defer srv.Close()

		_, err := websearch.New(srv.URL).Execute(context.Background(), ports.BackendRequest{Query: "q"})
		require.Error(t, err)
		assert.Equal(t, domain.KindRateLimited, domain.KindOf(err))
		assert.True(t, domain.Retryable(err))
	})

	t.Run("5xx is retryable", func(t *testing.T) {
		srv := newServer(http.StatusBadGateway)
		defer srv.Close()

		_, err := websearch.New(srv.URL).Execute(context.Background(), ports.BackendRequest{Query: "q"})
		require.Error(t, err)
		assert.Equal(t, domain.KindBackendRetryable, domain.KindOf(err))
	})

	t.Run("4xx is fatal", func(t *testing.T) {
		srv := newServer(http.StatusForbidden)
		defer srv.Close()

		_, err := websearch.New(srv.URL).Execute(context.Background(), ports.BackendRequest{Query: "q"})
		require.Error(t, err)
		assert.Equal(t, domain.KindBackendFatal, domain.KindOf(err))
		assert.False(t, domain.Retryable(err))
	})

	t.Run("network failure is retryable", func(t *testing.T) {
		srv := newServer(http.StatusOK)
		srv.Close() // connection refused

		_, err := websearch.New(srv.URL).Execute(context.Background(), ports.BackendRequest{Query: "q"})
		require.Error(t, err)
		assert.Equal(t, domain.KindBackendRetryable, domain.KindOf(err))
	})
}

func TestBackend_EmptyResultsAreValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	result, err := websearch.New(srv.URL).Execute(context.Background(), ports.BackendRequest{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, result.WebResults)
	assert.True(t, result.Empty())
}

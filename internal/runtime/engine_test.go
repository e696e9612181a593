package runtime_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihelp/switchboard/internal/runtime"
	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

// scriptedClassifier returns its judgments (or errors) in order, repeating
// the last script entry once exhausted.
type scriptedClassifier struct {
	script []func() (*ports.Judgment, error)
	calls  int
}

func (c *scriptedClassifier) Classify(ctx context.Context, history []domain.Message, query string) (*ports.Judgment, error) {
	idx := c.calls
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.calls++
	return c.script[idx]()
}

func judgment(intent domain.Intent, confidence float64, missing ...string) func() (*ports.Judgment, error) {
	return func() (*ports.Judgment, error) {
		return &ports.Judgment{
			Intent:      intent,
			Confidence:  confidence,
			Rationale:   "test rationale for " + string(intent),
			MissingInfo: missing,
		}, nil
	}
}

func classifierError(err error) func() (*ports.Judgment, error) {
	return func() (*ports.Judgment, error) { return nil, err }
}

// scriptedBackend returns results or errors in order and records calls and
// repair hints.
type scriptedBackend struct {
	script []func() (*domain.BackendResult, error)
	calls  int32
	hints  []string
}

func (b *scriptedBackend) Execute(ctx context.Context, req ports.BackendRequest) (*domain.BackendResult, error) {
	b.hints = append(b.hints, req.RepairHint)
	idx := int(atomic.AddInt32(&b.calls, 1)) - 1
	if idx >= len(b.script) {
		idx = len(b.script) - 1
	}
	return b.script[idx]()
}

func passages(n int) func() (*domain.BackendResult, error) {
	return func() (*domain.BackendResult, error) {
		res := &domain.BackendResult{Route: domain.RoutePolicy}
		for i := 0; i < n; i++ {
			res.Passages = append(res.Passages, domain.Passage{
				Text: "passage", Source: "policy.md", Score: 0.9,
			})
		}
		return res, nil
	}
}

func backendError(err error) func() (*domain.BackendResult, error) {
	return func() (*domain.BackendResult, error) { return nil, err }
}

type stubSynth struct {
	answer string
	err    error
	got    *domain.BackendResult
}

func (s *stubSynth) Synthesize(ctx context.Context, query string, result *domain.BackendResult, history []domain.Message) (string, error) {
	s.got = result
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type elicitorFunc func(ctx context.Context, question string, missing []string) (string, error)

func (f elicitorFunc) Elicit(ctx context.Context, question string, missing []string) (string, error) {
	return f(ctx, question, missing)
}

func newTurn(query string) *domain.TurnState {
	return domain.NewTurnState("session-1", "turn-1", query, nil)
}

func TestEngine_CleanPolicyRoute(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentPolicy, 0.92),
	}}
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){passages(3)}}
	synth := &stubSynth{answer: "Electronics can be returned within 30 days [policy.md]."}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RoutePolicy: backend,
	}, synth)

	final, err := eng.RunTurn(context.Background(), newTurn("What is your return policy for electronics?"))
	require.NoError(t, err)

	assert.True(t, final.Terminal())
	assert.Equal(t, synth.answer, final.FinalAnswer)
	assert.Equal(t, domain.RoutePolicy, final.Route)
	assert.Equal(t, 0, final.ClarifyAttempts)
	assert.Equal(t, 0, final.RetryAttempts)
	assert.Nil(t, final.Handoff)
	require.NotNil(t, synth.got)
	assert.Len(t, synth.got.Passages, 3)

	// start, classify, gate, dispatch, synthesize
	assert.Len(t, final.Trail, 5)
}

func TestEngine_LowConfidenceSuspendAndResume(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentStructuredData, 0.55, "order_number"),
		judgment(domain.IntentStructuredData, 0.88),
	}}
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){
		func() (*domain.BackendResult, error) {
			return &domain.BackendResult{
				Route: domain.RouteStructuredData,
				Rows:  []domain.Row{{"order_id": "12345", "status": "shipped"}},
			}, nil
		},
	}}
	synth := &stubSynth{answer: "Order 12345 has shipped."}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RouteStructuredData: backend,
	}, synth)

	suspended, err := eng.RunTurn(context.Background(), newTurn("Where is my order?"))
	require.NoError(t, err)

	require.True(t, suspended.AwaitingReply)
	assert.True(t, suspended.Terminal())
	assert.Contains(t, suspended.PendingQuestion, "order number")
	assert.Equal(t, 1, suspended.ClarifyAttempts)
	assert.Empty(t, suspended.FinalAnswer)
	// Stale judgment must not survive the clarification boundary.
	assert.Empty(t, string(suspended.Intent))
	assert.Zero(t, suspended.Confidence)

	trailBefore := len(suspended.Trail)

	final, err := eng.Resume(context.Background(), suspended, "It's order 12345")
	require.NoError(t, err)

	assert.Equal(t, "Order 12345 has shipped.", final.FinalAnswer)
	assert.Equal(t, 1, final.ClarifyAttempts)
	assert.Equal(t, domain.RouteStructuredData, final.Route)
	assert.Greater(t, len(final.Trail), trailBefore, "trail must be preserved across suspension")
	assert.Contains(t, final.Query, "order 12345")
}

func TestEngine_LowConfidenceAutoElicitation(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentWeb, 0.55),
		judgment(domain.IntentWeb, 0.90),
	}}
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){
		func() (*domain.BackendResult, error) {
			return &domain.BackendResult{
				Route:      domain.RouteWeb,
				WebResults: []domain.WebResult{{Title: "t", Snippet: "s", URL: "https://example.com"}},
			}, nil
		},
	}}
	synth := &stubSynth{answer: "Here is what I found."}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RouteWeb: backend,
	}, synth, runtime.WithElicitor(elicitorFunc(func(ctx context.Context, q string, missing []string) (string, error) {
		return "I mean the latest model", nil
	})))

	final, err := eng.RunTurn(context.Background(), newTurn("tell me about it"))
	require.NoError(t, err)

	assert.False(t, final.AwaitingReply)
	assert.Equal(t, "Here is what I found.", final.FinalAnswer)
	assert.Equal(t, 1, final.ClarifyAttempts)
	assert.Equal(t, 2, classifier.calls, "classification must re-run with augmented context")
}

func TestEngine_RetryExhaustion(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentStructuredData, 0.95),
	}}
	retryable := domain.NewRetryable("query validation failed: unknown column", nil)
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){
		backendError(retryable),
		backendError(retryable),
		backendError(retryable),
	}}
	synth := &stubSynth{answer: "unreachable"}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RouteStructuredData: backend,
	}, synth)

	final, err := eng.RunTurn(context.Background(), newTurn("How many orders shipped last week?"))
	require.NoError(t, err)

	assert.Equal(t, int32(3), backend.calls, "bound=2 allows two retries after the first attempt")
	assert.Equal(t, 2, final.RetryAttempts)
	assert.Empty(t, final.FinalAnswer)
	require.NotNil(t, final.Handoff)
	assert.Contains(t, final.Handoff.Reason, "retry bound")
	assert.NotEmpty(t, final.Handoff.History)

	// The adapter must receive repair hints on every retry.
	require.Len(t, backend.hints, 3)
	assert.Empty(t, backend.hints[0])
	assert.Contains(t, backend.hints[1], "query validation failed")
	assert.Contains(t, backend.hints[2], "query validation failed")
}

func TestEngine_FatalBackendGoesStraightToFallback(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentPolicy, 0.9),
	}}
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){
		backendError(domain.NewFatal("vector store unreachable", errors.New("dial tcp: refused"))),
	}}
	synth := &stubSynth{answer: "unreachable"}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RoutePolicy: backend,
	}, synth)

	final, err := eng.RunTurn(context.Background(), newTurn("What is the warranty?"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), backend.calls)
	assert.Equal(t, 0, final.RetryAttempts)
	require.NotNil(t, final.Handoff)
	assert.Contains(t, final.Handoff.Reason, "vector store unreachable")
}

func TestEngine_ComplaintOverridesConfidence(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentComplaint, 0.40),
	}}
	policyBackend := &scriptedBackend{script: []func() (*domain.BackendResult, error){passages(1)}}
	synth := &stubSynth{answer: "unreachable"}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RoutePolicy: policyBackend,
	}, synth)

	final, err := eng.RunTurn(context.Background(), newTurn("This is unacceptable, I want a refund now!"))
	require.NoError(t, err)

	assert.Equal(t, domain.RouteFallback, final.Route)
	assert.Equal(t, 0, final.ClarifyAttempts, "complaints bypass clarification entirely")
	assert.Equal(t, int32(0), policyBackend.calls)
	require.NotNil(t, final.Handoff)
	assert.NotEmpty(t, final.Handoff.Rationale)
	assert.Empty(t, final.FinalAnswer)
}

func TestEngine_TrailLengthEqualsTransitionCount(t *testing.T) {
	var hookCount int32
	hooks := domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, ev *domain.TransitionEvent) {
			atomic.AddInt32(&hookCount, 1)
		},
	}

	cases := []struct {
		name       string
		classifier *scriptedClassifier
		backend    *scriptedBackend
	}{
		{
			"clean route",
			&scriptedClassifier{script: []func() (*ports.Judgment, error){judgment(domain.IntentPolicy, 0.9)}},
			&scriptedBackend{script: []func() (*domain.BackendResult, error){passages(2)}},
		},
		{
			"retry then success",
			&scriptedClassifier{script: []func() (*ports.Judgment, error){judgment(domain.IntentPolicy, 0.9)}},
			&scriptedBackend{script: []func() (*domain.BackendResult, error){
				backendError(domain.NewRetryable("transient", nil)),
				passages(1),
			}},
		},
		{
			"complaint",
			&scriptedClassifier{script: []func() (*ports.Judgment, error){judgment(domain.IntentComplaint, 0.2)}},
			&scriptedBackend{script: []func() (*domain.BackendResult, error){passages(1)}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			atomic.StoreInt32(&hookCount, 0)
			eng := runtime.NewEngine(tc.classifier, map[domain.Route]ports.Backend{
				domain.RoutePolicy: tc.backend,
			}, &stubSynth{answer: "ok"}, runtime.WithLifecycleHooks(hooks))

			final, err := eng.RunTurn(context.Background(), newTurn("q"))
			require.NoError(t, err)
			assert.Equal(t, int(atomic.LoadInt32(&hookCount)), len(final.Trail),
				"every transition appends exactly one trail entry")
		})
	}
}

func TestEngine_TerminationUnderAdversarialSequences(t *testing.T) {
	t.Run("always low confidence", func(t *testing.T) {
		classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
			judgment(domain.IntentPolicy, 0.10),
		}}
		eng := runtime.NewEngine(classifier, nil, &stubSynth{answer: "x"},
			runtime.WithElicitor(elicitorFunc(func(ctx context.Context, q string, m []string) (string, error) {
				return "still vague", nil
			})))

		final, err := eng.RunTurn(context.Background(), newTurn("hmm"))
		require.NoError(t, err)
		assert.True(t, final.Terminal())
		assert.Equal(t, 2, final.ClarifyAttempts)
		require.NotNil(t, final.Handoff)
		assert.Contains(t, final.Handoff.Reason, "clarification bound")
	})

	t.Run("always retryable classifier failure", func(t *testing.T) {
		classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
			classifierError(&domain.TurnError{Kind: domain.KindClassifierMalformed, Reason: "bad json", Retryable: true}),
		}}
		eng := runtime.NewEngine(classifier, nil, &stubSynth{answer: "x"})

		final, err := eng.RunTurn(context.Background(), newTurn("q"))
		require.NoError(t, err)
		assert.True(t, final.Terminal())
		require.NotNil(t, final.Handoff)
		assert.Equal(t, 3, classifier.calls, "first attempt plus two bounded retries")
	})

	t.Run("always retryable backend failure", func(t *testing.T) {
		classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
			judgment(domain.IntentWeb, 0.99),
		}}
		backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){
			backendError(domain.NewRateLimited("upstream rate limit", nil)),
		}}
		eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
			domain.RouteWeb: backend,
		}, &stubSynth{answer: "x"})

		final, err := eng.RunTurn(context.Background(), newTurn("q"))
		require.NoError(t, err)
		assert.True(t, final.Terminal())
		require.NotNil(t, final.Handoff)
	})
}

func TestEngine_SingleBackendPerTurn(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentWeb, 0.95),
	}}
	policy := &scriptedBackend{script: []func() (*domain.BackendResult, error){passages(1)}}
	structured := &scriptedBackend{script: []func() (*domain.BackendResult, error){passages(1)}}
	web := &scriptedBackend{script: []func() (*domain.BackendResult, error){
		func() (*domain.BackendResult, error) {
			return &domain.BackendResult{WebResults: []domain.WebResult{{Title: "t", URL: "u"}}}, nil
		},
	}}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RoutePolicy:         policy,
		domain.RouteStructuredData: structured,
		domain.RouteWeb:            web,
	}, &stubSynth{answer: "ok"})

	final, err := eng.RunTurn(context.Background(), newTurn("latest news about the product"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), web.calls)
	assert.Equal(t, int32(0), policy.calls)
	assert.Equal(t, int32(0), structured.calls)
	require.NotNil(t, final.Result)
	assert.Equal(t, domain.RouteWeb, final.Result.Route)
}

func TestEngine_ClassifierMalformedThenRecovers(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		classifierError(&domain.TurnError{Kind: domain.KindClassifierMalformed, Reason: "truncated output", Retryable: true}),
		judgment(domain.IntentPolicy, 0.85),
	}}
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){passages(1)}}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RoutePolicy: backend,
	}, &stubSynth{answer: "done"})

	final, err := eng.RunTurn(context.Background(), newTurn("return policy?"))
	require.NoError(t, err)

	assert.Equal(t, "done", final.FinalAnswer)
	assert.Equal(t, 2, classifier.calls)
	assert.Equal(t, 1, final.RetryAttempts)
}

func TestEngine_InvalidJudgmentIsMalformed(t *testing.T) {
	// Intent without rationale violates the auditability invariant and must
	// be treated as malformed output, not acted upon.
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		func() (*ports.Judgment, error) {
			return &ports.Judgment{Intent: domain.IntentPolicy, Confidence: 0.9}, nil
		},
	}}
	eng := runtime.NewEngine(classifier, nil, &stubSynth{answer: "x"})

	final, err := eng.RunTurn(context.Background(), newTurn("q"))
	require.NoError(t, err)
	require.NotNil(t, final.Handoff)
	assert.Contains(t, final.Handoff.Reason, "rationale")
}

func TestEngine_SynthesisFailureStillTerminates(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentPolicy, 0.9),
	}}
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){passages(1)}}
	synth := &stubSynth{err: errors.New("model overloaded")}

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RoutePolicy: backend,
	}, synth)

	final, err := eng.RunTurn(context.Background(), newTurn("q"))
	require.NoError(t, err)

	assert.True(t, final.Terminal())
	assert.NotEmpty(t, final.FinalAnswer, "synthesis failure is reported as an error final-answer")
	assert.Equal(t, int32(1), backend.calls, "no re-dispatch after synthesis failure")
}

func TestEngine_TurnTimeoutForcesFallback(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentWeb, 0.9),
	}}
	blocking := ports.BackendFunc(func(ctx context.Context, req ports.BackendRequest) (*domain.BackendResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RouteWeb: blocking,
	}, &stubSynth{answer: "x"}, runtime.WithTurnTimeout(30*time.Millisecond))

	final, err := eng.RunTurn(context.Background(), newTurn("q"))
	require.NoError(t, err)

	assert.True(t, final.Terminal())
	require.NotNil(t, final.Handoff)
	assert.True(t, strings.Contains(final.Handoff.Reason, string(domain.KindTurnTimeout)) ||
		strings.Contains(final.Handoff.Reason, "deadline"),
		"handoff reason should be timeout-classified, got %q", final.Handoff.Reason)
}

func TestEngine_NoBackendForRoute(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentStructuredData, 0.9),
	}}
	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{}, &stubSynth{answer: "x"})

	final, err := eng.RunTurn(context.Background(), newTurn("q"))
	require.NoError(t, err)
	require.NotNil(t, final.Handoff)
	assert.Contains(t, final.Handoff.Reason, "no backend registered")
}

func TestEngine_ResumeRequiresSuspendedTurn(t *testing.T) {
	eng := runtime.NewEngine(
		&scriptedClassifier{script: []func() (*ports.Judgment, error){judgment(domain.IntentPolicy, 0.9)}},
		nil, &stubSynth{answer: "x"})

	_, err := eng.Resume(context.Background(), newTurn("q"), "reply")
	assert.Error(t, err)
}

func TestEngine_InputStateNotMutated(t *testing.T) {
	classifier := &scriptedClassifier{script: []func() (*ports.Judgment, error){
		judgment(domain.IntentPolicy, 0.9),
	}}
	backend := &scriptedBackend{script: []func() (*domain.BackendResult, error){passages(1)}}
	eng := runtime.NewEngine(classifier, map[domain.Route]ports.Backend{
		domain.RoutePolicy: backend,
	}, &stubSynth{answer: "ok"})

	original := newTurn("q")
	_, err := eng.RunTurn(context.Background(), original)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseStart, original.Phase)
	assert.Empty(t, original.Trail)
}

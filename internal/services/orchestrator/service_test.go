package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/common"
	"github.com/ternarybob/cogito/internal/interfaces"
	"github.com/ternarybob/cogito/internal/models"
	"github.com/ternarybob/cogito/internal/queue"
	"github.com/ternarybob/cogito/internal/ratelimit"
	"github.com/ternarybob/cogito/internal/schemas"
	"github.com/ternarybob/cogito/internal/services/llm"
)

// scriptedProvider answers every call with the configured respond func and
// records the requests it saw.
type scriptedProvider struct {
	mu       sync.Mutex
	requests []*interfaces.ContentRequest
	respond  func(call int, req *interfaces.ContentRequest) (*interfaces.ContentResponse, error)
}

func (p *scriptedProvider) GenerateContent(ctx context.Context, req *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	call := len(p.requests)
	p.mu.Unlock()
	return p.respond(call, req)
}

func (p *scriptedProvider) GetProviderType() interfaces.ProviderType {
	return interfaces.ProviderClaude
}
func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) lastRequest() *interfaces.ContentRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

type scriptedSource struct {
	provider interfaces.Provider
}

func (s *scriptedSource) ProviderFor(ctx context.Context, model string) (interfaces.Provider, error) {
	return s.provider, nil
}

// recordingStore is an in-memory InteractionStorage.
type recordingStore struct {
	mu      sync.Mutex
	entries []*models.InteractionLogEntry
}

func (m *recordingStore) Append(entry *models.InteractionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *recordingStore) GetByJob(jobID string) ([]*models.InteractionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.InteractionLogEntry
	for _, e := range m.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *recordingStore) ListRecent(limit int) ([]*models.InteractionLogEntry, error) {
	return nil, nil
}
func (m *recordingStore) ListRange(from, to time.Time) ([]*models.InteractionLogEntry, error) {
	return nil, nil
}
func (m *recordingStore) ListByUser(userID string, limit int) ([]*models.InteractionLogEntry, error) {
	return nil, nil
}
func (m *recordingStore) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

const summaryResponse = `{
	"total_feedback_count": 3,
	"key_themes": ["pricing"],
	"summary": "Feedback centers on pricing complexity; users want fewer tiers and clearer comparisons between the plans on offer."
}`

const generationResponse = `{
	"ideas": [{
		"title": "Usage-based starter tier",
		"description": "Introduce a metered entry plan that charges only for actual usage, removing the need for small teams to commit to a fixed monthly tier before they understand their own consumption patterns and growth trajectory.",
		"key_benefits": ["Lower barrier to entry"],
		"implementation_approach": "Add metering to the billing pipeline and expose a pay-as-you-go plan in the pricing page.",
		"success_metrics": ["Trial-to-paid conversion rate"]
	}]
}`

// newTestService builds a Service around a scripted provider so no real
// API clients are created.
func newTestService(t *testing.T, provider *scriptedProvider) (*Service, *recordingStore) {
	t.Helper()

	logger := arbor.NewLogger()
	cfg := common.NewDefaultConfig()
	cfg.Queue.Capacity = 32
	cfg.Queue.MaxConcurrency = 4

	limiter := ratelimit.NewLimiter(ratelimit.BucketConfig{
		RequestCapacity:        cfg.RateLimit.RequestCapacity,
		RequestRefillPerSecond: cfg.RateLimit.RequestRefillPerSecond,
		TokenCapacity:          cfg.RateLimit.TokenCapacity,
		TokenRefillPerSecond:   cfg.RateLimit.TokenRefillPerSecond,
	}, logger)

	admission := queue.NewAdmissionQueue(cfg.Queue.Capacity, logger)
	registry := schemas.NewRegistry()
	store := &recordingStore{}
	retry := &llm.RetryConfig{
		MaxRetries:        1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	dispatcher := queue.NewDispatcher(
		queue.DispatcherConfig{MaxConcurrency: cfg.Queue.MaxConcurrency, PollInterval: 5 * time.Millisecond},
		admission, limiter, &scriptedSource{provider: provider}, registry, store, retry, logger,
	)

	svc := &Service{
		cfg:        cfg,
		factory:    llm.NewProviderFactory(&cfg.Claude, &cfg.Gemini, &cfg.LLM, logger),
		queue:      admission,
		limiter:    limiter,
		dispatcher: dispatcher,
		registry:   registry,
		store:      store,
		logger:     logger,
		jobs:       make(map[string]*models.Job),
	}
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})

	return svc, store
}

func okProvider(body string) *scriptedProvider {
	return &scriptedProvider{
		respond: func(call int, req *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
			return &interfaces.ContentResponse{
				Text:     body,
				Provider: interfaces.ProviderClaude,
				Model:    req.Model,
				Usage:    interfaces.ContentUsage{PromptTokens: 40, CompletionTokens: 80},
			}, nil
		},
	}
}

func TestSubmitWaitReturnsTypedResult(t *testing.T) {
	svc, store := newTestService(t, okProvider(summaryResponse))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := svc.SubmitWait(ctx, SubmitRequest{
		Kind: models.JobKindSummarize,
		Payload: models.JobPayload{
			SchemaID: schemas.SchemaFeedbackSummary,
			Prompt:   "summarize the feedback",
			UserID:   "user-1",
		},
	})
	require.NoError(t, err)

	out, ok := result.(*schemas.FeedbackSummaryOutput)
	require.True(t, ok, "result is %T", result)
	assert.Equal(t, 3, out.TotalFeedbackCount)
	assert.Equal(t, []string{"pricing"}, out.KeyThemes)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSubmitRejectsUnknownSchema(t *testing.T) {
	svc, _ := newTestService(t, okProvider(summaryResponse))

	_, err := svc.Submit(SubmitRequest{
		Kind:    models.JobKindSummarize,
		Payload: models.JobPayload{SchemaID: "nonexistent", Prompt: "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema")
}

func TestSubmitAppliesDefaultModel(t *testing.T) {
	provider := okProvider(summaryResponse)
	svc, _ := newTestService(t, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := svc.SubmitWait(ctx, SubmitRequest{
		Kind: models.JobKindSummarize,
		Payload: models.JobPayload{
			SchemaID: schemas.SchemaFeedbackSummary,
			Prompt:   "summarize",
		},
	})
	require.NoError(t, err)

	req := provider.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "claude-sonnet-4-20250514", req.Model)
}

func TestSubmitWaitReportsFailure(t *testing.T) {
	provider := &scriptedProvider{
		respond: func(call int, req *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
			return nil, errors.New("401 invalid api key")
		},
	}
	svc, _ := newTestService(t, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := svc.SubmitWait(ctx, SubmitRequest{
		Kind: models.JobKindSummarize,
		Payload: models.JobPayload{
			SchemaID: schemas.SchemaFeedbackSummary,
			Prompt:   "summarize",
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(models.JobStateFailed))
	// The provider's error stays reachable through the wrap.
	assert.Contains(t, err.Error(), "401 invalid api key")
}

func TestSubmitBatchIsIndependent(t *testing.T) {
	svc, _ := newTestService(t, okProvider(summaryResponse))

	handles, errs := svc.SubmitBatch([]SubmitRequest{
		{Kind: models.JobKindSummarize, Payload: models.JobPayload{SchemaID: schemas.SchemaFeedbackSummary, Prompt: "a"}},
		{Kind: models.JobKindSummarize, Payload: models.JobPayload{SchemaID: "bogus", Prompt: "b"}},
		{Kind: models.JobKindSummarize, Payload: models.JobPayload{SchemaID: schemas.SchemaFeedbackSummary, Prompt: "c"}},
	})
	require.Len(t, handles, 3)
	require.Len(t, errs, 3)

	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.Nil(t, handles[1])
	assert.NoError(t, errs[2])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range []int{0, 2} {
		state, _, err := handles[h].Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.JobStateSucceeded, state)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	svc, _ := newTestService(t, okProvider(summaryResponse))
	err := svc.Cancel("no-such-job")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestMetricsCountCompletedJobs(t *testing.T) {
	svc, _ := newTestService(t, okProvider(summaryResponse))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		_, err := svc.SubmitWait(ctx, SubmitRequest{
			Kind: models.JobKindSummarize,
			Payload: models.JobPayload{
				SchemaID: schemas.SchemaFeedbackSummary,
				Prompt:   "summarize",
			},
		})
		require.NoError(t, err)
	}

	m := svc.Metrics()
	assert.Equal(t, uint64(3), m.Succeeded)
	assert.Equal(t, uint64(0), m.Failed)
	assert.Equal(t, 0, m.QueueDepth)
	assert.NotEmpty(t, m.RateLimits)
	assert.Contains(t, m.AvgLatencyMs, string(models.JobKindSummarize))
}

func TestShutdownRejectsNewSubmissions(t *testing.T) {
	svc, _ := newTestService(t, okProvider(summaryResponse))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	_, err := svc.Submit(SubmitRequest{
		Kind:    models.JobKindSummarize,
		Payload: models.JobPayload{SchemaID: schemas.SchemaFeedbackSummary, Prompt: "late"},
	})
	assert.ErrorIs(t, err, models.ErrShuttingDown)
}

func TestGenerateIdeasOperation(t *testing.T) {
	provider := okProvider(generationResponse)
	svc, _ := newTestService(t, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := svc.GenerateIdeas(ctx, GenerateIdeasRequest{
		ProblemDescription: "Small teams churn during onboarding",
		TargetAudience:     "startup founders",
		NumIdeas:           1,
		UserID:             "user-1",
	})
	require.NoError(t, err)
	require.Len(t, out.Ideas, 1)
	assert.Equal(t, "Usage-based starter tier", out.Ideas[0].Title)

	req := provider.lastRequest()
	require.NotNil(t, req)
	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "Small teams churn during onboarding")
	assert.Contains(t, prompt, "startup founders")
}

func TestSummarizeFeedbackOperation(t *testing.T) {
	provider := okProvider(summaryResponse)
	svc, _ := newTestService(t, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := svc.SummarizeFeedback(ctx, SummarizeFeedbackRequest{
		IdeaID:    "idea-9",
		IdeaTitle: "Usage-based starter tier",
		Feedback:  []string{"too many tiers", "pricing page is confusing"},
		UserID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalFeedbackCount)

	req := provider.lastRequest()
	require.NotNil(t, req)
	assert.Contains(t, req.Messages[0].Content, "too many tiers")
}

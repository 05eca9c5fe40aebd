package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/service"
)

type fakeResponse struct {
	err   error
	text  string
	delay time.Duration
}

// fakeClient replays responses in order, repeating the last one.
type fakeClient struct {
	responses []fakeResponse
	prompts   []Prompt
	mu        sync.Mutex
}

func (f *fakeClient) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	f.mu.Lock()
	idx := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	resp := f.responses[idx]
	f.mu.Unlock()

	if resp.delay > 0 {
		timer := time.NewTimer(resp.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		}
	}
	if resp.err != nil {
		return Completion{}, resp.err
	}
	return Completion{Text: resp.text, InputTokens: 100, OutputTokens: 20}, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testTaxonomy() *model.Taxonomy {
	return model.NewTaxonomy([]model.Category{
		{Name: "중식대"}, {Name: "세금"}, {Name: "기타"}, {Name: "Software"},
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit = 60000
	cfg.Timeout = time.Second
	return cfg
}

func fastRetry() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func newTestPredictor(t *testing.T, client Client, cfg Config) *Predictor {
	t.Helper()
	p, err := NewPredictor(client, testTaxonomy(), cfg, WithRetryOptions(fastRetry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func xmlResponse(category, confidence string) fakeResponse {
	return fakeResponse{text: "<prediction><category>" + category + "</category><confidence>" + confidence + "</confidence><reasoning>r</reasoning></prediction>"}
}

func request(key string) PredictionRequest {
	return PredictionRequest{Key: key, Amount: decimal.NewFromInt(9000)}
}

func TestPredictor_Validation(t *testing.T) {
	tests := []struct {
		name           string
		response       fakeResponse
		wantCategory   string
		wantFlags      []Flag
		wantConfidence float64
		wantOOT        bool
	}{
		{
			name:           "valid",
			response:       xmlResponse("중식대", "0.92"),
			wantCategory:   "중식대",
			wantConfidence: 0.92,
		},
		{
			name:           "missing confidence defaults",
			response:       fakeResponse{text: "<prediction><category>세금</category></prediction>"},
			wantCategory:   "세금",
			wantConfidence: 0.5,
			wantFlags:      []Flag{FlagConfidenceDefaulted},
		},
		{
			name:           "high confidence clipped",
			response:       xmlResponse("세금", "1.7"),
			wantCategory:   "세금",
			wantConfidence: 1.0,
			wantFlags:      []Flag{FlagConfidenceClipped},
		},
		{
			name:           "negative confidence clipped",
			response:       xmlResponse("기타", "-0.2"),
			wantCategory:   "기타",
			wantConfidence: 0,
			wantFlags:      []Flag{FlagConfidenceClipped},
		},
		{
			name:           "case-insensitive category canonicalized",
			response:       xmlResponse("software", "0.8"),
			wantCategory:   "Software",
			wantConfidence: 0.8,
			wantFlags:      []Flag{FlagCanonicalized},
		},
		{
			name:           "unknown category flagged and kept",
			response:       xmlResponse("여비교통비", "0.7"),
			wantCategory:   "여비교통비",
			wantConfidence: 0.7,
			wantOOT:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{responses: []fakeResponse{tt.response}}
			p := newTestPredictor(t, client, testConfig())

			out := p.Predict(context.Background(), request("와와식당"))

			require.True(t, out.Available())
			assert.Equal(t, OutcomePredicted, out.Kind)
			assert.Equal(t, tt.wantCategory, out.Category)
			assert.InDelta(t, tt.wantConfidence, out.Confidence, 1e-9)
			assert.Equal(t, tt.wantFlags, out.Flags)
			assert.Equal(t, tt.wantOOT, out.OutOfTaxonomy)
			assert.Equal(t, 1, out.Attempts)
			assert.Empty(t, out.Reason())
		})
	}
}

func TestPredictor_RetriesTransientFailure(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &common.RetryableError{Err: errors.New("503"), Retryable: true}},
		xmlResponse("중식대", "0.9"),
	}}
	p := newTestPredictor(t, client, testConfig())

	out := p.Predict(context.Background(), request("와와식당"))

	require.True(t, out.Available())
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, client.calls())
}

func TestPredictor_NoPredictionOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		response   fakeResponse
		timeout    time.Duration
		wantKind   OutcomeKind
		wantCalls  int
		wantReason string
	}{
		{
			name:       "transient failures exhaust retries",
			response:   fakeResponse{err: &common.RetryableError{Err: errors.New("502 bad gateway"), Retryable: true}},
			wantKind:   OutcomeTransientFailure,
			wantCalls:  3,
			wantReason: "service error after 3 attempts",
		},
		{
			name:       "timeouts exhaust retries",
			response:   fakeResponse{delay: time.Second, text: "never"},
			timeout:    10 * time.Millisecond,
			wantKind:   OutcomeTransientFailure,
			wantCalls:  3,
			wantReason: "timeout after 3 attempts",
		},
		{
			name:       "rate limits exhaust retries",
			response:   fakeResponse{err: common.ErrRateLimit},
			wantKind:   OutcomeTransientFailure,
			wantCalls:  3,
			wantReason: "rate limited after 3 attempts",
		},
		{
			name:       "malformed responses exhaust retries",
			response:   fakeResponse{text: "I am not sure."},
			wantKind:   OutcomeMalformed,
			wantCalls:  3,
			wantReason: "malformed response after 3 attempts",
		},
		{
			name:       "auth failures are not retried",
			response:   fakeResponse{err: &common.RetryableError{Err: errors.New("401 unauthorized"), Retryable: false}},
			wantKind:   OutcomeTransientFailure,
			wantCalls:  1,
			wantReason: "service error after 1 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.timeout > 0 {
				cfg.Timeout = tt.timeout
			}
			client := &fakeClient{responses: []fakeResponse{tt.response}}
			p := newTestPredictor(t, client, cfg)

			out := p.Predict(context.Background(), request("주식회사 신사"))

			assert.False(t, out.Available())
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantCalls, client.calls())
			assert.Contains(t, out.Reason(), tt.wantReason)
			assert.Error(t, out.Err)
		})
	}
}

func TestPredictor_Canceled(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{xmlResponse("중식대", "0.9")}}
	p := newTestPredictor(t, client, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := p.Predict(ctx, request("와와식당"))
	assert.Equal(t, OutcomeCanceled, out.Kind)
	assert.Equal(t, "canceled", out.Reason())
	assert.Zero(t, client.calls())
}

func TestPredictor_CanceledDuringCall(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{delay: time.Second, text: "never"}}}
	p := newTestPredictor(t, client, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := p.Predict(ctx, request("와와식당"))
	assert.Equal(t, OutcomeCanceled, out.Kind)
	assert.Equal(t, 1, client.calls())
}

func TestPredictor_CacheByKeyAndAmount(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{xmlResponse("중식대", "0.9")}}
	p := newTestPredictor(t, client, testConfig())
	ctx := context.Background()

	first := p.Predict(ctx, request("와와식당"))
	second := p.Predict(ctx, request("와와식당"))

	assert.Equal(t, 1, client.calls())
	assert.False(t, first.Has(FlagCached))
	assert.True(t, second.Has(FlagCached))
	assert.Equal(t, first.Category, second.Category)
	assert.InDelta(t, first.Confidence, second.Confidence, 1e-9)

	other := request("와와식당")
	other.Amount = decimal.NewFromInt(15000)
	p.Predict(ctx, other)
	assert.Equal(t, 2, client.calls())

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Calls)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(200), stats.InputTokens)
	assert.Equal(t, int64(40), stats.OutputTokens)
}

func TestPredictor_FailuresAreNotCached(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &common.RetryableError{Err: errors.New("401"), Retryable: false}},
		xmlResponse("중식대", "0.9"),
	}}
	p := newTestPredictor(t, client, testConfig())

	assert.False(t, p.Predict(context.Background(), request("와와식당")).Available())
	assert.True(t, p.Predict(context.Background(), request("와와식당")).Available())
}

func TestPredictor_BoundsConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 2

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	client := clientFunc(func(ctx context.Context, _ Prompt) (Completion, error) {
		mu.Lock()
		active++
		maxSeen = max(maxSeen, active)
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return Completion{Text: "<prediction><category>중식대</category><confidence>0.9</confidence></prediction>"}, nil
	})
	p := newTestPredictor(t, client, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request("가맹점")
			req.Amount = decimal.NewFromInt(int64(1000 + i))
			p.Predict(context.Background(), req)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen, 2)
}

func TestNewPredictor_Validation(t *testing.T) {
	_, err := NewPredictor(nil, testTaxonomy(), testConfig())
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewPredictor(&fakeClient{}, model.NewTaxonomy(nil), testConfig())
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestStats_EstimatedCost(t *testing.T) {
	s := Stats{Calls: 2, InputTokens: 1_000_000, OutputTokens: 200_000}
	assert.InDelta(t, 6.0, s.EstimatedCostUSD(), 1e-9)
	assert.InDelta(t, 500_000, s.AvgInputTokens(), 1e-9)
	assert.InDelta(t, 100_000, s.AvgOutputTokens(), 1e-9)
	assert.Zero(t, Stats{}.AvgInputTokens())
}

type clientFunc func(ctx context.Context, prompt Prompt) (Completion, error)

func (f clientFunc) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	return f(ctx, prompt)
}

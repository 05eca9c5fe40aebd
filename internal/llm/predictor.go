package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/metrics"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/service"
)

// OutcomeKind classifies the result of a prediction.
type OutcomeKind int

// Outcome kinds. Only OutcomePredicted carries a category.
const (
	OutcomePredicted OutcomeKind = iota
	OutcomeTransientFailure
	OutcomeMalformed
	OutcomeCanceled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePredicted:
		return "predicted"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Flag notes an adjustment made while validating a prediction.
type Flag string

// Validation flags.
const (
	FlagConfidenceClipped   Flag = "confidence_clipped"
	FlagConfidenceDefaulted Flag = "confidence_defaulted"
	FlagCanonicalized       Flag = "category_canonicalized"
	FlagCached              Flag = "cached"
)

// Outcome is the result of Predict. It never carries an unvalidated value.
type Outcome struct {
	Err           error
	Category      string
	Reasoning     string
	Flags         []Flag
	Confidence    float64
	Attempts      int
	Kind          OutcomeKind
	OutOfTaxonomy bool
}

// Available reports whether the outcome carries a prediction.
func (o Outcome) Available() bool {
	return o.Kind == OutcomePredicted
}

// Has reports whether flag was raised.
func (o Outcome) Has(flag Flag) bool {
	for _, f := range o.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Reason describes why no prediction is available.
func (o Outcome) Reason() string {
	switch o.Kind {
	case OutcomePredicted:
		return ""
	case OutcomeCanceled:
		return "canceled"
	case OutcomeMalformed:
		return fmt.Sprintf("malformed response after %d attempts", o.Attempts)
	case OutcomeTransientFailure:
		switch {
		case errors.Is(o.Err, context.DeadlineExceeded):
			return fmt.Sprintf("timeout after %d attempts", o.Attempts)
		case errors.Is(o.Err, common.ErrRateLimit):
			return fmt.Sprintf("rate limited after %d attempts", o.Attempts)
		case o.Err != nil:
			return fmt.Sprintf("service error after %d attempts: %v", o.Attempts, o.Err)
		}
		return fmt.Sprintf("service error after %d attempts", o.Attempts)
	default:
		return o.Kind.String()
	}
}

// Predictor wraps a Client with validation, retries, pacing and caching.
type Predictor struct {
	client            Client
	taxonomy          *model.Taxonomy
	cache             *cache.Cache
	limiter           *rate.Limiter
	sem               *semaphore.Weighted
	logger            *slog.Logger
	metrics           *metrics.Metrics
	system            string
	stats             statsRecorder
	retryOpts         service.RetryOptions
	timeout           time.Duration
	defaultConfidence float64
	maxTokens         int
	temperature       float64
}

// PredictorOption configures a Predictor.
type PredictorOption func(*Predictor)

// WithLogger sets the predictor's logger.
func WithLogger(logger *slog.Logger) PredictorOption {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records prediction outcomes and token usage.
func WithMetrics(m *metrics.Metrics) PredictorOption {
	return func(p *Predictor) {
		p.metrics = m
	}
}

// WithRetryOptions overrides the retry policy derived from the config.
func WithRetryOptions(opts service.RetryOptions) PredictorOption {
	return func(p *Predictor) {
		p.retryOpts = opts
	}
}

// NewPredictor creates a predictor over client for the given taxonomy.
func NewPredictor(client Client, tax *model.Taxonomy, cfg Config, opts ...PredictorOption) (*Predictor, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: llm client is required", common.ErrMissingConfig)
	}
	if tax.Len() == 0 {
		return nil, fmt.Errorf("%w: taxonomy is empty", common.ErrInvalidConfig)
	}

	defaults := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.DefaultConfidence <= 0 || cfg.DefaultConfidence > 1 {
		cfg.DefaultConfidence = defaults.DefaultConfidence
	}

	retryOpts := common.DefaultRetryOptions()
	if cfg.MaxRetries > 0 {
		retryOpts.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retryOpts.InitialDelay = cfg.RetryDelay
	}

	perSecond := rate.Limit(float64(cfg.RateLimit) / 60.0)
	p := &Predictor{
		client:            client,
		taxonomy:          tax,
		system:            BuildSystemPrompt(tax),
		cache:             cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		limiter:           rate.NewLimiter(perSecond, cfg.MaxConcurrent),
		sem:               semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:            slog.Default(),
		retryOpts:         retryOpts,
		timeout:           cfg.Timeout,
		defaultConfidence: cfg.DefaultConfidence,
		maxTokens:         cfg.MaxTokens,
		temperature:       cfg.Temperature,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Predict asks the provider for a category. It never returns an error: every
// failure mode is reported as an Outcome kind.
func (p *Predictor) Predict(ctx context.Context, req PredictionRequest) Outcome {
	start := time.Now()
	outcome := p.predict(ctx, req)
	p.metrics.ObservePrediction(outcome.Kind.String(), time.Since(start))
	return outcome
}

func (p *Predictor) predict(ctx context.Context, req PredictionRequest) Outcome {
	if ctx.Err() != nil {
		return Outcome{Kind: OutcomeCanceled, Err: ctx.Err()}
	}

	cacheKey := req.Key + "|" + req.Amount.String()
	if cached, found := p.cache.Get(cacheKey); found {
		p.stats.cacheHit()
		out := cached.(Outcome) //nolint:forcetypeassert // only Outcome values are stored
		out.Flags = append(append([]Flag(nil), out.Flags...), FlagCached)
		p.logger.Debug("Prediction cache hit", "merchant_key", req.Key)
		return out
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Outcome{Kind: OutcomeCanceled, Err: err}
	}
	defer p.sem.Release(1)

	prompt := Prompt{
		System:      p.system,
		User:        BuildUserPrompt(req),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	var (
		parsed   Prediction
		attempts int
	)
	err := common.WithRetry(ctx, func(attempt int) error {
		attempts = attempt
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		completion, err := p.client.Complete(callCtx, prompt)
		p.stats.call(completion, err)
		p.metrics.AddTokens(completion.InputTokens, completion.OutputTokens)
		if err != nil {
			if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: attempt timed out after %s: %w", common.ErrPredictorTransient, p.timeout, context.DeadlineExceeded)
			}
			return err
		}

		pred, err := ParsePrediction(completion.Text)
		if err != nil {
			p.logger.Warn("Malformed prediction response",
				"merchant_key", req.Key,
				"attempt", attempt,
				"response", truncate(completion.Text, 200))
			return err
		}
		parsed = pred
		return nil
	}, p.retryOpts)

	if err != nil {
		out := Outcome{Err: err, Attempts: attempts}
		switch {
		case ctx.Err() != nil:
			out.Kind = OutcomeCanceled
		case errors.Is(err, common.ErrMalformedResponse):
			out.Kind = OutcomeMalformed
		default:
			out.Kind = OutcomeTransientFailure
		}
		p.logger.Warn("No prediction available",
			"merchant_key", req.Key,
			"outcome", out.Kind.String(),
			"attempts", attempts,
			"error", err)
		return out
	}

	out := p.validate(req.Key, parsed)
	out.Attempts = attempts
	p.cache.Set(cacheKey, out, cache.DefaultExpiration)
	return out
}

// validate clips the confidence and checks the category against the taxonomy.
func (p *Predictor) validate(key string, pred Prediction) Outcome {
	out := Outcome{
		Kind:       OutcomePredicted,
		Category:   pred.Category,
		Reasoning:  pred.Reasoning,
		Confidence: pred.Confidence,
	}

	switch {
	case !pred.HasConfidence:
		out.Confidence = p.defaultConfidence
		out.Flags = append(out.Flags, FlagConfidenceDefaulted)
		p.logger.Warn("Prediction confidence missing, using default",
			"merchant_key", key,
			"default", p.defaultConfidence)
	case pred.Confidence < 0 || pred.Confidence > 1:
		out.Confidence = min(1, max(0, pred.Confidence))
		out.Flags = append(out.Flags, FlagConfidenceClipped)
		p.logger.Warn("Prediction confidence out of range, clipped",
			"merchant_key", key,
			"raw", pred.Confidence,
			"clipped", out.Confidence)
	}

	if !p.taxonomy.Contains(out.Category) {
		if canonical, ok := p.taxonomy.Canonical(out.Category); ok {
			out.Category = canonical
			out.Flags = append(out.Flags, FlagCanonicalized)
		} else {
			out.OutOfTaxonomy = true
			p.logger.Warn("Predicted category not in taxonomy",
				"merchant_key", key,
				"category", out.Category)
		}
	}

	return out
}

// Stats returns usage recorded since creation or the last reset.
func (p *Predictor) Stats() Stats {
	return p.stats.snapshot()
}

// Close releases the provider client if it holds resources.
func (p *Predictor) Close() error {
	p.cache.Flush()
	if closer, ok := p.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

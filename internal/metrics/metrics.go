// Package metrics exposes Prometheus collectors for the classification pipeline.
package metrics

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for a classification run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	classificationsTotal *prometheus.CounterVec
	reviewsTotal         *prometheus.CounterVec
	feedbackTotal        *prometheus.CounterVec
	retrainSignalsTotal  prometheus.Counter

	predictionsTotal   *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	tokensTotal        *prometheus.CounterVec

	batchDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with a fresh registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()
	if err := m.registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purpose_classifications_total",
			Help: "Total number of classification results by label source",
		},
		[]string{"source"},
	)

	m.reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purpose_review_decisions_total",
			Help: "Total number of review decisions by final state",
		},
		[]string{"state"},
	)

	m.feedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purpose_feedback_records_total",
			Help: "Total number of feedback records applied by outcome",
		},
		[]string{"outcome"}, // inserted, updated, unchanged
	)

	m.retrainSignalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "purpose_retrain_signals_total",
		Help: "Total number of retrain signals emitted by the feedback loop",
	})

	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purpose_predictions_total",
			Help: "Total number of AI prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	m.predictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "purpose_prediction_duration_seconds",
		Help: "Time taken by AI predictions including retries",
		// 100ms to ~50s
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purpose_llm_tokens_total",
			Help: "Total number of tokens exchanged with the AI provider",
		},
		[]string{"direction"}, // input, output
	)

	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "purpose_batch_duration_seconds",
		Help:    "Time taken to classify a batch",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
}

// Describe implements the Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.classificationsTotal.Describe(ch)
	m.reviewsTotal.Describe(ch)
	m.feedbackTotal.Describe(ch)
	m.retrainSignalsTotal.Describe(ch)
	m.predictionsTotal.Describe(ch)
	m.predictionDuration.Describe(ch)
	m.tokensTotal.Describe(ch)
	m.batchDuration.Describe(ch)
}

// Collect implements the Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.classificationsTotal.Collect(ch)
	m.reviewsTotal.Collect(ch)
	m.feedbackTotal.Collect(ch)
	m.retrainSignalsTotal.Collect(ch)
	m.predictionsTotal.Collect(ch)
	m.predictionDuration.Collect(ch)
	m.tokensTotal.Collect(ch)
	m.batchDuration.Collect(ch)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterHandlers registers the metrics endpoint with mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

// ObserveClassification counts one pipeline result.
func (m *Metrics) ObserveClassification(source string) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(source).Inc()
}

// ObserveReview counts one review decision.
func (m *Metrics) ObserveReview(state string) {
	if m == nil {
		return
	}
	m.reviewsTotal.WithLabelValues(state).Inc()
}

// ObserveFeedback counts one applied feedback record.
func (m *Metrics) ObserveFeedback(outcome string) {
	if m == nil {
		return
	}
	m.feedbackTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetrainSignal counts one retrain signal.
func (m *Metrics) ObserveRetrainSignal() {
	if m == nil {
		return
	}
	m.retrainSignalsTotal.Inc()
}

// ObservePrediction records the outcome and latency of one prediction.
func (m *Metrics) ObservePrediction(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(outcome).Inc()
	m.predictionDuration.Observe(d.Seconds())
}

// AddTokens records token usage reported by the provider.
func (m *Metrics) AddTokens(input, output int64) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues("input").Add(float64(input))
	m.tokensTotal.WithLabelValues("output").Add(float64(output))
}

// ObserveBatch records the elapsed time of one batch.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

package llm

import "sync"

// Per-million-token prices used for the cost estimate.
const (
	inputCostPerMTok  = 3.0
	outputCostPerMTok = 15.0
)

// Stats summarizes provider usage for a run.
type Stats struct {
	Calls        int64
	Successful   int64
	Failed       int64
	CacheHits    int64
	InputTokens  int64
	OutputTokens int64
}

// EstimatedCostUSD returns the approximate spend for the recorded tokens.
func (s Stats) EstimatedCostUSD() float64 {
	return float64(s.InputTokens)/1e6*inputCostPerMTok + float64(s.OutputTokens)/1e6*outputCostPerMTok
}

// AvgInputTokens returns the mean input tokens per call.
func (s Stats) AvgInputTokens() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.InputTokens) / float64(s.Calls)
}

// AvgOutputTokens returns the mean output tokens per call.
func (s Stats) AvgOutputTokens() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.OutputTokens) / float64(s.Calls)
}

type statsRecorder struct {
	s  Stats
	mu sync.Mutex
}

func (r *statsRecorder) call(c Completion, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Calls++
	r.s.InputTokens += c.InputTokens
	r.s.OutputTokens += c.OutputTokens
	if err != nil {
		r.s.Failed++
	} else {
		r.s.Successful++
	}
}

func (r *statsRecorder) cacheHit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.CacheHits++
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}

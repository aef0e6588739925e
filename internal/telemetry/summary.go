package telemetry

import "sort"

// ProviderStats aggregates runs for one provider.
type ProviderStats struct {
	Runs         int   `json:"runs"`
	TokensTotal  int64 `json:"tokens_total"`
	AvgLatencyMS int64 `json:"avg_latency_ms"`
}

// Summary is the aggregate view over the recorded runs.
type Summary struct {
	Runs         int   `json:"runs"`
	P50LatencyMS int64 `json:"p50_latency_ms"`
	P95LatencyMS int64 `json:"p95_latency_ms"`

	WebSearches      int64 `json:"web_searches"`
	WebSearchRetries int64 `json:"web_search_retries"`
	LLMCalls         int64 `json:"llm_calls"`
	TokensIn         int64 `json:"tokens_in"`
	TokensOut        int64 `json:"tokens_out"`
	TokensTotal      int64 `json:"tokens_total"`

	HelpRuns    int `json:"help_runs"`
	CoachedRuns int `json:"coached_runs"`
	ErrorRuns   int `json:"error_runs"`

	Providers map[string]ProviderStats `json:"providers"`
}

// Summarize aggregates all runs currently in the ring.
func (r *Recorder) Summarize() Summary {
	r.mu.Lock()
	runs := make([]struct {
		latency  int64
		provider string
		tokens   int64
	}, 0, len(r.ring))
	s := Summary{Providers: map[string]ProviderStats{}}
	var latencies []int64
	for _, run := range r.ring {
		s.Runs++
		s.WebSearches += run.WebSearches
		s.WebSearchRetries += run.WebSearchRetries
		s.LLMCalls += run.LLMCalls
		s.TokensIn += run.TokensIn
		s.TokensOut += run.TokensOut
		s.TokensTotal += run.TokensTotal
		if run.Help {
			s.HelpRuns++
		}
		if run.Coached {
			s.CoachedRuns++
		}
		if run.Error != "" {
			s.ErrorRuns++
		}
		latencies = append(latencies, run.LatencyMS)
		runs = append(runs, struct {
			latency  int64
			provider string
			tokens   int64
		}{run.LatencyMS, run.Provider, run.TokensTotal})
	}
	r.mu.Unlock()

	for _, run := range runs {
		ps := s.Providers[run.provider]
		// AvgLatencyMS temporarily accumulates the sum.
		ps.Runs++
		ps.TokensTotal += run.tokens
		ps.AvgLatencyMS += run.latency
		s.Providers[run.provider] = ps
	}
	for provider, ps := range s.Providers {
		ps.AvgLatencyMS /= int64(ps.Runs)
		s.Providers[provider] = ps
	}

	s.P50LatencyMS = percentile(latencies, 50)
	s.P95LatencyMS = percentile(latencies, 95)
	return s
}

// percentile computes the nearest-rank percentile over the samples.
func percentile(samples []int64, p int) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

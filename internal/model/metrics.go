package model

import (
	"sync"
	"sync/atomic"
	"time"
)

// LLMCall records one gateway invocation for telemetry.
type LLMCall struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	LatencyMS   int64  `json:"latency_ms"`
	MaxTokens   int    `json:"max_tokens"`
	TokensIn    int64  `json:"tokens_in"`
	TokensOut   int64  `json:"tokens_out"`
	PromptChars int    `json:"prompt_chars"`
	OutputChars int    `json:"output_chars"`
}

// RunMetrics accumulates counters for one pipeline run. A single handle is
// created at run start and passed explicitly into every worker closure;
// there is no ambient propagation. All methods are safe for concurrent use.
type RunMetrics struct {
	RunID     string
	Provider  string
	Question  string
	StartedAt time.Time

	webSearches      atomic.Int64
	webSearchRetries atomic.Int64
	llmCalls         atomic.Int64
	tokensIn         atomic.Int64
	tokensOut        atomic.Int64

	mu    sync.Mutex
	calls []LLMCall
}

// NewRunMetrics creates a metrics handle for one run.
func NewRunMetrics(runID, provider, question string) *RunMetrics {
	return &RunMetrics{
		RunID:     runID,
		Provider:  provider,
		Question:  question,
		StartedAt: time.Now().UTC(),
	}
}

// AddWebSearch counts one issued search call.
func (m *RunMetrics) AddWebSearch() {
	if m == nil {
		return
	}
	m.webSearches.Add(1)
}

// AddWebSearchRetry counts one escalation pass (second or third search).
func (m *RunMetrics) AddWebSearchRetry() {
	if m == nil {
		return
	}
	m.webSearchRetries.Add(1)
}

// RecordLLMCall counts one gateway call and its token usage.
func (m *RunMetrics) RecordLLMCall(call LLMCall) {
	if m == nil {
		return
	}
	m.llmCalls.Add(1)
	m.tokensIn.Add(call.TokensIn)
	m.tokensOut.Add(call.TokensOut)
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// WebSearches returns the search call count so far.
func (m *RunMetrics) WebSearches() int64 { return m.webSearches.Load() }

// WebSearchRetries returns the escalation-pass count so far.
func (m *RunMetrics) WebSearchRetries() int64 { return m.webSearchRetries.Load() }

// LLMCalls returns the gateway call count so far.
func (m *RunMetrics) LLMCalls() int64 { return m.llmCalls.Load() }

// TokensIn returns input tokens consumed so far.
func (m *RunMetrics) TokensIn() int64 { return m.tokensIn.Load() }

// TokensOut returns output tokens produced so far.
func (m *RunMetrics) TokensOut() int64 { return m.tokensOut.Load() }

// Calls returns a copy of the per-call records.
func (m *RunMetrics) Calls() []LLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LLMCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// RunSummary is the single telemetry record emitted once per run,
// regardless of success or an early help/coaching short-circuit.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	LatencyMS int64     `json:"latency_ms"`
	Provider  string    `json:"provider"`
	Question  string    `json:"question"`

	Brand      string `json:"brand,omitempty"`
	TimePeriod string `json:"time_period,omitempty"`

	WebSearches      int64 `json:"web_searches"`
	WebSearchRetries int64 `json:"web_search_retries"`
	LLMCalls         int64 `json:"llm_calls"`
	TokensIn         int64 `json:"tokens_in"`
	TokensOut        int64 `json:"tokens_out"`
	TokensTotal      int64 `json:"tokens_total"`

	ValidatedCounts map[Category]int `json:"validated_counts,omitempty"`
	Help            bool             `json:"help,omitempty"`
	Coached         bool             `json:"coached,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Summarize finalizes the metrics into a RunSummary.
func (m *RunMetrics) Summarize() RunSummary {
	return RunSummary{
		RunID:            m.RunID,
		StartedAt:        m.StartedAt,
		LatencyMS:        time.Since(m.StartedAt).Milliseconds(),
		Provider:         m.Provider,
		Question:         m.Question,
		WebSearches:      m.webSearches.Load(),
		WebSearchRetries: m.webSearchRetries.Load(),
		LLMCalls:         m.llmCalls.Load(),
		TokensIn:         m.tokensIn.Load(),
		TokensOut:        m.tokensOut.Load(),
		TokensTotal:      m.tokensIn.Load() + m.tokensOut.Load(),
	}
}

package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunMetricsConcurrentIncrements(t *testing.T) {
	m := NewRunMetrics("run-1", "anthropic", "q")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddWebSearch()
			m.AddWebSearchRetry()
			m.RecordLLMCall(LLMCall{Provider: "anthropic", TokensIn: 10, TokensOut: 5})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), m.WebSearches())
	assert.Equal(t, int64(20), m.WebSearchRetries())
	assert.Equal(t, int64(20), m.LLMCalls())
	assert.Equal(t, int64(200), m.TokensIn())
	assert.Equal(t, int64(100), m.TokensOut())
	assert.Len(t, m.Calls(), 20)
}

func TestRunMetricsNilReceiverSafe(t *testing.T) {
	var m *RunMetrics
	assert.NotPanics(t, func() {
		m.AddWebSearch()
		m.AddWebSearchRetry()
		m.RecordLLMCall(LLMCall{})
	})
}

func TestSummarizeTotals(t *testing.T) {
	m := NewRunMetrics("run-2", "openai", "why did salience fall")
	m.AddWebSearch()
	m.RecordLLMCall(LLMCall{TokensIn: 100, TokensOut: 40})

	s := m.Summarize()
	assert.Equal(t, "run-2", s.RunID)
	assert.Equal(t, int64(1), s.WebSearches)
	assert.Equal(t, int64(140), s.TokensTotal)
}

func TestFindingSetTrustedRatio(t *testing.T) {
	set := EmptyFindingSet()
	assert.Equal(t, 0.0, set.TrustedRatio())

	set[CategoryMarket] = []Finding{
		{IsTrusted: true},
		{IsTrusted: false},
	}
	set[CategoryBrand] = []Finding{
		{IsTrusted: false},
		{IsTrusted: false},
	}
	assert.InDelta(t, 0.25, set.TrustedRatio(), 1e-9)
	assert.Equal(t, 4, set.Total())
}

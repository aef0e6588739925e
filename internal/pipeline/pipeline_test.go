package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/resilience"
	"github.com/kaia-labs/researcher/internal/search"
	"github.com/kaia-labs/researcher/internal/trust"
)

// scriptedGateway routes prompts to canned responses by substring so one
// fake covers every pipeline stage.
type scriptedGateway struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (g *scriptedGateway) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req.Prompt)
	g.mu.Unlock()

	if g.err != nil {
		return "", g.err
	}

	req.Metrics.RecordLLMCall(model.LLMCall{Provider: req.Provider, TokensIn: 10, TokensOut: 5})

	p := req.Prompt
	switch {
	case strings.Contains(p, "Parse this brand research question"):
		return `{"brand": "new look", "metric": "salience", "direction": "decrease", "time_period": "Q3 2025", "region": "UK"}`, nil
	case strings.Contains(p, "What industry is the brand"):
		return "fashion retail", nil
	case strings.Contains(p, "direct competitors"):
		return `{"competitors": ["primark", "zara"]}`, nil
	case strings.Contains(p, "MARKET trends"):
		return hypothesesJSON("M"), nil
	case strings.Contains(p, "specific actions or issues"):
		return hypothesesJSON("B"), nil
	case strings.Contains(p, "competitor actions affecting"):
		return hypothesesJSON("C"), nil
	case strings.Contains(p, "CLEARLY irrelevant"):
		return `{"irrelevant": []}`, nil
	case strings.Contains(p, "direct evidence supporting the hypothesis"):
		return `{"validated": true, "evidence": "Sales fell 4% in Q3 2025 per ONS data"}`, nil
	case strings.Contains(p, "executive summary"):
		return "Salience declined on weak trading and competitor campaigns.", nil
	}
	return "{}", nil
}

func (g *scriptedGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func hypothesesJSON(prefix string) string {
	hyps := []map[string]string{
		{
			"id":           prefix + "1",
			"hypothesis":   prefix + "1 explanation",
			"search_query": "new look " + prefix + "1 Q3 2025",
			"broad_query":  "new look " + prefix + "1 broad Q3 2025",
		},
		{
			"id":           prefix + "2",
			"hypothesis":   prefix + "2 explanation",
			"search_query": "new look " + prefix + "2 Q3 2025",
			"broad_query":  "new look " + prefix + "2 broad Q3 2025",
		},
	}
	out, _ := json.Marshal(map[string]any{"hypotheses": hyps})
	return string(out)
}

// cannedRetriever returns the same scored sources for every query.
type cannedRetriever struct {
	mu      sync.Mutex
	queries []string
	sources []model.EvidenceSource
	err     error
}

func (r *cannedRetriever) Search(_ context.Context, query string, _ search.Options) ([]model.EvidenceSource, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]model.EvidenceSource, len(r.sources))
	copy(out, r.sources)
	return out, nil
}

func (r *cannedRetriever) searchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

type memorySink struct {
	mu        sync.Mutex
	summaries []model.RunSummary
}

func (s *memorySink) Record(summary model.RunSummary) {
	s.mu.Lock()
	s.summaries = append(s.summaries, summary)
	s.mu.Unlock()
}

func trustedAndReputable() []model.EvidenceSource {
	return []model.EvidenceSource{
		{Title: "Reuters", URL: "https://reuters.com/a", Content: "Sales fell 4%", TrustScore: 100, Tier: model.TierTrusted, IsTrusted: true},
		{Title: "Retail Week", URL: "https://retailweek.com/b", Content: "Trading update", TrustScore: 78, Tier: model.TierReputable},
	}
}

func newTestPipeline(gw llm.Gateway, r search.Retriever, sink Sink, cfg Config) *Pipeline {
	return New(gw, r, trust.NewRegistry(), sink, cfg)
}

const question = "Salience fell by 6 points in Q3 2025 for New Look — find external reasons with citations."

func TestRunEndToEnd(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{sources: trustedAndReputable()}
	sink := &memorySink{}
	p := newTestPipeline(gw, retr, sink, Config{MinVerifiedPct: 25, RelevanceFilter: true, ExecutiveSummary: true})

	resp, err := p.Run(context.Background(), model.ResearchRequest{Question: question}, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, "new look", resp.Brand)
	assert.Equal(t, []string{"salience"}, resp.Metrics)
	assert.Equal(t, "decrease", resp.Direction)
	assert.Equal(t, "Q3 2025", resp.TimePeriod)

	for _, key := range []string{model.DriverMacro, model.DriverBrand, model.DriverCompetitive} {
		require.NotEmpty(t, resp.Summary[key], "summary section %s", key)
		for _, d := range resp.Summary[key] {
			assert.NotEmpty(t, d.SourceURLs, "driver %q", d.Driver)
			assert.Equal(t, "medium", d.Confidence)
		}
	}

	assert.GreaterOrEqual(t, resp.TrustedRatio*100, 25.0)
	assert.NotEmpty(t, resp.ExecutiveSummary)
	assert.Equal(t, int64(6), resp.WebSearches)
	assert.Equal(t, resp.TokensIn+resp.TokensOut, resp.TokensTotal)

	require.Len(t, sink.summaries, 1)
	summary := sink.summaries[0]
	assert.Equal(t, 2, summary.ValidatedCounts[model.CategoryMarket])
	assert.Equal(t, 2, summary.ValidatedCounts[model.CategoryBrand])
	assert.Equal(t, 2, summary.ValidatedCounts[model.CategoryCompetitive])
	assert.Equal(t, int64(6), summary.WebSearches)
}

func TestRunIsIdempotentWithCannedResponses(t *testing.T) {
	run := func() *model.ResearchResponse {
		gw := &scriptedGateway{}
		retr := &cannedRetriever{sources: trustedAndReputable()}
		p := newTestPipeline(gw, retr, nil, Config{MinVerifiedPct: 25})
		resp, err := p.Run(context.Background(), model.ResearchRequest{Question: question}, RunOptions{})
		require.NoError(t, err)
		return resp
	}

	a, b := run(), run()
	assert.Equal(t, a.Hypotheses, b.Hypotheses)
	assert.Equal(t, a.ValidatedHypotheses, b.ValidatedHypotheses)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestRunHelpShortCircuit(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{}
	sink := &memorySink{}
	p := newTestPipeline(gw, retr, sink, Config{})

	resp, err := p.Run(context.Background(), model.ResearchRequest{Question: "help"}, RunOptions{})

	require.NoError(t, err)
	require.NotNil(t, resp.Coaching)
	assert.Equal(t, "help", resp.Coaching.Kind)
	assert.Equal(t, []string{"salient"}, resp.Metrics)
	assert.Equal(t, 0, resp.Hypotheses.Total())
	assert.Equal(t, 0, resp.ValidatedHypotheses.Total())

	// Zero search and zero LLM calls on the help path.
	assert.Equal(t, 0, gw.callCount())
	assert.Equal(t, 0, retr.searchCount())

	require.Len(t, sink.summaries, 1)
	assert.True(t, sink.summaries[0].Help)
	assert.Zero(t, sink.summaries[0].LLMCalls)
	assert.Zero(t, sink.summaries[0].WebSearches)
}

func TestRunCoachingShortCircuit(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{}
	sink := &memorySink{}
	p := newTestPipeline(gw, retr, sink, Config{})

	resp, err := p.Run(context.Background(), model.ResearchRequest{Question: "What is New Look's market cap?"}, RunOptions{})

	require.NoError(t, err)
	require.NotNil(t, resp.Coaching)
	assert.Contains(t, resp.Coaching.Need, "timeframe")
	assert.NotEmpty(t, resp.Coaching.SuggestedQuestions)
	assert.Equal(t, 0, gw.callCount())
	assert.Equal(t, 0, retr.searchCount())

	require.Len(t, sink.summaries, 1)
	assert.True(t, sink.summaries[0].Coached)
}

func TestRunUnknownProviderFailsFast(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{}
	p := newTestPipeline(gw, retr, nil, Config{})

	_, err := p.Run(context.Background(), model.ResearchRequest{
		Question: question,
		Provider: "mystery",
	}, RunOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
	assert.Equal(t, 0, gw.callCount())
	assert.Equal(t, 0, retr.searchCount())
}

func TestRunUnknownProviderStillAnswersHelp(t *testing.T) {
	p := newTestPipeline(&scriptedGateway{}, &cannedRetriever{}, nil, Config{})

	resp, err := p.Run(context.Background(), model.ResearchRequest{
		Question: "help",
		Provider: "mystery",
	}, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, "help", resp.Coaching.Kind)
}

func TestRunQuotaExhaustionIsHardFailure(t *testing.T) {
	gw := &scriptedGateway{err: resilience.NewQuotaExhaustedError("anthropic", eris.New("credit balance is too low"))}
	sink := &memorySink{}
	p := newTestPipeline(gw, &cannedRetriever{}, sink, Config{})

	_, err := p.Run(context.Background(), model.ResearchRequest{Question: question}, RunOptions{})

	require.Error(t, err)
	assert.True(t, resilience.IsQuotaExhausted(err))

	require.Len(t, sink.summaries, 1)
	assert.NotEmpty(t, sink.summaries[0].Error)
}

func TestRunStreamEventOrder(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{sources: trustedAndReputable()}
	p := newTestPipeline(gw, retr, nil, Config{MinVerifiedPct: 25, ExecutiveSummary: true})

	var names []string
	_, err := p.Run(context.Background(), model.ResearchRequest{Question: question}, RunOptions{
		Emit: func(e Event) { names = append(names, e.Name) },
	})

	require.NoError(t, err)
	require.GreaterOrEqual(t, len(names), 5)
	assert.Equal(t, EventStatus, names[0])
	assert.Equal(t, EventParsed, names[1])
	assert.Equal(t, EventCompetitors, names[2])
	assert.Equal(t, EventHypotheses, names[3])
	assert.Equal(t, EventStatus, names[4])

	resultCount := 0
	for _, n := range names {
		if n == EventHypothesisResult {
			resultCount++
		}
	}
	assert.Equal(t, 6, resultCount)
	assert.Equal(t, EventFinal, names[len(names)-1])
	assert.Equal(t, EventExecutiveSummary, names[len(names)-2])
}

func TestRunEvalModeCapsHypotheses(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{sources: trustedAndReputable()}
	p := newTestPipeline(gw, retr, nil, Config{MaxHypothesesPerCategory: 4})

	resp, err := p.Run(context.Background(), model.ResearchRequest{Question: question}, RunOptions{EvalMode: true})

	require.NoError(t, err)
	for _, cat := range model.Categories() {
		assert.LessOrEqual(t, len(resp.Hypotheses[cat]), 2)
	}
	// No escalation passes in eval mode.
	assert.Zero(t, resp.WebSearchRetries)
}

func TestValidatorNeverValidatesWithoutSources(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{err: eris.New("search down")}
	p := newTestPipeline(gw, retr, nil, Config{})

	resp, err := p.Run(context.Background(), model.ResearchRequest{Question: question}, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 0, resp.ValidatedHypotheses.Total())
	for _, key := range []string{model.DriverMacro, model.DriverBrand, model.DriverCompetitive} {
		assert.Empty(t, resp.Summary[key])
	}
}

func TestFilterRelevanceNeverEmptiesCategory(t *testing.T) {
	gw := &flagEverythingGateway{}
	p := newTestPipeline(gw, &cannedRetriever{}, nil, Config{})
	rc := &runContext{provider: llm.ProviderAnthropic, metrics: model.NewRunMetrics("r", "anthropic", "q")}

	set := model.HypothesisSet{
		model.CategoryMarket:      {{ID: "M1", Hypothesis: "m one"}, {ID: "M2", Hypothesis: "m two"}},
		model.CategoryBrand:       {{ID: "B1", Hypothesis: "b one"}},
		model.CategoryCompetitive: {{ID: "C1", Hypothesis: "c one"}},
	}

	got := p.filterRelevance(context.Background(), rc, model.ParsedIntent{Brand: "new look"}, set)

	for _, cat := range model.Categories() {
		require.NotEmpty(t, got[cat], "category %s", cat)
	}
	// Every ID was flagged, so each category keeps exactly its first.
	assert.Equal(t, "M1", got[model.CategoryMarket][0].ID)
	assert.Len(t, got[model.CategoryMarket], 1)
}

// flagEverythingGateway marks every hypothesis ID irrelevant.
type flagEverythingGateway struct{}

func (g *flagEverythingGateway) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	return `{"irrelevant": ["M1", "M2", "B1", "C1"]}`, nil
}

func TestRunPerRequestTrustOverride(t *testing.T) {
	gw := &scriptedGateway{}
	retr := &cannedRetriever{sources: trustedAndReputable()}
	registry := trust.NewRegistry()
	p := New(gw, retr, registry, nil, Config{})

	_, err := p.Run(context.Background(), model.ResearchRequest{
		Question: question,
		TrustedSources: []model.TrustedSource{
			{Domain: "myblog.example", Name: "My Blog", TrustScore: 95, Tier: model.TierTrusted},
		},
	}, RunOptions{})

	require.NoError(t, err)
	// The registry wired into the pipeline is untouched by the override.
	assert.Equal(t, trust.DefaultSources(), registry.Snapshot())
}

func TestRunFindingOrderIsStableAcrossReruns(t *testing.T) {
	run := func() *model.ResearchResponse {
		gw := &scriptedGateway{}
		retr := &cannedRetriever{sources: trustedAndReputable()}
		p := newTestPipeline(gw, retr, nil, Config{MinVerifiedPct: 25})
		resp, err := p.Run(context.Background(), model.ResearchRequest{Question: question}, RunOptions{})
		require.NoError(t, err)
		return resp
	}

	order := func(findings []model.Finding) []string {
		out := make([]string, len(findings))
		for i, f := range findings {
			out[i] = f.Hypothesis
		}
		return out
	}

	base := run()
	for _, cat := range model.Categories() {
		var generated []string
		for _, h := range base.Hypotheses[cat] {
			generated = append(generated, h.Hypothesis)
		}
		// Every hypothesis validates against the canned sources, so the
		// findings must mirror generation order exactly.
		require.Equal(t, generated, order(base.ValidatedHypotheses[cat]), "category %s", cat)
	}

	for i := 0; i < 50; i++ {
		got := run()
		for _, cat := range model.Categories() {
			require.Equal(t,
				order(base.ValidatedHypotheses[cat]),
				order(got.ValidatedHypotheses[cat]),
				"category %s rerun %d", cat, i,
			)
		}
		require.Equal(t, base.Summary, got.Summary, "rerun %d", i)
	}
}

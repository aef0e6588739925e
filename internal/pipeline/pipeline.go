// Package pipeline orchestrates a research run: question classification,
// intent extraction, hypothesis generation, concurrent multi-pass web
// validation, quality gating, and summary construction.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/search"
	"github.com/kaia-labs/researcher/internal/trust"
)

// Sink receives the single telemetry record emitted per run.
type Sink interface {
	Record(summary model.RunSummary)
}

// Config holds the pipeline's product tunables.
type Config struct {
	DefaultProvider          string
	MaxHypothesesPerCategory int
	Workers                  int

	// MinVerifiedPct is the quality gate threshold, in percent.
	MinVerifiedPct float64

	RelevanceFilter  bool
	TrustedSteering  bool
	ExecutiveSummary bool
}

// Pipeline runs research questions end to end.
type Pipeline struct {
	gateway   llm.Gateway
	retriever search.Retriever
	registry  *trust.Registry
	sink      Sink
	cfg       Config
}

// New wires the pipeline over its collaborators. sink may be nil.
func New(gateway llm.Gateway, retriever search.Retriever, registry *trust.Registry, sink Sink, cfg Config) *Pipeline {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = llm.ProviderAnthropic
	}
	if cfg.MaxHypothesesPerCategory <= 0 {
		cfg.MaxHypothesesPerCategory = 4
	}
	return &Pipeline{
		gateway:   gateway,
		retriever: retriever,
		registry:  registry,
		sink:      sink,
		cfg:       cfg,
	}
}

// RunOptions tune one run.
type RunOptions struct {
	// Emit, when non-nil, receives lifecycle events as the run progresses.
	Emit EmitFunc

	// EvalMode caps hypotheses at 2 per category and skips escalation
	// passes to keep eval sweeps cheap.
	EvalMode bool
}

// runContext carries run-scoped state explicitly into every worker
// closure. Nothing here is ambient.
type runContext struct {
	provider      string
	systemPrompt  string
	modelOverride string
	metrics       *model.RunMetrics
	trustSources  []trust.Source
	intent        model.ParsedIntent
	evalMode      bool
}

// Run executes one research question and returns a structurally complete
// response. Help and out-of-scope questions short-circuit without any
// search or generation calls. Exactly one telemetry summary is recorded
// per run, on every path including failures.
func (p *Pipeline) Run(ctx context.Context, req model.ResearchRequest, opts RunOptions) (*model.ResearchResponse, error) {
	runID := uuid.NewString()
	provider := req.Provider
	if provider == "" {
		provider = p.cfg.DefaultProvider
	}
	metrics := model.NewRunMetrics(runID, provider, req.Question)

	emit := opts.Emit
	if emit == nil {
		emit = func(Event) {}
	}

	emit(Event{Name: EventStatus, Data: map[string]any{
		"stage":    "start",
		"provider": provider,
		"run_id":   runID,
	}})

	if IsHelpQuestion(req.Question) {
		resp := p.shortCircuit(req, provider, runID, metrics, "help", HelpPayload())
		emit(Event{Name: EventFinal, Data: resp})
		return resp, nil
	}

	if !LooksLikeMetricChange(req.Question) {
		brand := GuessBrand(req.Question)
		resp := p.shortCircuit(req, provider, runID, metrics, brand, CoachingPayload(brand))
		emit(Event{Name: EventFinal, Data: resp})
		return resp, nil
	}

	if provider != llm.ProviderAnthropic && provider != llm.ProviderOpenAI {
		return nil, p.fail(emit, metrics, eris.Wrapf(llm.ErrUnknownProvider, "pipeline: provider %q", provider))
	}

	rc := &runContext{
		provider:      provider,
		systemPrompt:  req.SystemPrompt,
		modelOverride: req.ModelOverride,
		metrics:       metrics,
		evalMode:      opts.EvalMode,
	}
	if len(req.TrustedSources) > 0 {
		rc.trustSources = trust.NormalizeSources(toTrustSources(req.TrustedSources))
	} else {
		rc.trustSources = p.registry.Snapshot()
	}

	intent, err := p.parseQuestion(ctx, rc, req.Question)
	if err != nil {
		return nil, p.fail(emit, metrics, err)
	}
	intent.Industry = p.resolveIndustry(ctx, rc, intent.Brand)
	rc.intent = intent
	emit(Event{Name: EventParsed, Data: intent})

	competitors := p.competitorsFor(ctx, rc, intent)
	emit(Event{Name: EventCompetitors, Data: map[string]any{"competitors": competitors}})

	n := req.MaxHypothesesPerCategory
	if n <= 0 {
		n = p.cfg.MaxHypothesesPerCategory
	}
	if opts.EvalMode && n > 2 {
		n = 2
	}

	hypotheses, err := p.generateHypotheses(ctx, rc, intent, competitors, n)
	if err != nil {
		return nil, p.fail(emit, metrics, err)
	}
	if p.cfg.RelevanceFilter && !opts.EvalMode {
		hypotheses = p.filterRelevance(ctx, rc, intent, hypotheses)
	}
	emit(Event{Name: EventHypotheses, Data: hypotheses})

	emit(Event{Name: EventStatus, Data: map[string]any{
		"stage":            "search",
		"total_hypotheses": hypotheses.Total(),
	}})

	findings := p.validateAll(ctx, rc, hypotheses, func(outcome model.HypothesisOutcome, completed, total int) {
		emit(Event{Name: EventHypothesisResult, Data: map[string]any{
			"result":    outcome,
			"completed": completed,
			"total":     total,
		}})
	})

	findings, dropped := ApplyQualityGate(findings, p.cfg.MinVerifiedPct)
	if len(dropped) > 0 {
		emit(Event{Name: EventQualityFilter, Data: map[string]any{
			"dropped":       len(dropped),
			"trusted_ratio": findings.TrustedRatio(),
		}})
	}

	execSummary := ""
	if p.cfg.ExecutiveSummary && !opts.EvalMode {
		if execSummary = p.executiveSummary(ctx, rc, req.Question, intent, findings); execSummary != "" {
			emit(Event{Name: EventExecutiveSummary, Data: map[string]any{"text": execSummary}})
		}
	}

	resp := &model.ResearchResponse{
		Question:     req.Question,
		Brand:        intent.Brand,
		Metrics:      []string{intent.Metric},
		Direction:    intent.Direction,
		TimePeriod:   intent.TimePeriod,
		ProviderUsed: provider,

		Hypotheses:          hypotheses,
		ValidatedHypotheses: findings,
		Summary:             BuildSummary(findings),
		TrustedRatio:        findings.TrustedRatio(),
		ExecutiveSummary:    execSummary,

		RunID:            runID,
		LatencyMS:        time.Since(metrics.StartedAt).Milliseconds(),
		WebSearches:      metrics.WebSearches(),
		WebSearchRetries: metrics.WebSearchRetries(),
		LLMCalls:         metrics.LLMCalls(),
		TokensIn:         metrics.TokensIn(),
		TokensOut:        metrics.TokensOut(),
		TokensTotal:      metrics.TokensIn() + metrics.TokensOut(),
	}

	summary := metrics.Summarize()
	summary.Brand = intent.Brand
	summary.TimePeriod = intent.TimePeriod
	summary.ValidatedCounts = map[model.Category]int{
		model.CategoryMarket:      len(findings[model.CategoryMarket]),
		model.CategoryBrand:       len(findings[model.CategoryBrand]),
		model.CategoryCompetitive: len(findings[model.CategoryCompetitive]),
	}
	p.record(summary)

	emit(Event{Name: EventFinal, Data: resp})
	zap.L().Info("run complete",
		zap.String("run_id", runID),
		zap.String("brand", intent.Brand),
		zap.Int("validated", findings.Total()),
		zap.Int64("web_searches", metrics.WebSearches()),
		zap.Int64("latency_ms", resp.LatencyMS),
	)
	return resp, nil
}

// shortCircuit builds the structurally complete response returned for help
// and coaching paths, with its telemetry summary recorded.
func (p *Pipeline) shortCircuit(req model.ResearchRequest, provider, runID string, metrics *model.RunMetrics, brand string, coaching *model.Coaching) *model.ResearchResponse {
	summary := metrics.Summarize()
	summary.Brand = brand
	summary.ValidatedCounts = map[model.Category]int{
		model.CategoryMarket:      0,
		model.CategoryBrand:       0,
		model.CategoryCompetitive: 0,
	}
	if coaching.Kind == "help" {
		summary.Help = true
	} else {
		summary.Coached = true
	}
	p.record(summary)

	return &model.ResearchResponse{
		Question:     req.Question,
		Brand:        brand,
		Metrics:      []string{"salient"},
		Direction:    "change",
		ProviderUsed: provider,

		Hypotheses:          model.EmptyHypothesisSet(),
		ValidatedHypotheses: model.EmptyFindingSet(),
		Summary:             model.EmptySummary(),
		Coaching:            coaching,

		RunID:     runID,
		LatencyMS: time.Since(metrics.StartedAt).Milliseconds(),
	}
}

// fail records the run's telemetry summary with the error attached and
// reports the error upward. Used only for hard failures (quota
// exhaustion); everything else degrades in place.
func (p *Pipeline) fail(emit EmitFunc, metrics *model.RunMetrics, err error) error {
	summary := metrics.Summarize()
	summary.Error = err.Error()
	p.record(summary)

	emit(Event{Name: EventStatus, Data: map[string]any{
		"stage": "error",
		"error": err.Error(),
	}})
	zap.L().Error("run failed", zap.String("run_id", metrics.RunID), zap.Error(err))
	return err
}

func (p *Pipeline) record(summary model.RunSummary) {
	if p.sink != nil {
		p.sink.Record(summary)
	}
}

func toTrustSources(in []model.TrustedSource) []trust.Source {
	out := make([]trust.Source, 0, len(in))
	for _, s := range in {
		out = append(out, trust.Source{
			Domain:     s.Domain,
			Name:       s.Name,
			TrustScore: s.TrustScore,
			Tier:       s.Tier,
		})
	}
	return out
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/search"
	"github.com/kaia-labs/researcher/internal/trust"
)

// steeredSiteDomains bounds the site: OR filter in the trusted steering
// pass.
const steeredSiteDomains = 3

// hypothesisTask pairs a hypothesis with its category for the worker pool.
type hypothesisTask struct {
	hyp model.Hypothesis
	cat model.Category
}

// flattenTasks lists all hypotheses in canonical category order.
func flattenTasks(set model.HypothesisSet) []hypothesisTask {
	var tasks []hypothesisTask
	for _, cat := range model.Categories() {
		for _, h := range set[cat] {
			tasks = append(tasks, hypothesisTask{hyp: h, cat: cat})
		}
	}
	return tasks
}

// validateAll runs the multi-pass search+validate sequence for every
// hypothesis across a bounded worker pool. Each hypothesis is one unit of
// work; a failure inside one is recorded on its outcome and never aborts
// siblings. onResult, when non-nil, receives outcomes serially in
// completion order with completed/total counters filled in. The returned
// findings always follow generation order, independent of worker
// scheduling.
func (p *Pipeline) validateAll(ctx context.Context, rc *runContext, set model.HypothesisSet, onResult func(model.HypothesisOutcome, int, int)) model.FindingSet {
	tasks := flattenTasks(set)
	findings := model.EmptyFindingSet()
	if len(tasks) == 0 {
		return findings
	}

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	results := make([]*model.Finding, len(tasks))

	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			outcome, finding := p.processOne(gctx, rc, task)

			mu.Lock()
			defer mu.Unlock()
			completed++
			results[i] = finding
			if onResult != nil {
				onResult(outcome, completed, len(tasks))
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, task := range tasks {
		if results[i] != nil {
			findings[task.cat] = append(findings[task.cat], *results[i])
		}
	}
	return findings
}

// processOne runs the three validation passes for a single hypothesis.
// Never returns an error: failures are contained in the outcome record.
func (p *Pipeline) processOne(ctx context.Context, rc *runContext, task hypothesisTask) (model.HypothesisOutcome, *model.Finding) {
	hyp := task.hyp
	outcome := model.HypothesisOutcome{
		Category:   task.cat,
		Hypothesis: hyp.Hypothesis,
	}

	query := hyp.SearchQuery
	if query == "" {
		query = hyp.Hypothesis
	}
	if query == "" {
		outcome.Error = "empty query"
		return outcome, nil
	}
	outcome.SearchQuery = query

	searchOpts := search.Options{
		TrustSources: rc.trustSources,
	}

	// Pass 1: targeted search.
	rc.metrics.AddWebSearch()
	outcome.SearchCalls++
	sources, err := p.retriever.Search(ctx, query, searchOpts)
	if err != nil {
		zap.L().Warn("search failed", zap.String("hypothesis", hyp.ID), zap.Error(err))
		sources = nil
	}

	var validation model.ValidationResult
	if len(sources) > 0 {
		validation = p.judge(ctx, rc, hyp, sources)
	}

	// Pass 2: broad search, triggered by zero/weak results or a negative
	// judgment. Accepted only when it judges true.
	if !rc.evalMode && (len(sources) < 2 || !validation.Validated) {
		broad := hyp.BroadQuery
		if broad == "" {
			region := rc.intent.Region
			if region == "" {
				region = "UK"
			}
			broad = RefineQuery(query, rc.intent.Brand, rc.intent.TimePeriod, region)
		}
		if broad != "" && broad != query {
			outcome.SecondPassUsed = true
			outcome.SecondQuery = broad
			rc.metrics.AddWebSearch()
			rc.metrics.AddWebSearchRetry()
			outcome.SearchCalls++

			broadSources, err := p.retriever.Search(ctx, broad, searchOpts)
			if err != nil {
				zap.L().Warn("broad search failed", zap.String("hypothesis", hyp.ID), zap.Error(err))
				broadSources = nil
			}
			combined := append(append([]model.EvidenceSource{}, sources...), broadSources...)
			if len(combined) > 4 {
				combined = combined[:4]
			}
			if len(combined) > 0 {
				if v2 := p.judge(ctx, rc, hyp, combined); v2.Validated {
					validation = v2
					sources = combined
				}
			}
		}
	}

	// Pass 3: trusted-source steering. Only runs when already validated by
	// non-trusted evidence, and only ever upgrades: the steered result is
	// accepted solely when its leading source is trusted and re-validates.
	if p.cfg.TrustedSteering && !rc.evalMode && validation.Validated && len(sources) > 0 && !sources[0].IsTrusted {
		if steered := trustedSteeredQuery(query, rc.trustSources); steered != "" {
			rc.metrics.AddWebSearch()
			rc.metrics.AddWebSearchRetry()
			outcome.SearchCalls++

			steeredSources, err := p.retriever.Search(ctx, steered, searchOpts)
			if err != nil {
				zap.L().Debug("steered search failed", zap.String("hypothesis", hyp.ID), zap.Error(err))
				steeredSources = nil
			}
			if len(steeredSources) > 0 && steeredSources[0].IsTrusted {
				if v3 := p.judge(ctx, rc, hyp, steeredSources); v3.Validated {
					validation = v3
					sources = steeredSources
					outcome.TrustedSteered = true
				}
			}
		}
	}

	outcome.ResultCount = len(sources)
	outcome.Validated = validation.Validated && len(sources) > 0
	if !outcome.Validated {
		return outcome, nil
	}

	lead := sources[0]
	outcome.Evidence = validation.Evidence
	outcome.Source = lead.URL
	outcome.SourceTitle = lead.Title

	return outcome, &model.Finding{
		Status:         model.StatusValidated,
		Hypothesis:     hyp.Hypothesis,
		Evidence:       validation.Evidence,
		Source:         lead.URL,
		SourceTitle:    lead.Title,
		TrustScore:     lead.TrustScore,
		Tier:           lead.Tier,
		IsTrusted:      lead.IsTrusted,
		SecondPassUsed: outcome.SecondPassUsed,
		TrustedSteered: outcome.TrustedSteered,
	}
}

// trustedSteeredQuery ORs site: filters for the top trusted domains onto
// the original query. Empty when the registry has no trusted entries.
func trustedSteeredQuery(query string, sources []trust.Source) string {
	domains := trust.TopTrustedDomains(sources, steeredSiteDomains)
	if len(domains) == 0 {
		return ""
	}
	filters := make([]string, len(domains))
	for i, d := range domains {
		filters[i] = "site:" + d
	}
	return fmt.Sprintf("%s (%s)", query, strings.Join(filters, " OR "))
}

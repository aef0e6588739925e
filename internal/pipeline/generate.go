package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/resilience"
)

// categoryPrefix maps categories to hypothesis ID prefixes (M1, B2, C3...).
var categoryPrefix = map[model.Category]string{
	model.CategoryMarket:      "M",
	model.CategoryBrand:       "B",
	model.CategoryCompetitive: "C",
}

const resolveIndustryTemplate = `What industry is the brand "%s" in? Answer with a short industry label only, e.g. "fashion retail" or "consumer electronics". No explanation.`

const marketPromptTemplate = `Generate %d hypotheses about %s MARKET trends that could cause %s in brand salience for %s.

Time period: %s

Each search_query must target the specific claim and each broad_query must be a wider version of it. Both queries MUST include the brand name and the time period.

Return ONLY a JSON object like:
{"hypotheses": [{"id": "M1", "hypothesis": "description", "search_query": "UK fashion trend Q3 2025", "broad_query": "UK fashion retail market 2025"}]}`

const brandPromptTemplate = `Generate %d hypotheses about %s's specific actions or issues that could cause brand salience to %s.
Areas: advertising spend, store activity, marketing campaigns, PR, news coverage.

Time period: %s

Each search_query must target the specific claim and each broad_query must be a wider version of it. Both queries MUST include the brand name and the time period.

Return ONLY a JSON object like:
{"hypotheses": [{"id": "B1", "hypothesis": "description", "search_query": "%s store closures 2025", "broad_query": "%s news 2025"}]}`

const competitivePromptTemplate = `Generate %d hypotheses about competitor actions affecting %s's salience.
Competitors to consider: %s
Time period: %s

Each search_query must target the specific claim and each broad_query must be a wider version of it. Both queries MUST include the competitor or brand name and the time period.

Return ONLY a JSON object like:
{"hypotheses": [{"id": "C1", "hypothesis": "competitor action", "search_query": "Zara campaign UK 2025", "broad_query": "UK fashion competition 2025"}]}`

const relevancePromptTemplate = `A research run is investigating the brand "%s"%s. Below are candidate hypotheses with IDs.

%s

List the IDs of any hypotheses that are CLEARLY irrelevant to this brand's industry. When in doubt, keep the hypothesis.

Return ONLY a JSON object like:
{"irrelevant": ["M3"]}`

// resolveIndustry asks for a short industry label used to contextualize
// generation prompts. Never blocks the run: any failure yields "".
func (p *Pipeline) resolveIndustry(ctx context.Context, rc *runContext, brand string) string {
	if brand == "" || brand == "unknown" {
		return ""
	}
	text, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:    fmt.Sprintf(resolveIndustryTemplate, brand),
		Provider:  rc.provider,
		MaxTokens: 50,
		Model:     rc.modelOverride,
		Metrics:   rc.metrics,
	})
	if err != nil {
		zap.L().Debug("industry resolution failed", zap.String("brand", brand), zap.Error(err))
		return ""
	}
	industry := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if len(industry) > 60 {
		return ""
	}
	return industry
}

// generateHypotheses produces N hypotheses per category. Each category is
// generated independently; a parse or LLM failure substitutes that
// category's deterministic fallback so the pipeline never stalls. Quota
// exhaustion aborts instead.
func (p *Pipeline) generateHypotheses(ctx context.Context, rc *runContext, intent model.ParsedIntent, competitors []string, n int) (model.HypothesisSet, error) {
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}

	timePeriod := intent.TimePeriod
	if timePeriod == "" {
		timePeriod = "2025"
	}
	marketScope := "UK fashion retail"
	if intent.Industry != "" {
		marketScope = intent.Industry
	}

	compList := "main competitors"
	if len(competitors) > 0 {
		max := len(competitors)
		if max > 6 {
			max = 6
		}
		compList = strings.Join(competitors[:max], ", ")
	}

	prompts := map[model.Category]string{
		model.CategoryMarket:      fmt.Sprintf(marketPromptTemplate, n, marketScope, intent.Direction, intent.Brand, timePeriod),
		model.CategoryBrand:       fmt.Sprintf(brandPromptTemplate, n, intent.Brand, intent.Direction, timePeriod, intent.Brand, intent.Brand),
		model.CategoryCompetitive: fmt.Sprintf(competitivePromptTemplate, n, intent.Brand, compList, timePeriod),
	}

	set := model.EmptyHypothesisSet()
	for _, cat := range model.Categories() {
		hyps, err := p.generateCategory(ctx, rc, prompts[cat], cat, n)
		if err != nil {
			return nil, err
		}
		if len(hyps) == 0 {
			hyps = fallbackHypotheses(cat, intent, competitors, timePeriod, n)
			zap.L().Warn("using fallback hypotheses", zap.String("category", string(cat)))
		}
		set[cat] = hyps
	}
	return set, nil
}

func (p *Pipeline) generateCategory(ctx context.Context, rc *runContext, prompt string, cat model.Category, n int) ([]model.Hypothesis, error) {
	text, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:       prompt,
		Provider:     rc.provider,
		MaxTokens:    1000,
		SystemPrompt: rc.systemPrompt,
		Model:        rc.modelOverride,
		Metrics:      rc.metrics,
	})
	if err != nil {
		if resilience.IsQuotaExhausted(err) {
			return nil, err
		}
		zap.L().Warn("hypothesis generation failed", zap.String("category", string(cat)), zap.Error(err))
		return nil, nil
	}

	items := jsonList(ExtractJSON(text), "hypotheses")
	hyps := make([]model.Hypothesis, 0, len(items))
	for i, item := range items {
		if i >= n {
			break
		}
		h := model.Hypothesis{
			ID:          jsonString(item, "id"),
			Hypothesis:  strings.TrimSpace(jsonString(item, "hypothesis")),
			SearchQuery: strings.TrimSpace(jsonString(item, "search_query")),
			BroadQuery:  strings.TrimSpace(jsonString(item, "broad_query")),
		}
		if h.Hypothesis == "" {
			continue
		}
		if h.ID == "" {
			h.ID = fmt.Sprintf("%s%d", categoryPrefix[cat], len(hyps)+1)
		}
		hyps = append(hyps, h)
	}
	return hyps, nil
}

// fallbackHypotheses is the deterministic per-category substitute used when
// generation produces nothing usable.
func fallbackHypotheses(cat model.Category, intent model.ParsedIntent, competitors []string, timePeriod string, n int) []model.Hypothesis {
	brand := intent.Brand

	var hyps []model.Hypothesis
	switch cat {
	case model.CategoryMarket:
		hyps = []model.Hypothesis{
			{ID: "M1", Hypothesis: fmt.Sprintf("Economic downturn affecting fashion spending in %s", timePeriod), SearchQuery: fmt.Sprintf("UK fashion spending economy %s", timePeriod)},
			{ID: "M2", Hypothesis: "Online shopping shift away from physical retail", SearchQuery: fmt.Sprintf("UK online fashion shopping growth %s", timePeriod)},
			{ID: "M3", Hypothesis: "Seasonal trends or weather impacting fashion sales", SearchQuery: fmt.Sprintf("UK fashion sales weather seasonal %s", timePeriod)},
		}
	case model.CategoryBrand:
		hyps = []model.Hypothesis{
			{ID: "B1", Hypothesis: fmt.Sprintf("%s store closures or reduced presence", brand), SearchQuery: fmt.Sprintf("%s store closures %s", brand, timePeriod)},
			{ID: "B2", Hypothesis: fmt.Sprintf("%s marketing or advertising spend changes", brand), SearchQuery: fmt.Sprintf("%s advertising marketing %s", brand, timePeriod)},
			{ID: "B3", Hypothesis: fmt.Sprintf("News or media coverage about %s", brand), SearchQuery: fmt.Sprintf("%s news media %s", brand, timePeriod)},
		}
	case model.CategoryCompetitive:
		comps := competitors
		if len(comps) == 0 {
			comps = []string{"Zara", "H&M", "Primark"}
		}
		second := comps[0]
		if len(comps) > 1 {
			second = comps[1]
		}
		hyps = []model.Hypothesis{
			{ID: "C1", Hypothesis: fmt.Sprintf("%s launched major marketing campaign", comps[0]), SearchQuery: fmt.Sprintf("%s marketing campaign UK %s", comps[0], timePeriod)},
			{ID: "C2", Hypothesis: fmt.Sprintf("%s store expansion or new initiatives", second), SearchQuery: fmt.Sprintf("%s stores UK %s", second, timePeriod)},
			{ID: "C3", Hypothesis: "Competitor news or media dominance", SearchQuery: fmt.Sprintf("UK fashion retailers competition %s", timePeriod)},
		}
	}
	if len(hyps) > n {
		hyps = hyps[:n]
	}
	return hyps
}

// filterRelevance removes hypotheses the LLM flags as clearly irrelevant
// to the brand's industry. A safety net, never authoritative: a category is
// never emptied (its first hypothesis survives even if flagged) and any
// filter failure leaves the set untouched.
func (p *Pipeline) filterRelevance(ctx context.Context, rc *runContext, intent model.ParsedIntent, set model.HypothesisSet) model.HypothesisSet {
	var lines []string
	for _, cat := range model.Categories() {
		for _, h := range set[cat] {
			lines = append(lines, fmt.Sprintf("%s: %s", h.ID, h.Hypothesis))
		}
	}
	if len(lines) == 0 {
		return set
	}

	industryHint := ""
	if intent.Industry != "" {
		industryHint = fmt.Sprintf(" (industry: %s)", intent.Industry)
	}

	text, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:    fmt.Sprintf(relevancePromptTemplate, intent.Brand, industryHint, strings.Join(lines, "\n")),
		Provider:  rc.provider,
		MaxTokens: 300,
		Model:     rc.modelOverride,
		Metrics:   rc.metrics,
	})
	if err != nil {
		zap.L().Debug("relevance filter failed, keeping all hypotheses", zap.Error(err))
		return set
	}

	flagged := make(map[string]bool)
	for _, id := range jsonStringList(ExtractJSON(text), "irrelevant") {
		flagged[strings.ToUpper(strings.TrimSpace(id))] = true
	}
	if len(flagged) == 0 {
		return set
	}

	out := model.EmptyHypothesisSet()
	for _, cat := range model.Categories() {
		kept := make([]model.Hypothesis, 0, len(set[cat]))
		for _, h := range set[cat] {
			if !flagged[strings.ToUpper(h.ID)] {
				kept = append(kept, h)
			}
		}
		// Removal never empties a category.
		if len(kept) == 0 && len(set[cat]) > 0 {
			kept = set[cat][:1]
		}
		out[cat] = kept
	}
	return out
}

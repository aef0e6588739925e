// Package model defines the core data types shared across the research pipeline.
package model

// Category identifies one of the three hypothesis families.
type Category string

const (
	CategoryMarket      Category = "market"
	CategoryBrand       Category = "brand"
	CategoryCompetitive Category = "competitive"
)

// Categories lists the hypothesis categories in canonical order.
func Categories() []Category {
	return []Category{CategoryMarket, CategoryBrand, CategoryCompetitive}
}

// ResearchRequest carries one question into the pipeline. Immutable once a
// run starts.
type ResearchRequest struct {
	Question string `json:"question"`

	// Provider selects the LLM backend ("anthropic" or "openai"). Empty
	// means the configured default.
	Provider string `json:"provider,omitempty"`

	// SystemPrompt, when set, is prepended to every LLM call in this run.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxHypothesesPerCategory bounds each category to [1,10]. Zero means
	// the configured default.
	MaxHypothesesPerCategory int `json:"max_hypotheses_per_category,omitempty"`

	// ModelOverride replaces the provider's default model for this run.
	ModelOverride string `json:"model_override,omitempty"`

	// TrustedSources, when non-empty, replaces the shared registry for
	// scoring within this run only.
	TrustedSources []TrustedSource `json:"trusted_sources,omitempty"`
}

// TrustedSource is one registry entry supplied with a request override.
type TrustedSource struct {
	Domain     string `json:"domain"`
	Name       string `json:"name"`
	TrustScore int    `json:"trust_score"`
	Tier       string `json:"tier"`
}

// ParsedIntent is the structured reading of a question, produced once per
// run by the LLM extractor. Extraction never fails: any error yields
// FallbackIntent instead.
type ParsedIntent struct {
	Brand      string `json:"brand"`
	Metric     string `json:"metric"`
	Direction  string `json:"direction"`
	TimePeriod string `json:"time_period,omitempty"`
	Region     string `json:"region,omitempty"`
	Industry   string `json:"industry,omitempty"`
}

// FallbackIntent is the fixed value substituted when intent extraction
// fails for any reason.
func FallbackIntent() ParsedIntent {
	return ParsedIntent{Brand: "unknown", Metric: "salient", Direction: "change"}
}

// Hypothesis is one candidate explanation for a metric change. Created by
// the generator, read-only afterward.
type Hypothesis struct {
	// ID is category-scoped: M1, B2, C3...
	ID         string `json:"id"`
	Hypothesis string `json:"hypothesis"`

	// SearchQuery targets the specific claim; BroadQuery is the wider
	// fallback used by the second validation pass.
	SearchQuery string `json:"search_query"`
	BroadQuery  string `json:"broad_query,omitempty"`
}

// HypothesisSet groups hypotheses by category.
type HypothesisSet map[Category][]Hypothesis

// EmptyHypothesisSet returns a set with all three categories present.
func EmptyHypothesisSet() HypothesisSet {
	return HypothesisSet{
		CategoryMarket:      {},
		CategoryBrand:       {},
		CategoryCompetitive: {},
	}
}

// Total counts hypotheses across all categories.
func (s HypothesisSet) Total() int {
	n := 0
	for _, hyps := range s {
		n += len(hyps)
	}
	return n
}

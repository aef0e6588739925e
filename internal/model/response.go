package model

// Summary driver keys, one per hypothesis category.
const (
	DriverMacro       = "macro_drivers"
	DriverBrand       = "brand_drivers"
	DriverCompetitive = "competitive_drivers"
)

// Driver is one summary entry built from a validated finding.
type Driver struct {
	Driver      string   `json:"driver"`
	Hypothesis  string   `json:"hypothesis"`
	SourceURLs  []string `json:"source_urls"`
	SourceTitle string   `json:"source_title"`
	Confidence  string   `json:"confidence"`
	Status      string   `json:"status"`
}

// Summary maps driver keys to summary entries.
type Summary map[string][]Driver

// EmptySummary returns a summary with all driver sections present.
func EmptySummary() Summary {
	return Summary{
		DriverMacro:       {},
		DriverBrand:       {},
		DriverCompetitive: {},
	}
}

// Coaching is the non-pipeline payload returned for help requests and
// out-of-scope questions.
type Coaching struct {
	Kind               string   `json:"kind,omitempty"`
	Message            string   `json:"message"`
	SupportedMetrics   []string `json:"supported_metrics,omitempty"`
	Examples           []string `json:"examples,omitempty"`
	Note               string   `json:"note,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	Need               []string `json:"need,omitempty"`
}

// ResearchResponse is the complete answer for one run. Always structurally
// complete: every category and driver section is present even when empty.
type ResearchResponse struct {
	Question     string   `json:"question"`
	Brand        string   `json:"brand"`
	Metrics      []string `json:"metrics"`
	Direction    string   `json:"direction"`
	TimePeriod   string   `json:"time_period,omitempty"`
	ProviderUsed string   `json:"provider_used"`

	Hypotheses          HypothesisSet `json:"hypotheses"`
	ValidatedHypotheses FindingSet    `json:"validated_hypotheses"`
	Summary             Summary       `json:"summary"`
	TrustedRatio        float64       `json:"trusted_ratio"`
	ExecutiveSummary    string        `json:"executive_summary,omitempty"`

	Coaching *Coaching `json:"coaching,omitempty"`

	RunID            string `json:"run_id,omitempty"`
	LatencyMS        int64  `json:"latency_ms"`
	WebSearches      int64  `json:"web_searches"`
	WebSearchRetries int64  `json:"web_search_retries"`
	LLMCalls         int64  `json:"llm_calls"`
	TokensIn         int64  `json:"tokens_in"`
	TokensOut        int64  `json:"tokens_out"`
	TokensTotal      int64  `json:"tokens_total"`
}

package model

// Trust tiers, coarsest credibility classification for a web domain.
const (
	TierTrusted    = "trusted"
	TierReputable  = "reputable"
	TierUnverified = "unverified"
	TierCustom     = "custom"
)

// EvidenceSource is one retrieved web source, scored against the trusted
// source registry. Ephemeral: lives only for the duration of a run.
type EvidenceSource struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Content    string `json:"content"`
	RawContent string `json:"raw_content,omitempty"`

	TrustScore int    `json:"trust_score"`
	Tier       string `json:"tier"`
	SourceName string `json:"source_name,omitempty"`
	IsTrusted  bool   `json:"is_trusted"`
}

// ValidationResult is the LLM judge's verdict for one hypothesis against
// retrieved evidence. Absence of a clear answer is validated=false, never
// an error.
type ValidationResult struct {
	Validated bool   `json:"validated"`
	Evidence  string `json:"evidence"`
}

// Finding is a validated hypothesis with its accepted leading evidence
// source. A finding exists only when validation succeeded with at least
// one source present.
type Finding struct {
	Status      string `json:"status"`
	Hypothesis  string `json:"hypothesis"`
	Evidence    string `json:"evidence"`
	Source      string `json:"source,omitempty"`
	SourceTitle string `json:"source_title,omitempty"`
	TrustScore  int    `json:"trust_score"`
	Tier        string `json:"tier,omitempty"`
	IsTrusted   bool   `json:"is_trusted"`

	SecondPassUsed bool `json:"second_pass_used,omitempty"`
	TrustedSteered bool `json:"trusted_steered,omitempty"`
}

// StatusValidated is the only status a Finding carries today.
const StatusValidated = "VALIDATED"

// FindingSet groups validated findings by category.
type FindingSet map[Category][]Finding

// EmptyFindingSet returns a set with all three categories present.
func EmptyFindingSet() FindingSet {
	return FindingSet{
		CategoryMarket:      {},
		CategoryBrand:       {},
		CategoryCompetitive: {},
	}
}

// Total counts findings across all categories.
func (s FindingSet) Total() int {
	n := 0
	for _, items := range s {
		n += len(items)
	}
	return n
}

// TrustedRatio is the fraction of findings flagged as trusted. Returns 0
// for an empty set.
func (s FindingSet) TrustedRatio() float64 {
	total := 0
	trusted := 0
	for _, items := range s {
		for _, f := range items {
			total++
			if f.IsTrusted {
				trusted++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(trusted) / float64(total)
}

// HypothesisOutcome is the per-hypothesis record emitted by the validator,
// validated or not. Streaming clients receive one of these per completed
// hypothesis.
type HypothesisOutcome struct {
	Category    Category `json:"category"`
	Hypothesis  string   `json:"hypothesis"`
	SearchQuery string   `json:"search_query,omitempty"`
	Validated   bool     `json:"validated"`
	Evidence    string   `json:"evidence,omitempty"`
	Source      string   `json:"source,omitempty"`
	SourceTitle string   `json:"source_title,omitempty"`
	ResultCount int      `json:"result_count"`

	SecondPassUsed bool   `json:"second_pass_used,omitempty"`
	SecondQuery    string `json:"second_query,omitempty"`
	TrustedSteered bool   `json:"trusted_steered,omitempty"`
	SearchCalls    int    `json:"search_calls"`
	Error          string `json:"error,omitempty"`
}

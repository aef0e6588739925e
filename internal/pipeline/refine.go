package pipeline

import "strings"

// RefineQuery broadens a search query by appending the brand, time period,
// a region token (skipped when the region already appears in the query,
// case-insensitively) and a generic domain qualifier. Deterministic and
// side-effect-free; used both to bake broad fallback queries into
// hypotheses and as the runtime second-pass refinement.
func RefineQuery(original, brand, timePeriod, region string) string {
	parts := []string{original, brand, timePeriod}

	if region != "" && !strings.Contains(strings.ToLower(original), strings.ToLower(region)) {
		parts = append(parts, region)
	}
	parts = append(parts, "retail")

	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

package pipeline

import (
	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/model"
)

// ApplyQualityGate enforces a minimum trusted-evidence ratio over the
// validated findings by removal only. While the ratio is below minPct and
// at least 2 findings remain, the single lowest-trust-score unverified
// finding is dropped and the ratio recomputed. The gate never fabricates
// or upgrades evidence and never reduces the set below 1 finding.
func ApplyQualityGate(findings model.FindingSet, minPct float64) (model.FindingSet, []model.Finding) {
	if minPct <= 0 || findings.Total() == 0 {
		return findings, nil
	}

	var dropped []model.Finding
	for findings.Total() >= 2 && findings.TrustedRatio()*100 < minPct {
		cat, idx := lowestUnverified(findings)
		if idx < 0 {
			break
		}
		dropped = append(dropped, findings[cat][idx])
		findings[cat] = append(findings[cat][:idx], findings[cat][idx+1:]...)
	}

	if len(dropped) > 0 {
		zap.L().Info("quality gate dropped findings",
			zap.Int("dropped", len(dropped)),
			zap.Float64("trusted_ratio", findings.TrustedRatio()),
		)
	}
	return findings, dropped
}

// lowestUnverified locates the non-trusted finding with the lowest trust
// score. Returns idx -1 when every remaining finding is trusted.
func lowestUnverified(findings model.FindingSet) (model.Category, int) {
	bestCat := model.Category("")
	bestIdx := -1
	bestScore := 0
	for _, cat := range model.Categories() {
		for i, f := range findings[cat] {
			if f.IsTrusted {
				continue
			}
			if bestIdx < 0 || f.TrustScore < bestScore {
				bestCat, bestIdx, bestScore = cat, i, f.TrustScore
			}
		}
	}
	return bestCat, bestIdx
}

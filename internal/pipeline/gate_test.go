package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaia-labs/researcher/internal/model"
)

func finding(hyp string, score int, trusted bool) model.Finding {
	return model.Finding{
		Status:     model.StatusValidated,
		Hypothesis: hyp,
		Evidence:   "evidence for " + hyp,
		Source:     "https://example.com/" + hyp,
		TrustScore: score,
		IsTrusted:  trusted,
	}
}

func TestQualityGateDropsLowestUnverifiedUntilThreshold(t *testing.T) {
	findings := model.FindingSet{
		model.CategoryMarket: {
			finding("m1", 100, true),
			finding("m2", 20, false),
		},
		model.CategoryBrand: {
			finding("b1", 30, false),
			finding("b2", 50, false),
		},
		model.CategoryCompetitive: {},
	}

	// 1 trusted of 4 = 25%, needs 50%: drop the two lowest unverified.
	gated, dropped := ApplyQualityGate(findings, 50)

	require.Len(t, dropped, 2)
	assert.Equal(t, "m2", dropped[0].Hypothesis)
	assert.Equal(t, "b1", dropped[1].Hypothesis)
	assert.Equal(t, 2, gated.Total())
	assert.GreaterOrEqual(t, gated.TrustedRatio()*100, 50.0)
}

func TestQualityGateNeverDropsBelowTwoFindings(t *testing.T) {
	findings := model.FindingSet{
		model.CategoryMarket: {
			finding("m1", 20, false),
			finding("m2", 30, false),
		},
	}

	gated, dropped := ApplyQualityGate(findings, 90)

	// Ratio can never be met, but the floor holds at 1 finding after one
	// removal brings the total to fewer than 2.
	require.Len(t, dropped, 1)
	assert.Equal(t, 1, gated.Total())
}

func TestQualityGateStopsWhenOnlyTrustedRemain(t *testing.T) {
	findings := model.FindingSet{
		model.CategoryMarket: {finding("m1", 100, true), finding("m2", 95, true)},
	}

	gated, dropped := ApplyQualityGate(findings, 99)

	assert.Empty(t, dropped)
	assert.Equal(t, 2, gated.Total())
}

func TestQualityGateNoopAboveThreshold(t *testing.T) {
	findings := model.FindingSet{
		model.CategoryMarket: {finding("m1", 100, true)},
		model.CategoryBrand:  {finding("b1", 78, false)},
	}

	gated, dropped := ApplyQualityGate(findings, 25)

	assert.Empty(t, dropped)
	assert.Equal(t, 2, gated.Total())
}

func TestQualityGateEmptySet(t *testing.T) {
	gated, dropped := ApplyQualityGate(model.EmptyFindingSet(), 25)
	assert.Empty(t, dropped)
	assert.Equal(t, 0, gated.Total())
}

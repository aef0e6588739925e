// Package eval runs a canned question set through the research pipeline
// and scores the responses heuristically for provider comparisons.
package eval

import (
	"context"

	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/pipeline"
	"github.com/kaia-labs/researcher/internal/trust"
)

// Question is one entry in the eval set.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Questions returns the fixed eval question set.
func Questions() []Question {
	return []Question{
		{ID: "q1", Text: "Salience fell by 6 points in Q3 2025 for New Look — find external reasons with citations."},
		{ID: "q2", Text: "Brand awareness increased for Primark in Q2 2025 — what external events could explain it? Provide citations."},
		{ID: "q3", Text: "Salience dropped for Zara in the UK in Q4 2025 — find validated drivers with citations."},
		{ID: "q4", Text: "Consideration fell for ASOS during summer 2025 — what market or competitor factors explain the change?"},
		{ID: "q5", Text: "Share of voice is down for H&M in Q1 2026 — find external reasons with citations."},
	}
}

// Score is the heuristic 0-100 quality verdict over one response.
type Score struct {
	Score            int `json:"score"`
	DriversTotal     int `json:"drivers_total"`
	SectionsNonempty int `json:"sections_nonempty"`
	CitationsTotal   int `json:"citations_total"`
	UniqueDomains    int `json:"unique_domains"`
}

// ScoreResponse grades a research response on citation count, populated
// summary sections, driver count, and source diversity. Responses with no
// citations or no drivers are penalized.
func ScoreResponse(resp *model.ResearchResponse) Score {
	var s Score
	domains := map[string]bool{}

	for _, key := range []string{model.DriverMacro, model.DriverBrand, model.DriverCompetitive} {
		drivers := resp.Summary[key]
		if len(drivers) > 0 {
			s.SectionsNonempty++
		}
		s.DriversTotal += len(drivers)
		for _, d := range drivers {
			for _, u := range d.SourceURLs {
				if u == "" {
					continue
				}
				s.CitationsTotal++
				if dom := trust.RegistrableDomain(u); dom != "" {
					domains[dom] = true
				}
			}
		}
	}
	s.UniqueDomains = len(domains)

	score := 0
	score += min(s.CitationsTotal, 6) * 5
	score += s.SectionsNonempty * 10
	score += min(s.DriversTotal, 6) * 3
	score += min(s.UniqueDomains, 5) * 2
	if s.CitationsTotal == 0 {
		score -= 10
	}
	if s.DriversTotal == 0 {
		score -= 15
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	s.Score = score
	return s
}

// Result is the outcome of one question/provider pairing.
type Result struct {
	QuestionID string                  `json:"question_id"`
	Provider   string                  `json:"provider"`
	Score      Score                   `json:"score"`
	Response   *model.ResearchResponse `json:"response,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Run sweeps up to limit eval questions through the pipeline for both
// providers in eval mode (capped hypotheses, no escalation passes). A
// failed run scores zero and records the error; it never aborts the sweep.
func Run(ctx context.Context, p *pipeline.Pipeline, providerA, providerB string, limit int) []Result {
	questions := Questions()
	if limit < 1 {
		limit = 3
	}
	if limit > len(questions) {
		limit = len(questions)
	}
	questions = questions[:limit]

	var results []Result
	for _, q := range questions {
		for _, provider := range []string{providerA, providerB} {
			resp, err := p.Run(ctx, model.ResearchRequest{
				Question: q.Text,
				Provider: provider,
			}, pipeline.RunOptions{EvalMode: true})
			if err != nil {
				zap.L().Warn("eval run failed",
					zap.String("question_id", q.ID),
					zap.String("provider", provider),
					zap.Error(err),
				)
				results = append(results, Result{QuestionID: q.ID, Provider: provider, Error: err.Error()})
				continue
			}
			results = append(results, Result{
				QuestionID: q.ID,
				Provider:   provider,
				Score:      ScoreResponse(resp),
				Response:   resp,
			})
		}
	}
	return results
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/model"
)

// driverKey maps hypothesis categories to summary sections.
var driverKey = map[model.Category]string{
	model.CategoryMarket:      model.DriverMacro,
	model.CategoryBrand:       model.DriverBrand,
	model.CategoryCompetitive: model.DriverCompetitive,
}

// BuildSummary reshapes validated findings into the driver summary. Pure
// formatting; all filtering happened upstream.
func BuildSummary(findings model.FindingSet) model.Summary {
	summary := model.EmptySummary()
	for _, cat := range model.Categories() {
		key := driverKey[cat]
		for _, f := range findings[cat] {
			if f.Status != model.StatusValidated {
				continue
			}
			driver := f.Evidence
			if driver == "" {
				driver = f.Hypothesis
			}
			var urls []string
			if f.Source != "" {
				urls = []string{f.Source}
			}
			summary[key] = append(summary[key], model.Driver{
				Driver:      driver,
				Hypothesis:  f.Hypothesis,
				SourceURLs:  urls,
				SourceTitle: f.SourceTitle,
				Confidence:  "medium",
				Status:      f.Status,
			})
		}
	}
	return summary
}

const executiveSummaryTemplate = `You are writing a short executive summary for a brand research report.

Question: %s
Brand: %s

Validated findings:
%s

Write 2-4 sentences synthesizing these findings into a coherent narrative answering the question. Mention only facts from the findings. Plain prose, no headings, no bullet points.`

// executiveSummary synthesizes a short narrative over the validated
// findings. Optional: any failure or an empty finding set yields "".
func (p *Pipeline) executiveSummary(ctx context.Context, rc *runContext, question string, intent model.ParsedIntent, findings model.FindingSet) string {
	var lines []string
	for _, cat := range model.Categories() {
		for _, f := range findings[cat] {
			lines = append(lines, fmt.Sprintf("- [%s] %s (%s)", cat, f.Evidence, f.SourceTitle))
		}
	}
	if len(lines) == 0 {
		return ""
	}

	text, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:       fmt.Sprintf(executiveSummaryTemplate, question, intent.Brand, strings.Join(lines, "\n")),
		Provider:     rc.provider,
		MaxTokens:    400,
		SystemPrompt: rc.systemPrompt,
		Model:        rc.modelOverride,
		Metrics:      rc.metrics,
	})
	if err != nil {
		zap.L().Debug("executive summary failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

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

const parsePromptTemplate = `Parse this brand research question and extract:
- brand: the brand being discussed (lowercase)
- metric: the metric mentioned (e.g. "salience", "awareness", "consideration")
- direction: "increase", "decrease", or "change"
- time_period: any time period mentioned (e.g. "Q3 2025")
- region: any region or country mentioned

Question: %s

Return ONLY valid JSON with these exact keys.`

// parseQuestion extracts structured intent from the question with one LLM
// call. Any failure other than quota exhaustion yields the fixed fallback
// intent; quota exhaustion aborts the run so the caller can surface it.
func (p *Pipeline) parseQuestion(ctx context.Context, rc *runContext, question string) (model.ParsedIntent, error) {
	text, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:       fmt.Sprintf(parsePromptTemplate, question),
		Provider:     rc.provider,
		MaxTokens:    500,
		SystemPrompt: rc.systemPrompt,
		Model:        rc.modelOverride,
		Metrics:      rc.metrics,
	})
	if err != nil {
		if resilience.IsQuotaExhausted(err) {
			return model.ParsedIntent{}, err
		}
		zap.L().Warn("parse question failed, using fallback intent", zap.Error(err))
		return model.FallbackIntent(), nil
	}

	data := ExtractJSON(text)
	intent := model.ParsedIntent{
		Brand:      strings.ToLower(strings.TrimSpace(jsonString(data, "brand"))),
		Metric:     strings.TrimSpace(jsonString(data, "metric")),
		Direction:  strings.TrimSpace(jsonString(data, "direction")),
		TimePeriod: strings.TrimSpace(jsonString(data, "time_period")),
		Region:     strings.TrimSpace(jsonString(data, "region")),
	}
	if intent.Brand == "" {
		return model.FallbackIntent(), nil
	}
	if intent.Metric == "" {
		intent.Metric = "salient"
	}
	if intent.Direction == "" {
		intent.Direction = "change"
	}
	return intent, nil
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/model"
)

// Judge input bounds. Synthesized analysis prose gets a larger window than
// an ordinary snippet.
const (
	judgeMaxSources      = 3
	judgeSnippetChars    = 1500
	judgeAnalysisChars   = 4000
	analysisSourceMarker = "Web Search Analysis"
)

const judgePromptTemplate = `Hypothesis: %s

Search Results:
%s

Does this search result contain direct evidence supporting the hypothesis?
Report only facts explicitly present in the sources. No inference, no speculation.
Return JSON: {"validated": true/false, "evidence": "SHORT factual summary (20 words max) with key numbers/dates"}`

// judge asks the LLM whether the evidence supports the hypothesis. Never
// returns an error: any failure, including malformed JSON, reads as
// {validated: false, evidence: ""}.
func (p *Pipeline) judge(ctx context.Context, rc *runContext, hyp model.Hypothesis, sources []model.EvidenceSource) model.ValidationResult {
	if len(sources) == 0 {
		return model.ValidationResult{}
	}

	top := sources
	if len(top) > judgeMaxSources {
		top = top[:judgeMaxSources]
	}

	var blocks []string
	for _, s := range top {
		content := s.RawContent
		if content == "" {
			content = s.Content
		}
		limit := judgeSnippetChars
		if s.Title == analysisSourceMarker {
			limit = judgeAnalysisChars
		}
		if len(content) > limit {
			content = content[:limit]
		}
		blocks = append(blocks, fmt.Sprintf("Title: %s\nContent: %s", s.Title, content))
	}

	text, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:    fmt.Sprintf(judgePromptTemplate, hyp.Hypothesis, strings.Join(blocks, "\n\n")),
		Provider:  rc.provider,
		MaxTokens: 500,
		Model:     rc.modelOverride,
		Metrics:   rc.metrics,
	})
	if err != nil {
		zap.L().Warn("judge call failed", zap.String("hypothesis", hyp.ID), zap.Error(err))
		return model.ValidationResult{}
	}

	data := ExtractJSON(text)
	return model.ValidationResult{
		Validated: jsonBool(data, "validated"),
		Evidence:  strings.TrimSpace(jsonString(data, "evidence")),
	}
}

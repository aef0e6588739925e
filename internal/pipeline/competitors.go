package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/model"
)

// competitorTable seeds known brand rivalries; brands outside the table
// fall back to LLM discovery.
var competitorTable = map[string][]string{
	"new look": {"primark", "m&s", "asos", "next", "h&m", "shein", "zara"},
	"primark":  {"new look", "h&m", "shein"},
	"zara":     {"h&m", "shein", "asos"},
}

const discoverCompetitorsTemplate = `List up to 6 direct competitors of the brand "%s"%s.

Return ONLY a JSON object like:
{"competitors": ["brand one", "brand two"]}`

// competitorsFor returns known competitors for the brand, consulting the
// static table first and falling back to LLM discovery for unknown brands.
// Discovery failures are non-fatal and yield an empty list.
func (p *Pipeline) competitorsFor(ctx context.Context, rc *runContext, intent model.ParsedIntent) []string {
	if comps, ok := competitorTable[intent.Brand]; ok {
		return comps
	}
	if intent.Brand == "" || intent.Brand == "unknown" {
		return nil
	}

	industryHint := ""
	if intent.Industry != "" {
		industryHint = fmt.Sprintf(" in the %s industry", intent.Industry)
	}

	text, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:       fmt.Sprintf(discoverCompetitorsTemplate, intent.Brand, industryHint),
		Provider:     rc.provider,
		MaxTokens:    300,
		SystemPrompt: rc.systemPrompt,
		Model:        rc.modelOverride,
		Metrics:      rc.metrics,
	})
	if err != nil {
		zap.L().Warn("competitor discovery failed", zap.String("brand", intent.Brand), zap.Error(err))
		return nil
	}

	raw := jsonStringList(ExtractJSON(text), "competitors")
	comps := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			comps = append(comps, c)
		}
	}
	if len(comps) > 6 {
		comps = comps[:6]
	}
	return comps
}

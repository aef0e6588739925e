// Package llm provides a uniform text-generation gateway over the
// interchangeable model providers.
package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kaia-labs/researcher/internal/config"
	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/resilience"
	"github.com/kaia-labs/researcher/pkg/anthropic"
)

// Provider names form a closed set. An unknown name is a client error,
// never a silent substitution.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ErrUnknownProvider is returned for provider names outside the closed set.
var ErrUnknownProvider = eris.New("llm: unknown provider (use \"anthropic\" or \"openai\")")

// GenerateRequest is one text-generation call.
type GenerateRequest struct {
	Prompt       string
	Provider     string
	MaxTokens    int
	SystemPrompt string

	// Model overrides the provider's configured default when non-empty.
	Model string

	// Metrics receives the per-call usage record. Passed explicitly; the
	// gateway never reaches for ambient state.
	Metrics *model.RunMetrics
}

// Gateway generates text via a named provider and records usage metrics.
type Gateway interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// OpenAIChatClient is the slice of the go-openai client the gateway uses.
type OpenAIChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type gateway struct {
	anthropic      anthropic.Client
	openai         OpenAIChatClient
	anthropicModel string
	openaiModel    string
}

// NewGateway wires the two provider backends.
func NewGateway(ac anthropic.Client, oc OpenAIChatClient, anthropicModel, openaiModel string) Gateway {
	return &gateway{
		anthropic:      ac,
		openai:         oc,
		anthropicModel: anthropicModel,
		openaiModel:    openaiModel,
	}
}

// NewOpenAIClient builds the go-openai client from configuration,
// supporting both standard and Azure deployments.
func NewOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	if cfg.Azure {
		azCfg := openai.DefaultAzureConfig(cfg.Key, cfg.AzureURL)
		azCfg.APIVersion = cfg.APIVersion
		return openai.NewClientWithConfig(azCfg)
	}
	c := openai.DefaultConfig(cfg.Key)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}

func (g *gateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1000
	}

	started := time.Now()

	switch req.Provider {
	case ProviderAnthropic:
		return g.generateAnthropic(ctx, req, started)
	case ProviderOpenAI:
		return g.generateOpenAI(ctx, req, started)
	default:
		return "", eris.Wrapf(ErrUnknownProvider, "llm: provider %q", req.Provider)
	}
}

func (g *gateway) generateAnthropic(ctx context.Context, req GenerateRequest, started time.Time) (string, error) {
	mdl := req.Model
	if mdl == "" {
		mdl = g.anthropicModel
	}

	resp, err := g.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     mdl,
		MaxTokens: int64(req.MaxTokens),
		System:    req.SystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return "", classify(ProviderAnthropic, err)
	}

	req.Metrics.RecordLLMCall(model.LLMCall{
		Provider:    ProviderAnthropic,
		Model:       mdl,
		LatencyMS:   time.Since(started).Milliseconds(),
		MaxTokens:   req.MaxTokens,
		TokensIn:    resp.Usage.InputTokens,
		TokensOut:   resp.Usage.OutputTokens,
		PromptChars: len(req.Prompt),
		OutputChars: len(resp.Text),
	})

	return resp.Text, nil
}

func (g *gateway) generateOpenAI(ctx context.Context, req GenerateRequest, started time.Time) (string, error) {
	mdl := req.Model
	if mdl == "" {
		mdl = g.openaiModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := g.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     mdl,
		MaxTokens: req.MaxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", classify(ProviderOpenAI, err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	req.Metrics.RecordLLMCall(model.LLMCall{
		Provider:    ProviderOpenAI,
		Model:       mdl,
		LatencyMS:   time.Since(started).Milliseconds(),
		MaxTokens:   req.MaxTokens,
		TokensIn:    int64(resp.Usage.PromptTokens),
		TokensOut:   int64(resp.Usage.CompletionTokens),
		PromptChars: len(req.Prompt),
		OutputChars: len(text),
	})

	return text, nil
}

// classify distinguishes billing/quota exhaustion from generic provider
// failures so callers can surface an actionable message.
func classify(provider string, err error) error {
	if resilience.IsQuotaExhausted(err) {
		return eris.Wrapf(resilience.NewQuotaExhaustedError(provider, err), "llm: %s", provider)
	}
	return eris.Wrapf(err, "llm: %s generate", provider)
}

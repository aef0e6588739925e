package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/pipeline"
	"github.com/kaia-labs/researcher/internal/search"
	"github.com/kaia-labs/researcher/internal/telemetry"
	"github.com/kaia-labs/researcher/internal/trust"
	"github.com/kaia-labs/researcher/pkg/anthropic"
	"github.com/kaia-labs/researcher/pkg/websearch"
)

// env bundles the wired application components shared by the commands.
type env struct {
	Pipeline  *pipeline.Pipeline
	Recorder  *telemetry.Recorder
	Registry  *trust.Registry
	Retriever search.Retriever

	store *telemetry.Store
}

// initEnv wires clients, retriever, telemetry, and the pipeline from the
// loaded configuration.
func initEnv(ctx context.Context) (*env, error) {
	if cfg.Anthropic.Key == "" && cfg.OpenAI.Key == "" {
		return nil, eris.New("no provider credentials configured (set RESEARCHER_ANTHROPIC_KEY or RESEARCHER_OPENAI_KEY)")
	}

	gateway := llm.NewGateway(
		anthropic.NewClient(cfg.Anthropic.Key),
		llm.NewOpenAIClient(cfg.OpenAI),
		cfg.Anthropic.Model,
		cfg.OpenAI.Model,
	)

	var searchOpts []websearch.Option
	if cfg.OpenAI.Azure {
		searchOpts = append(searchOpts, websearch.WithAzure(), websearch.WithBaseURL(cfg.OpenAI.AzureURL))
	} else if cfg.OpenAI.BaseURL != "" {
		searchOpts = append(searchOpts, websearch.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.Search.Model != "" {
		searchOpts = append(searchOpts, websearch.WithModel(cfg.Search.Model))
	}
	searchClient := websearch.NewClient(cfg.OpenAI.Key, searchOpts...)

	registry := trust.NewRegistry()
	retriever := search.NewRetriever(searchClient, registry, search.Config{
		Model:      cfg.Search.Model,
		MaxSources: cfg.Search.MaxSources,
		RPM:        cfg.Search.RPM,
	})

	var store *telemetry.Store
	if cfg.Telemetry.DatabasePath != "" {
		s, err := telemetry.NewStore(cfg.Telemetry.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		store = s
		zap.L().Info("telemetry store opened", zap.String("path", cfg.Telemetry.DatabasePath))
	}
	recorder := telemetry.NewRecorder(cfg.Telemetry.RingSize, store)

	p := pipeline.New(gateway, retriever, registry, recorder, pipeline.Config{
		DefaultProvider:          cfg.Pipeline.DefaultProvider,
		MaxHypothesesPerCategory: cfg.Pipeline.MaxHypothesesPerCategory,
		Workers:                  cfg.Pipeline.Workers,
		MinVerifiedPct:           cfg.Pipeline.MinVerifiedPct,
		RelevanceFilter:          cfg.Pipeline.RelevanceFilter,
		TrustedSteering:          cfg.Pipeline.TrustedSteering,
		ExecutiveSummary:         cfg.Pipeline.ExecutiveSummary,
	})

	return &env{
		Pipeline:  p,
		Recorder:  recorder,
		Registry:  registry,
		Retriever: retriever,
		store:     store,
	}, nil
}

func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("close telemetry store", zap.Error(err))
		}
	}
}

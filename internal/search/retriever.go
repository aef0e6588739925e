// Package search retrieves web evidence for hypothesis validation. It
// wraps the LLM-backed web search tool, normalizes its heterogeneous
// response shapes, and applies trust scoring and the social-media filter.
package search

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/resilience"
	"github.com/kaia-labs/researcher/internal/trust"
	"github.com/kaia-labs/researcher/pkg/websearch"
)

// analysisTitle names the pseudo-source synthesized from search prose.
const analysisTitle = "Web Search Analysis"

// analysisMaxChars bounds the synthesized analysis content.
const analysisMaxChars = 6000

// Retriever is the web evidence retriever.
type Retriever interface {
	Search(ctx context.Context, query string, opts Options) ([]model.EvidenceSource, error)
}

// Options tune one search call.
type Options struct {
	UserLocation *websearch.UserLocation

	// Model overrides the configured search model.
	Model string

	// TrustSources is the registry snapshot used for scoring. Per-request
	// overrides supply their own list here without touching the shared
	// registry.
	TrustSources []trust.Source

	// MaxSources bounds the returned list; zero means the configured
	// default.
	MaxSources int
}

// Config holds retriever construction parameters.
type Config struct {
	Model      string
	MaxSources int

	// RPM rate-limits search calls per minute when positive.
	RPM int

	// Temperature is sent with each search request until a model rejects
	// it; rejection triggers one retry without the parameter.
	Temperature *float64
}

type retriever struct {
	client   websearch.Client
	registry *trust.Registry
	limiter  *rate.Limiter
	cfg      Config
	retryCfg resilience.RetryConfig
}

// NewRetriever builds a Retriever over the given search client and shared
// trust registry.
func NewRetriever(client websearch.Client, registry *trust.Registry, cfg Config) Retriever {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 6
	}

	var limiter *rate.Limiter
	if cfg.RPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), 1)
	}

	retryCfg := resilience.SearchRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("websearch", "search")

	return &retriever{
		client:   client,
		registry: registry,
		limiter:  limiter,
		cfg:      cfg,
		retryCfg: retryCfg,
	}
}

// Search issues one web search and returns scored evidence sources sorted
// by descending trust, social-media results removed. Rate-limit errors are
// retried with exponential backoff; any other error propagates.
func (r *retriever) Search(ctx context.Context, query string, opts Options) ([]model.EvidenceSource, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "search: rate limiter")
		}
	}

	resp, err := resilience.DoVal(ctx, r.retryCfg, func(ctx context.Context) (*websearch.SearchResponse, error) {
		return r.searchOnce(ctx, query, opts)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "search: query %q", truncate(query, 60))
	}

	sources := r.normalize(resp, opts)
	zap.L().Debug("search complete",
		zap.String("query", truncate(query, 60)),
		zap.Int("sources", len(sources)),
	)
	return sources, nil
}

// searchOnce performs a single search attempt, retrying once without the
// temperature parameter if the model rejects it.
func (r *retriever) searchOnce(ctx context.Context, query string, opts Options) (*websearch.SearchResponse, error) {
	mdl := opts.Model
	if mdl == "" {
		mdl = r.cfg.Model
	}

	req := websearch.SearchRequest{
		Query:        query,
		Model:        mdl,
		UserLocation: opts.UserLocation,
		Temperature:  r.cfg.Temperature,
	}

	resp, err := r.client.Search(ctx, req)
	if err != nil && req.Temperature != nil && resilience.IsTemperatureUnsupported(err) {
		req.Temperature = nil
		resp, err = r.client.Search(ctx, req)
	}
	return resp, err
}

// normalize turns the raw search response into scored evidence sources:
// union of structured sources and citation annotations de-duplicated by
// URL, an optional leading pseudo-source carrying the synthesized analysis
// prose, social-media candidates dropped, the rest scored and sorted.
func (r *retriever) normalize(resp *websearch.SearchResponse, opts Options) []model.EvidenceSource {
	seen := make(map[string]bool)
	var discovered []websearch.Source
	for _, s := range append(append([]websearch.Source{}, resp.Sources...), resp.Citations...) {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		discovered = append(discovered, s)
	}

	var candidates []model.EvidenceSource

	if resp.AnalysisText != "" {
		topURL := ""
		if len(discovered) > 0 {
			topURL = discovered[0].URL
		}
		content := truncate(resp.AnalysisText, analysisMaxChars)
		candidates = append(candidates, model.EvidenceSource{
			Title:      analysisTitle,
			URL:        topURL,
			Content:    content,
			RawContent: content,
		})
		for _, s := range discovered {
			if s.URL == topURL {
				continue
			}
			candidates = append(candidates, model.EvidenceSource{Title: s.Title, URL: s.URL})
		}
	} else {
		for _, s := range discovered {
			candidates = append(candidates, model.EvidenceSource{Title: s.Title, URL: s.URL})
		}
	}

	trustSources := opts.TrustSources
	if trustSources == nil {
		trustSources = r.registry.Snapshot()
	}

	scored := candidates[:0]
	for _, c := range candidates {
		if c.URL != "" && trust.IsSocialMedia(c.URL) {
			continue
		}
		a := trust.Score(c.URL, trustSources)
		c.TrustScore = a.TrustScore
		c.Tier = a.Tier
		c.SourceName = a.SourceName
		c.IsTrusted = a.IsTrusted
		scored = append(scored, c)
	}

	// Stable: discovery order breaks trust-score ties.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TrustScore > scored[j].TrustScore
	})

	max := opts.MaxSources
	if max <= 0 {
		max = r.cfg.MaxSources
	}
	if len(scored) > max {
		scored = scored[:max]
	}
	return scored
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Package trust scores web sources against a registry of known domains and
// filters out social-media results.
package trust

import (
	"strings"
	"sync/atomic"

	"github.com/kaia-labs/researcher/internal/model"
)

// Source is one registry entry: a registrable domain with its display name
// and credibility assessment.
type Source struct {
	Domain     string `json:"domain"`
	Name       string `json:"name"`
	TrustScore int    `json:"trust_score"`
	Tier       string `json:"tier"`
}

// DefaultSources returns the curated seed registry. Callers get a fresh
// slice each time.
func DefaultSources() []Source {
	return []Source{
		{Domain: "reuters.com", Name: "Reuters", TrustScore: 100, Tier: model.TierTrusted},
		{Domain: "bbc.co.uk", Name: "BBC", TrustScore: 98, Tier: model.TierTrusted},
		{Domain: "ft.com", Name: "Financial Times", TrustScore: 96, Tier: model.TierTrusted},
		{Domain: "theguardian.com", Name: "The Guardian", TrustScore: 94, Tier: model.TierTrusted},
		{Domain: "bloomberg.com", Name: "Bloomberg", TrustScore: 94, Tier: model.TierTrusted},
		{Domain: "wsj.com", Name: "The Wall Street Journal", TrustScore: 92, Tier: model.TierTrusted},
		{Domain: "economist.com", Name: "The Economist", TrustScore: 90, Tier: model.TierTrusted},
		{Domain: "retailweek.com", Name: "Retail Week", TrustScore: 78, Tier: model.TierReputable},
		{Domain: "drapersonline.com", Name: "Drapers", TrustScore: 76, Tier: model.TierReputable},
		{Domain: "businessoffashion.com", Name: "Business of Fashion", TrustScore: 74, Tier: model.TierReputable},
		{Domain: "campaignlive.co.uk", Name: "Campaign", TrustScore: 70, Tier: model.TierReputable},
		{Domain: "marketingweek.com", Name: "Marketing Week", TrustScore: 70, Tier: model.TierReputable},
		{Domain: "statista.com", Name: "Statista", TrustScore: 68, Tier: model.TierReputable},
		{Domain: "mintel.com", Name: "Mintel", TrustScore: 66, Tier: model.TierReputable},
	}
}

// Registry holds the process-wide trusted source list. Readers always see a
// complete snapshot; writers swap the whole slice atomically, never mutate
// it in place.
type Registry struct {
	snapshot atomic.Pointer[[]Source]
}

// NewRegistry creates a registry seeded with the default sources.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Snapshot returns the current source list. The returned slice must be
// treated as read-only.
func (r *Registry) Snapshot() []Source {
	return *r.snapshot.Load()
}

// Replace swaps the registry contents wholesale. Entries are normalized
// (lowercased domain, www. stripped); entries without a domain are dropped.
// Entries without a tier default to custom.
func (r *Registry) Replace(sources []Source) {
	normalized := NormalizeSources(sources)
	r.snapshot.Store(&normalized)
}

// Reset restores the default curated registry.
func (r *Registry) Reset() {
	defaults := DefaultSources()
	r.snapshot.Store(&defaults)
}

// NormalizeSources cleans caller-supplied entries without touching the
// input slice. Used both for registry writes and per-request overrides.
func NormalizeSources(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		domain := strings.ToLower(strings.TrimSpace(s.Domain))
		domain = strings.TrimPrefix(domain, "www.")
		if domain == "" {
			continue
		}
		if s.Tier == "" {
			s.Tier = model.TierCustom
		}
		s.Domain = domain
		out = append(out, s)
	}
	return out
}

package trust

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaia-labs/researcher/internal/model"
)

func TestScoreConsistentAcrossWWW(t *testing.T) {
	sources := DefaultSources()

	a := Score("https://www.reuters.com/x", sources)
	b := Score("https://reuters.com/x", sources)

	assert.Equal(t, a, b)
	assert.Equal(t, model.TierTrusted, a.Tier)
	assert.Equal(t, 100, a.TrustScore)
	assert.True(t, a.IsTrusted)
	assert.Equal(t, "Reuters", a.SourceName)
}

func TestScoreSubdomainSuffixMatch(t *testing.T) {
	sources := DefaultSources()

	got := Score("https://uk.reuters.com/business/retail", sources)
	assert.Equal(t, model.TierTrusted, got.Tier)
	assert.Equal(t, "Reuters", got.SourceName)
}

func TestScoreUnknownDomainUnverified(t *testing.T) {
	got := Score("https://random-blog.example/post", DefaultSources())
	assert.Equal(t, model.TierUnverified, got.Tier)
	assert.False(t, got.IsTrusted)
	assert.Equal(t, 20, got.TrustScore)
}

func TestScoreFirstMatchWins(t *testing.T) {
	sources := []Source{
		{Domain: "news.example.com", Name: "Example News", TrustScore: 90, Tier: model.TierTrusted},
		{Domain: "example.com", Name: "Example", TrustScore: 40, Tier: model.TierReputable},
	}

	got := Score("https://news.example.com/article", sources)
	assert.Equal(t, "Example News", got.SourceName)
	assert.Equal(t, 90, got.TrustScore)
}

func TestIsSocialMedia(t *testing.T) {
	assert.True(t, IsSocialMedia("https://m.facebook.com/brandpage"))
	assert.True(t, IsSocialMedia("https://www.tiktok.com/@newlook"))
	assert.True(t, IsSocialMedia("https://x.com/status/1"))
	assert.False(t, IsSocialMedia("https://reuters.com/x"))
	assert.False(t, IsSocialMedia(""))
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "reuters.com", RegistrableDomain("https://www.reuters.com/x"))
	assert.Equal(t, "reuters.com", RegistrableDomain("reuters.com"))
	assert.Equal(t, "", RegistrableDomain(""))
}

func TestRegistryReplaceAndReset(t *testing.T) {
	r := NewRegistry()
	require.NotEmpty(t, r.Snapshot())

	r.Replace([]Source{
		{Domain: "WWW.Example.COM", Name: "Example"},
		{Domain: "   "},
	})
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "example.com", snap[0].Domain)
	assert.Equal(t, model.TierCustom, snap[0].Tier)

	r.Reset()
	assert.Equal(t, DefaultSources(), r.Snapshot())
}

func TestRegistryConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Replace([]Source{{Domain: "a.com"}, {Domain: "b.com"}})
			r.Reset()
		}
		close(stop)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := r.Snapshot()
				// Either the override pair or the full default list.
				assert.True(t, len(snap) == 2 || len(snap) == len(DefaultSources()))
			}
		}()
	}
	wg.Wait()
}

func TestTopTrustedDomains(t *testing.T) {
	domains := TopTrustedDomains(DefaultSources(), 3)
	assert.Equal(t, []string{"reuters.com", "bbc.co.uk", "ft.com"}, domains)
}

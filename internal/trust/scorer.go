package trust

import (
	"net/url"
	"strings"

	"github.com/kaia-labs/researcher/internal/model"
)

// Sources matching no registry entry receive this default assessment.
const (
	unverifiedScore = 20
	unverifiedName  = ""
)

// socialDomains is the fixed blocklist of major social platforms. Matches
// (exact or subdomain) are excluded from results entirely, never merely
// down-scored.
var socialDomains = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"linkedin.com",
	"reddit.com",
	"pinterest.com",
	"youtube.com",
	"snapchat.com",
}

// Assessment is the trust verdict for one URL.
type Assessment struct {
	TrustScore int
	Tier       string
	SourceName string
	IsTrusted  bool
}

// Score matches the URL's registrable domain against the registry snapshot.
// First match wins (exact domain or suffix "."+entry); unmatched domains
// get the low default score and tier unverified.
func Score(rawURL string, sources []Source) Assessment {
	domain := RegistrableDomain(rawURL)
	if domain != "" {
		for _, s := range sources {
			if domain == s.Domain || strings.HasSuffix(domain, "."+s.Domain) {
				return Assessment{
					TrustScore: s.TrustScore,
					Tier:       s.Tier,
					SourceName: s.Name,
					IsTrusted:  s.Tier == model.TierTrusted,
				}
			}
		}
	}
	return Assessment{
		TrustScore: unverifiedScore,
		Tier:       model.TierUnverified,
		SourceName: unverifiedName,
	}
}

// IsSocialMedia reports whether the URL's host belongs to the social-media
// blocklist, including subdomains (m.facebook.com matches facebook.com).
func IsSocialMedia(rawURL string) bool {
	domain := RegistrableDomain(rawURL)
	if domain == "" {
		return false
	}
	for _, s := range socialDomains {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

// RegistrableDomain extracts the lowercased host from a URL with any
// leading "www." stripped. Returns "" for unparseable input.
func RegistrableDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		// Tolerate bare domains without a scheme.
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// TopTrustedDomains returns up to n domains from the snapshot with tier
// trusted, in registry order. Used to build site:-steered search queries.
func TopTrustedDomains(sources []Source, n int) []string {
	out := make([]string, 0, n)
	for _, s := range sources {
		if s.Tier != model.TierTrusted {
			continue
		}
		out = append(out, s.Domain)
		if len(out) == n {
			break
		}
	}
	return out
}

package extractor

import (
	"strings"

	"github.com/pacmancrawl/pacman"
)

// socialProfileHosts are registrable domains whose pages are link-light
// personal/company profiles: worth extracting entities from, not worth
// crawling further from (a profile page mostly links to other unrelated
// profiles).
var socialProfileHosts = map[string]bool{
	"linkedin.com":  true,
	"twitter.com":   true,
	"x.com":         true,
	"facebook.com":  true,
	"instagram.com": true,
}

// ClassifyTier assigns the ExtractionTier a URL gets, once, on dequeue.
// Classification is pure and side-effect-free: it looks only at the URL,
// its host, and depth/budget bookkeeping the caller already computed — it
// never performs I/O.
func ClassifyTier(u *pacman.URL, depth, maxDepth int) pacman.ExtractionTier {
	dom, err := u.ToplevelDomainPlusOne()
	if err != nil {
		return pacman.TierSkip
	}
	if socialProfileHosts[dom] {
		return pacman.TierExtract
	}
	if depth > maxDepth {
		return pacman.TierURLOnly
	}
	if looksLikeAsset(u) {
		return pacman.TierSkip
	}
	return pacman.TierFull
}

func looksLikeAsset(u *pacman.URL) bool {
	p := strings.ToLower(u.Path)
	for _, suffix := range []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".css", ".js", ".ico", ".woff", ".woff2", ".mp4"} {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

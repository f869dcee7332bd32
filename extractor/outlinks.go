package extractor

import (
	"strings"

	"github.com/pacmancrawl/pacman"
)

const maxOutlinks = 300

// trackingParams are query parameters stripped from an outlink before
// dedup, since they vary per-referrer without changing the destination.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "fbclid": true, "gclid": true,
	"msclkid": true, "mc_cid": true, "mc_eid": true,
}

// ExtractOutlinks retains only the links in candidates whose registrable
// domain differs from the page's, strips fragments and tracking
// parameters, deduplicates, and caps the result at maxOutlinks.
func ExtractOutlinks(candidates []pacman.HTMLLink) []string {
	seen := map[string]bool{}
	var out []string

	for _, link := range candidates {
		if link.Internal {
			continue
		}
		u, err := pacman.ParseURL(link.Href)
		if err != nil {
			continue
		}
		u.Normalize()
		stripTrackingParams(u)

		key := u.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
		if len(out) >= maxOutlinks {
			break
		}
	}
	return out
}

func stripTrackingParams(u *pacman.URL) {
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	changed := false
	for k := range q {
		lk := strings.ToLower(k)
		if trackingParams[lk] {
			q.Del(k)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
}

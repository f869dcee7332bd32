package pipeline

import (
	"path"
	"strings"

	"github.com/pacmancrawl/pacman"
)

// blockedExtensions are path suffixes that are never enqueued: static
// assets a crawl gains nothing from fetching.
var blockedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".css": true, ".js": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp4": true, ".webm": true, ".mp3": true, ".zip": true, ".gz": true,
	".exe": true, ".dmg": true,
}

// blockedPathSegments are path components that, when present anywhere in a
// URL's path, exclude it from the frontier regardless of extension.
var blockedPathSegments = map[string]bool{
	"wp-content": true, "wp-includes": true, "wp-json": true,
	"cdn-cgi": true, "__webpack_hmr": true,
}

// classifyExtension returns the ExtractionTier a bare extension filter
// assigns to a URL, before any fetch: TierSkip for blocked asset types and
// blocked path segments, TierFull otherwise. Binary document types
// (.pdf, .docx, .xlsx, .pptx) are intentionally TierFull: the Domain
// Pipeline still fetches them, routing the body through
// ExtractBinary instead of the HTML path.
func classifyExtension(u *pacman.URL) pacman.ExtractionTier {
	p := strings.ToLower(u.Path)
	for _, seg := range strings.Split(p, "/") {
		if blockedPathSegments[seg] {
			return pacman.TierSkip
		}
	}
	ext := strings.ToLower(path.Ext(p))
	if blockedExtensions[ext] {
		return pacman.TierSkip
	}
	return pacman.TierFull
}

// isBinaryDocument reports whether ext (as returned by path.Ext, including
// the leading dot) names a format binary.go knows how to extract text
// from.
func isBinaryDocument(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".pptx", ".doc", ".xls", ".ppt",
		".zip", ".tar", ".tar.gz", ".tgz", ".gz":
		return true
	default:
		return false
	}
}

// Frontier tracks the per-domain crawl state the spec's "Frontier policy"
// section defines: dedup by normalized URL, a depth ceiling, and separate
// budgets for FULL fetches versus URL_ONLY/EXTRACT entries.
type Frontier struct {
	registrableDomain string
	allowSubdomains   bool
	maxDepth          int
	maxPages          int
	maxSecondary      int

	seen           map[string]bool
	queue          []pacman.FrontierEntry
	fullCount      int
	secondaryCount int
}

// NewFrontier seeds a Frontier for one domain's crawl. maxSecondary bounds
// URL_ONLY/EXTRACT entries separately from maxPages's FULL-fetch budget.
func NewFrontier(seed *pacman.URL, allowSubdomains bool, maxDepth, maxPages, maxSecondary int) (*Frontier, error) {
	dom, err := seed.ToplevelDomainPlusOne()
	if err != nil {
		return nil, pacman.Wrap(pacman.KindTerminal, pacman.ErrDomainUnreachable, "computing registrable domain for seed: "+err.Error())
	}
	f := &Frontier{
		registrableDomain: dom,
		allowSubdomains:   allowSubdomains,
		maxDepth:          maxDepth,
		maxPages:          maxPages,
		maxSecondary:      maxSecondary,
		seen:              map[string]bool{},
	}
	f.Enqueue(seed, 0, "")
	return f, nil
}

// Enqueue adds u to the frontier at the given depth if it passes dedup, the
// depth ceiling, the extension/path filter, and the internal-domain check.
// It returns true if the URL was added.
func (f *Frontier) Enqueue(u *pacman.URL, depth int, parentURL string) bool {
	if depth > f.maxDepth {
		return false
	}
	if !f.isInternal(u) {
		return false
	}
	if classifyExtension(u) == pacman.TierSkip {
		return false
	}
	key := u.Key()
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	f.queue = append(f.queue, pacman.FrontierEntry{URL: u.String(), Depth: depth, ParentURL: parentURL})
	return true
}

func (f *Frontier) isInternal(u *pacman.URL) bool {
	dom, err := u.ToplevelDomainPlusOne()
	if err != nil {
		return false
	}
	if dom != f.registrableDomain {
		return false
	}
	if f.allowSubdomains {
		return true
	}
	sub, err := u.Subdomain()
	return err == nil && sub == ""
}

// Dequeue pops the next frontier entry, FIFO, or returns ok=false when
// empty.
func (f *Frontier) Dequeue() (pacman.FrontierEntry, bool) {
	if len(f.queue) == 0 {
		return pacman.FrontierEntry{}, false
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	return e, true
}

// CheckBudget reports whether a fetch of the given tier is still within
// budget: tier is "full" for a FULL fetch (consumes the primary budget) or
// anything else for the secondary (URL_ONLY/EXTRACT) budget. maxPages == 0
// means a zero budget: no FULL fetch, including the seed itself, is ever
// allowed. There is no "unlimited" sentinel; a crawl that wants a large
// budget configures a large maxPages.
func (f *Frontier) CheckBudget(full bool) bool {
	if full {
		return f.fullCount < f.maxPages
	}
	return f.secondaryCount < f.maxSecondary
}

// RecordFetch advances the budget counters after a fetch attempt completes.
func (f *Frontier) RecordFetch(full bool) {
	if full {
		f.fullCount++
	} else {
		f.secondaryCount++
	}
}

// Package extractor implements the Extractor (C4, "PACMAN" proper): it
// turns a fetched page's normalized text and HTML links into a
// pacman.Page's entities, tripwire hits, and outlinks, deterministically
// and with bounded cost. It performs no I/O.
package extractor

import (
	"fmt"

	"lukechampine.com/blake3"

	"github.com/pacmancrawl/pacman"
)

// MaxContentScan is the maximum number of characters of normalized text
// that pattern/tripwire/name extraction will look at; text beyond this
// still contributes to Page.Len but is otherwise ignored.
const MaxContentScan = 100_000

// Extractor carries no state of its own: the once-built singletons it uses
// (the tripwire automaton, the gazetteer) are package-level and shared, so
// New is cheap and safe to call per worker.
type Extractor struct{}

// New constructs an Extractor. It is safe to share across goroutines.
func New() *Extractor {
	return &Extractor{}
}

// Extract runs every sub-stage of C4 in the fixed order spec.md §4.4
// prescribes (tripwire scan, pattern extraction, name extraction, outlink
// extraction) over one page's already-tier-classified content, and
// returns the Page with those fields populated. tier classification
// itself happens earlier, in the Domain Pipeline, via ClassifyTier.
//
// A panic inside any single sub-stage is recovered and converted into an
// empty result for that sub-stage only: one broken pattern or gazetteer
// lookup must not lose the rest of the record.
func (e *Extractor) Extract(page *pacman.Page, links []pacman.HTMLLink) {
	scanText := page.Text
	if len(scanText) > MaxContentScan {
		scanText = scanText[:MaxContentScan]
	}

	page.Tripwires = safeCall(func() []pacman.TripwireHit { return scanTripwires(scanText) })

	entities := safeCall(func() map[pacman.EntityKind][]string { return extractPatterns(scanText) })
	if entities == nil {
		entities = map[pacman.EntityKind][]string{}
	}
	if persons := safeCall(func() []string { return extractPersons(scanText) }); len(persons) > 0 {
		entities[pacman.EntityPerson] = persons
	}
	if companies := safeCall(func() []string { return extractCompanies(scanText) }); len(companies) > 0 {
		entities[pacman.EntityCompany] = companies
	}
	page.Entities = entities

	page.Outlinks = safeCall(func() []string { return ExtractOutlinks(links) })

	internal := 0
	for _, l := range links {
		if l.Internal {
			internal++
		}
	}
	page.InternalLinks = internal

	page.ContentHash = contentHash(page.Text)
}

// contentHash fingerprints the page's extracted text with BLAKE3, used by
// downstream consumers to detect duplicate or near-duplicate pages across
// fetch tiers (a live fetch and an archived replay of the same page
// should hash identically).
func contentHash(text string) string {
	sum := blake3.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)
}

// safeCall recovers a panic from fn, returning the zero value of T
// instead. Each extraction sub-stage runs through this so a single bad
// regex or malformed candidate cannot take down the rest of the record.
func safeCall[T any](fn func() T) (result T) {
	defer func() {
		if recover() != nil {
			var zero T
			result = zero
		}
	}()
	return fn()
}

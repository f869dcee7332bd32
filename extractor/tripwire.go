package extractor

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/pacmancrawl/pacman"
)

//go:embed data/tripwire_terms.txt
var tripwireTermsData string

// tripwireBank is the once-initialized singleton the teacher's design
// notes call out ("once-initialized singletons returned from a
// new_extractor() constructor"): the Aho-Corasick automaton is expensive
// to build and immutable once built, so every *Extractor shares one.
type tripwireBank struct {
	matcher  *ahocorasick.Matcher
	terms    []string // parallel to the dictionary the matcher was built from, lowercased
	category []pacman.TripwireCategory
}

var (
	tripwireOnce sync.Once
	tripwire     *tripwireBank
)

func getTripwireBank() *tripwireBank {
	tripwireOnce.Do(func() {
		tripwire = buildTripwireBank(tripwireTermsData)
	})
	return tripwire
}

func buildTripwireBank(data string) *tripwireBank {
	var terms []string
	var cats []pacman.TripwireCategory

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		cats = append(cats, pacman.TripwireCategory(strings.TrimSpace(parts[0])))
		terms = append(terms, strings.ToLower(strings.TrimSpace(parts[1])))
	}

	return &tripwireBank{
		matcher:  ahocorasick.NewStringMatcher(terms),
		terms:    terms,
		category: cats,
	}
}

// scanTripwires reports every curated term present in text. The
// Aho-Corasick pass determines, in one linear scan, *which* terms occur;
// a second strings.Index pass (run only over the handful of confirmed
// terms, not the whole dictionary) recovers their byte-offset spans,
// since the matcher itself reports membership, not position.
func scanTripwires(text string) []pacman.TripwireHit {
	bank := getTripwireBank()
	lower := strings.ToLower(text)

	matched := bank.matcher.Match([]byte(lower))
	if len(matched) == 0 {
		return nil
	}

	var hits []pacman.TripwireHit
	for _, idx := range matched {
		term := bank.terms[idx]
		cat := bank.category[idx]

		start := 0
		for {
			pos := strings.Index(lower[start:], term)
			if pos < 0 {
				break
			}
			abs := start + pos
			hits = append(hits, pacman.TripwireHit{
				Category: cat,
				Term:     term,
				Span:     [2]int{abs, abs + len(term)},
			})
			start = abs + len(term)
		}
	}
	return hits
}

package extractor

import (
	_ "embed"
	"regexp"
	"strings"
	"sync"
)

//go:embed data/gazetteer_first_names.txt
var firstNamesData string

//go:embed data/gazetteer_last_names.txt
var lastNamesData string

//go:embed data/company_designators.txt
var designatorsData string

const (
	personConfidenceThreshold = 0.6
	maxPersons                = 30
	maxCompanies              = 20
)

// contextualCues are tokens that, appearing immediately before a person
// candidate, raise confidence that the candidate names an actual person
// rather than two capitalized common words that happen to sit together.
var contextualCues = map[string]bool{
	"mr.": true, "mr": true, "mrs.": true, "mrs": true, "ms.": true, "ms": true,
	"dr.": true, "dr": true, "ceo": true, "cfo": true, "cto": true,
	"president": true, "chairman": true, "chairwoman": true, "director": true,
	"founder": true, "minister": true, "senator": true, "judge": true,
}

type gazetteer struct {
	firstNames  map[string]bool
	lastNames   map[string]bool
	designators map[string]bool
}

var (
	gazetteerOnce sync.Once
	gaz           *gazetteer
)

func getGazetteer() *gazetteer {
	gazetteerOnce.Do(func() {
		gaz = &gazetteer{
			firstNames:  loadWordSet(firstNamesData),
			lastNames:   loadWordSet(lastNamesData),
			designators: loadWordSet(designatorsData),
		}
	})
	return gaz
}

func loadWordSet(data string) map[string]bool {
	set := map[string]bool{}
	for _, line := range strings.Split(data, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = true
	}
	return set
}

// capitalizedWordRE matches a run of 2 or 3 title-cased words, the
// bigram/trigram candidate shape spec.md §4.4.4 describes.
var capitalizedWordRE = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2})\b`)

// precedingWordRE captures the whitespace-delimited token immediately
// before a match (lowercased by the caller), used to check for a
// contextual cue like "CEO" or "Mr.".
var precedingWordRE = regexp.MustCompile(`(\S+)\s*$`)

type personCandidate struct {
	name       string
	confidence float64
}

// extractPersons proposes title-cased bigram/trigram candidates and scores
// each by gazetteer hit rate plus a contextual-cue bonus, keeping only
// candidates at or above personConfidenceThreshold and at most maxPersons.
func extractPersons(text string) []string {
	g := getGazetteer()
	seen := map[string]bool{}
	var candidates []personCandidate

	for _, loc := range capitalizedWordRE.FindAllStringIndex(text, -1) {
		candidate := text[loc[0]:loc[1]]
		key := strings.ToLower(candidate)
		if seen[key] {
			continue
		}

		words := strings.Fields(candidate)
		hits := 0
		for i, w := range words {
			lw := strings.ToLower(w)
			if i == 0 && g.firstNames[lw] {
				hits++
			} else if g.lastNames[lw] {
				hits++
			}
		}
		confidence := float64(hits) / float64(len(words))

		prefix := text[:loc[0]]
		if m := precedingWordRE.FindStringSubmatch(strings.TrimRight(prefix, " ")); m != nil {
			if contextualCues[strings.ToLower(strings.TrimSuffix(m[1], ","))] {
				confidence += 0.25
				if confidence > 1 {
					confidence = 1
				}
			}
		}

		if confidence < personConfidenceThreshold {
			continue
		}
		seen[key] = true
		candidates = append(candidates, personCandidate{name: candidate, confidence: confidence})
	}

	if len(candidates) > maxPersons {
		candidates = candidates[:maxPersons]
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

// companyPhraseRE matches a run of capitalized words plus the word that
// follows them; extractCompanies then cuts the phrase after its last
// legal-form designator token, e.g. "Acme Robotics Ltd".
var companyPhraseRE = regexp.MustCompile(`\b((?:[A-Z][\w&.\-]*\s+){1,6})([A-Za-z.]+)\b`)

// extractCompanies proposes phrases ending in a recognized legal-form
// designator, capped at maxCompanies.
func extractCompanies(text string) []string {
	g := getGazetteer()
	seen := map[string]bool{}
	var out []string

	for _, m := range companyPhraseRE.FindAllStringSubmatch(text, -1) {
		words := append(strings.Fields(m[1]), m[2])
		end := -1
		for i := len(words) - 1; i >= 1; i-- {
			if g.designators[strings.ToLower(words[i])] {
				end = i
				break
			}
		}
		if end < 0 {
			continue
		}
		full := strings.Join(words[:end+1], " ")
		key := strings.ToLower(full)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, full)
		if len(out) >= maxCompanies {
			break
		}
	}
	return out
}

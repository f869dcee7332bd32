// Package pipeline implements the Domain Pipeline (C3): the per-seed state
// machine that dequeues a frontier entry, classifies its extraction tier,
// checks budget, fetches through the A-B-C-D tier fallback chain, parses and
// extracts, and feeds discovered links back into the frontier.
package pipeline

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pacmancrawl/pacman"
	"github.com/pacmancrawl/pacman/extractor"
	"github.com/pacmancrawl/pacman/scheduler"
)

// defaultSeedTimeout is the soft wall-clock budget for one seed's entire
// Domain Pipeline run. It is "soft" in that a timeout does not discard
// pages already fetched: RunPipeline returns PartialTimeout but still
// reports PagesFetched and forwards every Page extracted so far to Sink.
const defaultSeedTimeout = 120 * time.Second

// Sink is the narrow interface the Domain Pipeline needs from package sink:
// one page at a time, in whatever order pages complete.
type Sink interface {
	Write(ctx context.Context, page *pacman.Page) error
}

// Checkpoint is the narrow interface the Domain Pipeline needs from package
// checkpoint: has this (domain, url) already been fetched in a prior,
// interrupted run of this same seed.
type Checkpoint interface {
	Seen(ctx context.Context, domain, url string) (bool, error)
	MarkSeen(ctx context.Context, domain, url string) error
}

// Runner implements scheduler.PipelineRunner: it is the one piece of the
// crawler that knows about every tier, the frontier, and the extractor, and
// wires them together for each seed it's handed.
type Runner struct {
	// Tiers is the ordered fallback chain: normally [TierA, TierB, TierC,
	// TierD], but tests may substitute fakes implementing FetchTier.
	Tiers []FetchTier

	Extractor  *extractor.Extractor
	Sink       Sink
	Checkpoint Checkpoint

	UserAgent       string
	MaxDepth        int
	MaxPages        int
	MaxSecondary    int
	AllowSubdomains bool
	MaxBodyBytes    int64
	SeedTimeout     time.Duration

	// RecordFailures, when true, emits a fetch-failure Page (Source ==
	// sourceFailed) through Sink for a URL whose fetch fails, whether every
	// tier is exhausted or a tier reports a terminal outcome, per
	// spec.md §4.3's "optionally a fetch-failure record ... default on".
	RecordFailures bool
}

var _ scheduler.PipelineRunner = (*Runner)(nil)

// RunPipeline drives one seed's entire domain crawl: dequeue, classify,
// budget-check, fetch (with tier fallback), parse and extract, frontier
// update, repeat until the frontier drains, the seed timeout elapses, or a
// terminal error stops the crawl outright.
func (r *Runner) RunPipeline(ctx context.Context, seed pacman.Seed) scheduler.PipelineResult {
	result := scheduler.PipelineResult{Seed: seed}

	seedURL, err := pacman.ParseAndNormalizeURL(seed.URL)
	if err != nil {
		result.Err = pacman.Wrap(pacman.KindTerminal, pacman.ErrDomainUnreachable, "parsing seed url: "+err.Error())
		return result
	}

	frontier, err := NewFrontier(seedURL, r.AllowSubdomains, r.MaxDepth, r.MaxPages, r.MaxSecondary)
	if err != nil {
		result.Err = err
		return result
	}

	timeout := r.SeedTimeout
	if timeout <= 0 {
		timeout = defaultSeedTimeout
	}
	seedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	domain, _ := seedURL.ToplevelDomainPlusOne()

	for {
		entry, ok := frontier.Dequeue()
		if !ok {
			break
		}

		select {
		case <-seedCtx.Done():
			result.Err = pacman.Wrap(pacman.KindTransient, pacman.ErrPartialTimeout, "seed timed out with frontier entries remaining")
			return result
		default:
		}

		u, err := pacman.ParseURL(entry.URL)
		if err != nil {
			continue
		}

		tier := extractor.ClassifyTier(u, entry.Depth, r.MaxDepth)
		if ext := classifyExtension(u); ext == pacman.TierSkip {
			tier = pacman.TierSkip
		}
		if tier == pacman.TierSkip {
			continue
		}
		if tier == pacman.TierURLOnly {
			continue // recorded by virtue of having been enqueued; no fetch.
		}

		full := tier == pacman.TierFull
		if !frontier.CheckBudget(full) {
			continue
		}

		if r.Checkpoint != nil {
			seen, err := r.Checkpoint.Seen(seedCtx, domain, u.Key())
			if err == nil && seen {
				continue
			}
		}

		page, links, fetchErr := r.fetchWithFallback(seedCtx, u, entry.Depth)
		frontier.RecordFetch(full)

		if fetchErr != nil {
			if r.Checkpoint != nil {
				_ = r.Checkpoint.MarkSeen(seedCtx, domain, u.Key())
			}
			if r.RecordFailures {
				failed := &pacman.Page{
					URL:       u.String(),
					Depth:     entry.Depth,
					CrawledAt: time.Now(),
				}
				failed.MarkFetchFailed()
				if err := r.Sink.Write(seedCtx, failed); err != nil {
					result.Err = pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
					return result
				}
			}
			continue
		}

		r.Extractor.Extract(page, links)
		if tier == pacman.TierExtract {
			links = nil // EXTRACT tier: entities stay, but outlinks are not followed.
		}

		if err := r.Sink.Write(seedCtx, page); err != nil {
			result.Err = pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
			return result
		}
		result.PagesFetched++

		if r.Checkpoint != nil {
			_ = r.Checkpoint.MarkSeen(seedCtx, domain, u.Key())
		}

		if tier == pacman.TierFull {
			for _, l := range links {
				lu, err := pacman.ParseURL(l.Href)
				if err != nil {
					continue
				}
				frontier.Enqueue(lu, entry.Depth+1, u.String())
			}
		}
	}

	return result
}

// fetchWithFallback tries Tier A, then B, then C, then D, stopping at the
// first tier to report outcomeSuccess or a terminal (non-next-tier) outcome.
// A successful HTML fetch is parsed for links and body text; a successful
// binary fetch is routed through ExtractBinary instead.
func (r *Runner) fetchWithFallback(ctx context.Context, u *pacman.URL, depth int) (*pacman.Page, []pacman.HTMLLink, error) {
	var lastErr error
	for _, t := range r.Tiers {
		if t == nil {
			continue
		}
		res := t.Fetch(ctx, u, depth, r.MaxBodyBytes, r.UserAgent)
		switch res.Outcome {
		case outcomeSuccess:
			return r.buildPage(u, res)
		case outcomeNextTier:
			lastErr = res.Err
			continue
		default:
			return nil, nil, res.Err
		}
	}
	if lastErr == nil {
		lastErr = pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, u.String())
	}
	return nil, nil, lastErr
}

// buildPage finishes what the fetch tier started: it decides whether the
// body is HTML (parse links, normalize text) or a binary document (route
// through ExtractBinary), and populates the remaining Page fields either
// way.
func (r *Runner) buildPage(u *pacman.URL, res TierResult) (*pacman.Page, []pacman.HTMLLink, error) {
	page := res.Page
	ext := strings.ToLower(path.Ext(u.Path))

	if isBinaryDocument(ext) || looksLikeBinaryContentType(page.ContentType) {
		text, meta, partial, err := ExtractBinary(res.Body, page.ContentType, ext)
		if err != nil {
			return nil, nil, pacman.Wrap(pacman.KindTerminal, err, "extracting binary document "+u.String())
		}
		page.Text = text
		page.BinaryMetadata = meta
		page.Partial = page.Partial || partial
		return page, nil, nil
	}

	parsed, err := parseHTML(res.Body, u)
	if err != nil {
		return nil, nil, pacman.Wrap(pacman.KindTerminal, err, "parsing html "+u.String())
	}
	if parsed.MetaNoIndex {
		return nil, nil, pacman.Wrap(pacman.KindTerminal, pacman.ErrRobotsDisallowed, "meta noindex "+u.String())
	}

	text, err := normalizeText(res.Body, u)
	if err != nil {
		text = "" // readability failing is not fatal: the page is still emitted, with empty text and so no text-derived entities.
	}
	page.Text = text

	return page, parsed.Links, nil
}

func looksLikeBinaryContentType(contentType string) bool {
	for _, marker := range []string{"pdf", "spreadsheetml", "wordprocessingml", "presentationml", "zip", "x-tar", "gzip"} {
		if strings.Contains(contentType, marker) {
			return true
		}
	}
	return false
}

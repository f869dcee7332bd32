package pipeline

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/pacmancrawl/pacman"
)

// fetchOutcome classifies what a fetch attempt at one tier should do next:
// retry the same tier, fall through to the next tier, or stop (terminal).
type fetchOutcome int

const (
	outcomeRetrySameTier fetchOutcome = iota
	outcomeNextTier
	outcomeTerminal
	outcomeSuccess
)

// classifyStatus maps an HTTP status code to a fetchOutcome, per the fixed
// table spec.md's open question resolves: 403 falls through to the next
// tier rather than retrying, 404/410 are terminal for the *page itself*
// but still let the pipeline try an archive tier (archived copies may
// exist for since-removed pages), and 5xx/429 are retried in-tier with
// backoff up to the tier's retry limit.
func classifyStatus(status int) fetchOutcome {
	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess
	case status == 403:
		return outcomeNextTier
	case status == 404 || status == 410:
		return outcomeNextTier
	case status == 429:
		return outcomeRetrySameTier
	case status >= 500 && status < 600:
		return outcomeRetrySameTier
	case status >= 400 && status < 500:
		return outcomeTerminal
	default:
		return outcomeTerminal
	}
}

// TierResult is what a FetchTier returns for one URL.
type TierResult struct {
	Page       *pacman.Page
	Body       []byte
	StatusCode int
	Outcome    fetchOutcome
	Err        error
}

// FetchTier is the "monkey-patchable component... explicit interface
// abstraction" spec.md's design notes ask for: each of the four fetch
// tiers implements it independently, so the Domain Pipeline's fallback
// chain never needs to know how a tier actually gets its bytes.
type FetchTier interface {
	// Fetch attempts to retrieve u. depth and maxBodyBytes bound what the
	// caller will accept; ua is the User-Agent to present.
	Fetch(ctx context.Context, u *pacman.URL, depth int, maxBodyBytes int64, ua string) TierResult
}

// retryBackoff implements spec.md §4.3's retry policy: base 0.5s, factor
// 2, jitter 25%, up to maxRetries attempts at the same tier.
func retryBackoff(attempt int) time.Duration {
	base := 500 * time.Millisecond
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	jitter := 1 + (rand.Float64()*0.5 - 0.25) // +/-25%
	return time.Duration(float64(d) * jitter)
}

const maxRetriesPerTier = 2

// httpTier is the shared implementation behind Tier A (live HTTP) and the
// archive-replay fetches of Tiers B and C: all three are a GET against
// some URL through the worker's shared *http.Client, differing only in
// what URL they target and whether robots.txt applies.
type httpTier struct {
	client *http.Client
}

func (t *httpTier) get(ctx context.Context, rawURL, ua string, maxBodyBytes int64) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", ua)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return resp, nil, err
	}
	if int64(len(body)) > maxBodyBytes {
		return resp, body[:maxBodyBytes], pacman.ErrContentTooLarge
	}
	return resp, body, nil
}

// TierA is the direct-HTTP fetch tier: net/http through the worker's
// shared client (DNS-cached, connection-pooled), gated by robots.txt.
type TierA struct {
	httpTier
	Robots *RobotsChecker
}

// NewTierA builds a Tier A fetcher using client for its requests.
func NewTierA(client *http.Client, robots *RobotsChecker) *TierA {
	return &TierA{httpTier: httpTier{client: client}, Robots: robots}
}

func (t *TierA) Fetch(ctx context.Context, u *pacman.URL, depth int, maxBodyBytes int64, ua string) TierResult {
	if t.Robots != nil && !t.Robots.Allowed(ctx, u, ua) {
		return TierResult{Outcome: outcomeTerminal, Err: pacman.Wrap(pacman.KindTerminal, pacman.ErrRobotsDisallowed, u.String())}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetriesPerTier; attempt++ {
		resp, body, err := t.get(ctx, u.String(), ua, maxBodyBytes)
		if err != nil && resp == nil {
			lastErr = err
			select {
			case <-time.After(retryBackoff(attempt)):
			case <-ctx.Done():
				return TierResult{Outcome: outcomeTerminal, Err: ctx.Err()}
			}
			continue
		}

		outcome := classifyStatus(resp.StatusCode)
		switch outcome {
		case outcomeSuccess:
			return TierResult{
				StatusCode: resp.StatusCode,
				Outcome:    outcomeSuccess,
				Body:       body,
				Page: &pacman.Page{
					URL:         u.String(),
					Depth:       depth,
					Source:      pacman.SourceLive,
					HTTPStatus:  resp.StatusCode,
					ContentType: resp.Header.Get("Content-Type"),
					Len:         len(body),
					Partial:     err == pacman.ErrContentTooLarge,
					CrawledAt:   time.Now(),
				},
			}
		case outcomeRetrySameTier:
			lastErr = httpStatusError(resp.StatusCode)
			select {
			case <-time.After(retryBackoff(attempt)):
			case <-ctx.Done():
				return TierResult{Outcome: outcomeTerminal, Err: ctx.Err()}
			}
			continue
		default:
			return TierResult{StatusCode: resp.StatusCode, Outcome: outcome, Err: httpStatusError(resp.StatusCode)}
		}
	}
	return TierResult{Outcome: outcomeNextTier, Err: pacman.Wrap(pacman.KindTransient, pacman.ErrDomainUnreachable, errString(lastErr))}
}

func httpStatusError(status int) error {
	return pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, "http status "+http.StatusText(status))
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

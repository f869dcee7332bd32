package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/pacmancrawl/pacman"
)

// TierD is the headless-render fetch tier: a single shared browser per
// worker, with a fresh page opened and always closed per pipeline
// invocation, never held across pipeline boundaries. It is the most
// expensive tier and is tried only once A-C are exhausted.
type TierD struct {
	Timeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

// NewTierD builds a Tier D fetcher. The browser process itself is not
// launched until the first Fetch call.
func NewTierD(timeout time.Duration) *TierD {
	return &TierD{Timeout: timeout}
}

func (t *TierD) ensureBrowser() (*rod.Browser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browser != nil {
		return t.browser, nil
	}
	b := rod.New()
	if err := b.Connect(); err != nil {
		return nil, err
	}
	t.browser = b
	return b, nil
}

// Close shuts down the shared browser, if one was launched.
func (t *TierD) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browser == nil {
		return nil
	}
	err := t.browser.Close()
	t.browser = nil
	return err
}

func (t *TierD) Fetch(ctx context.Context, u *pacman.URL, depth int, maxBodyBytes int64, ua string) TierResult {
	browser, err := t.ensureBrowser()
	if err != nil {
		return TierResult{Outcome: outcomeTerminal, Err: pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, "launching headless browser: "+err.Error())}
	}

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	page, err := browser.Context(ctx).Page(rod.PageInfo{})
	if err != nil {
		return TierResult{Outcome: outcomeTerminal, Err: pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, "opening page: "+err.Error())}
	}
	defer page.Close()

	if err := page.Navigate(u.String()); err != nil {
		return TierResult{Outcome: outcomeTerminal, Err: pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, "navigating: "+err.Error())}
	}
	if err := page.WaitLoad(); err != nil {
		return TierResult{Outcome: outcomeTerminal, Err: pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, "waiting for load: "+err.Error())}
	}

	html, err := page.HTML()
	if err != nil {
		return TierResult{Outcome: outcomeTerminal, Err: pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, "reading rendered html: "+err.Error())}
	}
	body := []byte(html)
	partial := false
	if int64(len(body)) > maxBodyBytes {
		body = body[:maxBodyBytes]
		partial = true
	}

	return TierResult{
		StatusCode: 200,
		Outcome:    outcomeSuccess,
		Body:       body,
		Page: &pacman.Page{
			URL:         u.String(),
			Depth:       depth,
			Source:      pacman.SourceRender,
			HTTPStatus:  200,
			ContentType: "text/html",
			Len:         len(body),
			Partial:     partial,
			CrawledAt:   time.Now(),
		},
	}
}

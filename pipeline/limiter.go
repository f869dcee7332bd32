package pipeline

import (
	"context"

	"github.com/pacmancrawl/pacman"
)

// limitedTier wraps a FetchTier so at most n of its Fetch calls run at
// once, independent of the worker cohort size the scheduler enforces.
// Tiers B-D each hit a shared external resource (the Wayback CDX API, a
// single headless browser) that Tier A's per-host connection pool doesn't
// protect, so each gets its own ceiling from Config.Tiers.
type limitedTier struct {
	inner FetchTier
	slots chan struct{}
}

// NewLimitedTier caps inner to at most n concurrent Fetch calls. n < 1 is
// treated as 1.
func NewLimitedTier(inner FetchTier, n int) FetchTier {
	if n < 1 {
		n = 1
	}
	return &limitedTier{inner: inner, slots: make(chan struct{}, n)}
}

func (l *limitedTier) Fetch(ctx context.Context, u *pacman.URL, depth int, maxBodyBytes int64, ua string) TierResult {
	l.slots <- struct{}{}
	defer func() { <-l.slots }()
	return l.inner.Fetch(ctx, u, depth, maxBodyBytes, ua)
}

package pipeline

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/pacmancrawl/pacman"
)

// RobotsChecker fetches and caches each host's robots.txt for the lifetime
// of the checker. package cmd builds one checker per worker and shares it
// through Tier A across every Domain Pipeline the worker runs, so the cache
// holds one entry per host contacted during the run.
type RobotsChecker struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.Group
}

// NewRobotsChecker builds a checker that issues its own robots.txt
// requests through client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{client: client, cache: map[string]*robotstxt.Group{}}
}

// Allowed reports whether ua may fetch u, per the host's robots.txt. A
// missing or malformed robots.txt is treated as "allow all", matching
// spec.md §4.3.
func (r *RobotsChecker) Allowed(ctx context.Context, u *pacman.URL, ua string) bool {
	group := r.groupFor(ctx, u.Host, ua)
	return group.Test(u.RequestURI())
}

func (r *RobotsChecker) groupFor(ctx context.Context, host, ua string) *robotstxt.Group {
	r.mu.Lock()
	if g, ok := r.cache[host]; ok {
		r.mu.Unlock()
		return g
	}
	r.mu.Unlock()

	g := r.fetch(ctx, host, ua)

	r.mu.Lock()
	r.cache[host] = g
	r.mu.Unlock()
	return g
}

func (r *RobotsChecker) fetch(ctx context.Context, host, ua string) *robotstxt.Group {
	allowAll := allowAllGroup()

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+host+"/robots.txt", nil)
	if err != nil {
		return allowAll
	}
	req.Header.Set("User-Agent", ua)

	resp, err := r.client.Do(req)
	if err != nil {
		return allowAll
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return allowAll
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return allowAll
	}
	grp := data.FindGroup(ua)
	if grp == nil {
		return allowAll
	}
	return grp
}

func allowAllGroup() *robotstxt.Group {
	data, _ := robotstxt.FromBytes([]byte("User-agent: *\n"))
	return data.FindGroup("*")
}

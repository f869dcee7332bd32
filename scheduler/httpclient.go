package scheduler

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pacmancrawl/pacman"
	"github.com/pacmancrawl/pacman/dnscache"
)

// dialContextFor returns the dial function NewSharedHTTPClient's transport
// uses: the plain dialer, or, when cfg.DNSResolver names an upstream
// nameserver, one that resolves through it via dnscache.Resolver before
// dialing the resolved address.
func dialContextFor(cfg *pacman.Config, dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cfg.DNSResolver == "" {
		return dialer.DialContext
	}
	resolver := &dnscache.Resolver{Server: cfg.DNSResolver}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		addrs, err := resolver.LookupHost(host)
		if err != nil || len(addrs) == 0 {
			return nil, pacman.Wrap(pacman.KindTransient, pacman.ErrDomainUnreachable, "resolving "+host+" via "+cfg.DNSResolver)
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0], port))
	}
}

// NewSharedHTTPClient builds the single *http.Client a worker hands to
// every Domain Pipeline it runs. Connection acquisition across pipelines is
// implicit via the transport's connection pool, not a manual semaphore:
// MaxConnsPerHost caps per-host concurrency, approximating CONCURRENT_A.
func NewSharedHTTPClient(cfg *pacman.Config) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	dial, err := dnscache.DialContext(dialContextFor(cfg, dialer), cfg.MaxDNSCacheEntries)
	if err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "constructing dns cache")
	}

	transport := &http.Transport{
		DialContext:           dial,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		MaxConnsPerHost:       cfg.Tiers.ConcurrentA,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.HTTPProxy != "" || cfg.HTTPSProxy != "" {
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && cfg.HTTPSProxy != "" {
				return url.Parse(cfg.HTTPSProxy)
			}
			if cfg.HTTPProxy != "" {
				return url.Parse(cfg.HTTPProxy)
			}
			return nil, nil
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.HTTPTimeoutDuration(),
	}, nil
}

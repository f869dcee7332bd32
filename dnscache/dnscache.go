/*
Package dnscache implements a Dial function that will cache DNS resolutions,
used by the Domain Pipeline's tier A HTTP transport so repeated fetches
against one domain don't re-resolve on every request.
*/
package dnscache

import (
	"context"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/miekg/dns"
)

//TODO:
//  - use a time-based cache instead of entry-capped, since we know we'll
//    need most of the recently-accessed domains and few of the aging entries
//  - consider not caching failures or doing any blacklisting here; the more
//    likely usecase will be to retry a few times (in which case we don't want
//    caching) and then not bother crawling this host at all

// Dial wraps the given dial function with Caching of DNS resolutions. When a
// hostname is found in the cache it will call the provided dial with the IP
// address instead of the hostname, so no DNS lookup need be performed. It will
// also cache DNS failures.
//
// If the given wrappedDial is nil, net.Dial will be automatically used.
func Dial(wrappedDial func(network, addr string) (net.Conn, error), maxEntries int) (func(network, addr string) (net.Conn, error), error) {
	if wrappedDial == nil {
		wrappedDial = net.Dial
	}
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	c := &dnsCache{
		wrappedDial: wrappedDial,
		cache:       cache,
	}
	return c.cachingDial, nil
}

// DialContext is the context-aware equivalent of Dial, for wiring into an
// http.Transport's DialContext field. The ctx passed to the returned
// function is not forwarded: the underlying dial always runs with
// context.Background(), and DNS cache lookups are not context-sensitive.
func DialContext(wrappedDial func(ctx context.Context, network, addr string) (net.Conn, error), maxEntries int) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if wrappedDial == nil {
		var d net.Dialer
		wrappedDial = d.DialContext
	}
	plain, err := Dial(func(network, addr string) (net.Conn, error) {
		return wrappedDial(context.Background(), network, addr)
	}, maxEntries)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return plain(network, addr)
	}, nil
}

// Resolver performs the A lookup a caching Dial delegates to when a
// custom upstream nameserver (rather than the OS resolver) is configured.
type Resolver struct {
	Server string // e.g. "8.8.8.8:53"
}

// LookupHost resolves host to its IPv4 addresses against r.Server with a
// single A query that has the recursion-desired flag set, bypassing the OS
// resolver (and its own caching layer, which this package's LRU is meant
// to replace). AAAA records are not queried.
func (r *Resolver) LookupHost(host string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	c := new(dns.Client)
	resp, _, err := c.Exchange(m, r.Server)
	if err != nil {
		return nil, err
	}
	var addrs []string
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	return addrs, nil
}

// dnsCache wraps a net.Dial-type function with it's own version that will
// cache DNS entries in an LRU cache.
type dnsCache struct {
	wrappedDial func(network, address string) (net.Conn, error)
	cache       *lru.Cache
	mu          sync.RWMutex
}

type hostrecord struct {
	ipaddr      string
	blacklisted bool
	err         error
	lastQuery   time.Time
}

func (c *dnsCache) cachingDial(network, addr string) (net.Conn, error) {
	mapEntryName := network + addr
	c.mu.RLock()
	if entry, ok := c.cache.Get(mapEntryName); ok {
		record := entry.(hostrecord)
		lastQueryTime := record.lastQuery
		if time.Since(lastQueryTime) > 5*time.Minute {
			c.mu.RUnlock()
			c.cacheHost(network, addr)
			c.mu.RLock()
			entry, _ = c.cache.Get(mapEntryName)
			record = entry.(hostrecord)
		}
		resolvedAddr := record.ipaddr
		if record.blacklisted {
			returnErr := record.err
			c.mu.RUnlock()
			return nil, returnErr
		}

		c.mu.RUnlock()
		return c.wrappedDial(network, resolvedAddr)

	}
	c.mu.RUnlock()
	return c.cacheHost(network, addr)
}

// cacheHost caches the DNS lookup for this host, overwriting any entry
// that may have previously existed.
func (c *dnsCache) cacheHost(network, addr string) (net.Conn, error) {
	mapEntryName := network + addr
	newConn, err := c.wrappedDial(network, addr)
	queryTime := time.Now()
	c.mu.Lock()
	if err != nil {
		c.cache.Add(mapEntryName, hostrecord{
			ipaddr:      "",
			blacklisted: true,
			err:         err,
			lastQuery:   queryTime,
		})
		c.mu.Unlock()
		return nil, err
	}
	remoteipaddr := newConn.RemoteAddr().String()
	c.cache.Add(mapEntryName, hostrecord{
		ipaddr:      remoteipaddr,
		blacklisted: false,
		err:         nil,
		lastQuery:   queryTime,
	})
	c.mu.Unlock()
	return newConn, nil

}

// get returns the hostrecord associated with the passed network:address, if it exists.
// The second return value represents whether the record exists.
func (c *dnsCache) get(network, addr string) (hostrecord, bool) {
	key := network + addr
	c.mu.RLock()
	valinterface, ok := c.cache.Get(key)
	if valinterface == nil {
		c.mu.RUnlock()
		return hostrecord{}, ok
	}
	val := valinterface.(hostrecord)
	c.mu.RUnlock()
	return val, ok
}

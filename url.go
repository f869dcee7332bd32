package pacman

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
	"golang.org/x/net/publicsuffix"
)

// URL wraps *url.URL with the registrable-domain logic the Domain Pipeline
// needs: normalization for frontier deduplication and
// TLD+1 computation for the internal/outlink split.
type URL struct {
	*url.URL
}

// ParseURL is the pacman equivalent of url.Parse; every URL that enters the
// frontier should be passed through this so downstream comparisons are
// consistent.
func ParseURL(ref string) (*URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return &URL{URL: u}, nil
}

// ParseAndNormalizeURL parses ref and normalizes it in one step.
func ParseAndNormalizeURL(ref string) (*URL, error) {
	u, err := ParseURL(ref)
	if err != nil {
		return nil, err
	}
	u.Normalize()
	return u, nil
}

// Normalize rewrites u in place per the safe purell flags plus fragment
// removal and duplicate-slash collapsing, so that two links differing only
// by fragment, host case, or an explicit default port produce identical
// dedup keys. A trailing slash is kept, so "/a" and "/a/" stay distinct.
func (u *URL) Normalize() {
	purell.NormalizeURL(u.URL, purell.FlagsSafe|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes)
}

// Key returns the string used for frontier dedup: the normalized absolute
// URL. Two FrontierEntry values with the same Key are the same page.
func (u *URL) Key() string {
	c := *u.URL
	clone := &URL{URL: &c}
	clone.Normalize()
	return clone.String()
}

// Clone returns a deep copy of u.
func (u *URL) Clone() *URL {
	c := *u.URL
	return &URL{URL: &c}
}

// ToplevelDomainPlusOne returns the registrable domain of u's host, e.g.
// "bbc.co.uk" for "www.bbc.co.uk". This is the unit C3 groups work by.
func (u *URL) ToplevelDomainPlusOne() (string, error) {
	host := u.Hostname()
	return publicsuffix.EffectiveTLDPlusOne(host)
}

// Subdomain returns the portion of the host before ToplevelDomainPlusOne,
// without a trailing dot, or "" if there is none.
func (u *URL) Subdomain() (string, error) {
	dom, err := u.ToplevelDomainPlusOne()
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if len(host) == len(dom) {
		return "", nil
	}
	return strings.TrimSuffix(host, "."+dom), nil
}

// SameRegistrableDomain reports whether u and other share a
// ToplevelDomainPlusOne. It ignores Config.AllowSubdomains; that setting is
// applied by the Domain Pipeline's frontier when it decides what to enqueue.
func (u *URL) SameRegistrableDomain(other *URL) bool {
	a, errA := u.ToplevelDomainPlusOne()
	b, errB := other.ToplevelDomainPlusOne()
	if errA != nil || errB != nil {
		return strings.EqualFold(u.Hostname(), other.Hostname())
	}
	return strings.EqualFold(a, b)
}

// MakeAbsolute resolves u against base if u is not already absolute.
func (u *URL) MakeAbsolute(base *URL) {
	if u.IsAbs() {
		return
	}
	u.URL = base.URL.ResolveReference(u.URL)
}

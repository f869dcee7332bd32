// Package checkpoint implements the optional resumability store: whether a
// given URL within a given domain's crawl has already been fetched in a
// prior, interrupted run of the same seed. It is narrower than the
// teacher's Cassandra datastore (which tracked the whole crawl's link
// graph, claim tokens, and priorities) — here it tracks exactly one fact
// per URL, "has this been fetched."
package checkpoint

import "context"

// Store is the interface package pipeline uses: has (domain, url) already
// been fetched, and record that it now has been.
type Store interface {
	Seen(ctx context.Context, domain, url string) (bool, error)
	MarkSeen(ctx context.Context, domain, url string) error
	Close() error
}

// NullStore is the zero-cost default: every URL is reported unseen, and
// MarkSeen is a no-op. A crawl with checkpointing disabled (the default,
// per Config.Checkpoint.Enabled) uses this and always restarts a seed from
// scratch.
type NullStore struct{}

func (NullStore) Seen(ctx context.Context, domain, url string) (bool, error) { return false, nil }
func (NullStore) MarkSeen(ctx context.Context, domain, url string) error     { return nil }
func (NullStore) Close() error                                              { return nil }

var _ Store = NullStore{}

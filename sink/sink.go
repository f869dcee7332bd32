// Package sink implements the Sink (C5): the final stage that persists an
// extracted Page, either as append-only JSONL files or as bulk-indexed
// documents in Elasticsearch/OpenSearch, with the former serving as a
// built-in fallback for the latter.
package sink

import (
	"context"

	"github.com/pacmancrawl/pacman"
)

// Sink is the interface package pipeline writes completed Pages through.
type Sink interface {
	// Write persists page. Implementations may buffer internally; Close
	// must be called to guarantee everything buffered reaches storage.
	Write(ctx context.Context, page *pacman.Page) error
	Close() error
}

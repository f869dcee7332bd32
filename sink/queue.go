package sink

import (
	"context"

	"github.com/pacmancrawl/pacman"
)

// queueFactor is the bounded queue's capacity expressed as a multiple of
// indexChunkSize, matching spec.md §4.5's "bounded in-memory queue (size
// 2x chunk_size)" so a burst of fast fetches can outrun a momentarily slow
// sink without the Domain Pipeline blocking synchronously on every Write.
const queueFactor = 2

// Queue wraps an underlying Sink with a bounded channel: Write enqueues and
// returns immediately (or blocks only if the queue is full, applying
// backpressure rather than buffering unboundedly), while a background
// goroutine drains the channel into the underlying sink.
type Queue struct {
	items  chan *pacman.Page
	done   chan struct{}
	errs   chan error
	target Sink
}

// NewQueue starts a Queue draining into target, with capacity
// queueFactor*indexChunkSize.
func NewQueue(target Sink) *Queue {
	q := &Queue{
		items:  make(chan *pacman.Page, queueFactor*indexChunkSize),
		done:   make(chan struct{}),
		errs:   make(chan error, 1),
		target: target,
	}
	go q.drain()
	return q
}

func (q *Queue) drain() {
	defer close(q.done)
	for page := range q.items {
		if err := q.target.Write(context.Background(), page); err != nil {
			select {
			case q.errs <- err:
			default:
			}
		}
	}
}

// Write enqueues page, blocking only if the queue is at capacity. ctx
// cancellation unblocks a full-queue wait without enqueuing.
func (q *Queue) Write(ctx context.Context, page *pacman.Page) error {
	select {
	case err := <-q.errs:
		return err
	default:
	}
	select {
	case q.items <- page:
		return nil
	case <-ctx.Done():
		return pacman.Wrap(pacman.KindTransient, ctx.Err(), "queue write canceled")
	}
}

// Close stops accepting writes, drains whatever remains, and closes the
// underlying sink.
func (q *Queue) Close() error {
	close(q.items)
	<-q.done
	return q.target.Close()
}

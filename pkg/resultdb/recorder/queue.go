// Package recorder provides a buffered write-behind pipeline for
// execution rows. Producers call Record, which only enqueues; a single
// background drainer owns the database write path and works through the
// backlog at a bounded rate, so a burst of finishing test runs never
// stalls the harness that produced them.
package recorder

import (
	"context"
	"errors"
)

var (
	// ErrQueueClosed is returned when enqueuing to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned when the queue cannot accept more rows.
	ErrQueueFull = errors.New("queue is full")
)

// Queue buffers rows between producers and the drainer. Implementations
// must be safe for concurrent use.
type Queue[R any] interface {
	// Enqueue adds a row to the queue.
	Enqueue(ctx context.Context, row R) error

	// Dequeue retrieves up to max rows without blocking indefinitely.
	// Rows come back in the order they were enqueued; an empty slice
	// means nothing is buffered right now.
	Dequeue(ctx context.Context, max int) ([]R, error)

	// Size returns the approximate number of buffered rows.
	Size() int

	// Close releases the queue's resources. A closed queue rejects
	// further enqueues.
	Close() error
}

package recorder

import (
	"context"
	"sync"
)

const (
	// defaultQueueBuffer is the memory queue capacity when none is
	// configured.
	defaultQueueBuffer = 4096

	// defaultDequeueBatch caps Dequeue when the caller passes max <= 0.
	defaultDequeueBatch = 100
)

// MemoryQueue is a process-local Queue backed by a buffered channel.
// Rows are lost if the process exits before the drainer catches up; use
// the Kafka queue when that matters.
type MemoryQueue[R any] struct {
	mu     sync.RWMutex
	rows   chan R
	closed bool
}

// NewMemoryQueue creates a memory queue holding up to bufferSize rows.
func NewMemoryQueue[R any](bufferSize int) *MemoryQueue[R] {
	if bufferSize <= 0 {
		bufferSize = defaultQueueBuffer
	}
	return &MemoryQueue[R]{
		rows: make(chan R, bufferSize),
	}
}

// Enqueue adds a row to the queue. It returns ErrQueueFull when the
// buffer is at capacity rather than blocking the producer.
func (q *MemoryQueue[R]) Enqueue(ctx context.Context, row R) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.rows <- row:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves up to max rows in FIFO order. It returns immediately
// with whatever is buffered, which may be nothing. A closed queue keeps
// handing out its remaining rows until drained.
func (q *MemoryQueue[R]) Dequeue(ctx context.Context, max int) ([]R, error) {
	if max <= 0 {
		max = defaultDequeueBatch
	}

	rows := make([]R, 0, max)
	for i := 0; i < max; i++ {
		select {
		case row, ok := <-q.rows:
			if !ok {
				return rows, nil
			}
			rows = append(rows, row)
		case <-ctx.Done():
			return rows, ctx.Err()
		default:
			return rows, nil
		}
	}
	return rows, nil
}

// Size returns the number of buffered rows.
func (q *MemoryQueue[R]) Size() int {
	return len(q.rows)
}

// Close closes the queue. Enqueue fails afterwards; rows already
// buffered stay available to Dequeue.
func (q *MemoryQueue[R]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.rows)
	return nil
}

package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/perfline/resultdb/pkg/resultdb"
)

// Recorder buffers execution rows and writes them back to the database
// at a bounded rate. Producers call Record, which never touches the
// database; a single drainer goroutine owns the write path.
type Recorder[R resultdb.Execution] struct {
	db    *resultdb.DB
	queue Queue[R]

	drainRate    int
	batchSize    int
	pollInterval time.Duration
	maxRetries   int

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a recorder draining into db. The queue backend is chosen
// by cfg.QueueType: "memory" (the default) or "kafka".
func New[R resultdb.Execution](db *resultdb.DB, cfg resultdb.RecorderConfig) (*Recorder[R], error) {
	var queue Queue[R]
	switch cfg.QueueType {
	case "", "memory":
		queue = NewMemoryQueue[R](cfg.QueueBufferSize)
	case "kafka":
		kq, err := NewKafkaQueue[R](cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka queue: %w", err)
		}
		queue = kq
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", cfg.QueueType)
	}

	return NewWithQueue(db, queue, cfg)
}

// NewWithQueue creates a recorder draining queue into db. It is the
// injection point for custom queue implementations.
func NewWithQueue[R resultdb.Execution](db *resultdb.DB, queue Queue[R], cfg resultdb.RecorderConfig) (*Recorder[R], error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}

	r := &Recorder[R]{
		db:           db,
		queue:        queue,
		drainRate:    cfg.DrainRate,
		batchSize:    cfg.BatchSize,
		pollInterval: cfg.PollInterval,
		maxRetries:   cfg.MaxRetries,
	}
	if r.drainRate <= 0 {
		r.drainRate = 100
	}
	if r.batchSize <= 0 {
		r.batchSize = 32
	}
	if r.pollInterval <= 0 {
		r.pollInterval = 100 * time.Millisecond
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	return r, nil
}

// Record enqueues an execution row for asynchronous persistence.
func (r *Recorder[R]) Record(ctx context.Context, row R) error {
	return r.queue.Enqueue(ctx, row)
}

// Queue returns the underlying queue.
func (r *Recorder[R]) Queue() Queue[R] {
	return r.queue
}

// QueueSize returns the approximate number of rows waiting to be
// written.
func (r *Recorder[R]) QueueSize() int {
	return r.queue.Size()
}

// Start launches the drainer goroutine. Starting a running recorder is
// a no-op.
func (r *Recorder[R]) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	// Fresh channels so a stopped recorder can be started again.
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.run(ctx)
	log.Printf("[RECORDER] started (rate: %d rows/sec, batch: %d)", r.drainRate, r.batchSize)
	return nil
}

// Stop halts the drainer and waits for the batch in flight to finish.
// Stopping an idle recorder is a no-op.
func (r *Recorder[R]) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
	log.Printf("[RECORDER] stopped")
	return nil
}

// IsRunning reports whether the drainer goroutine is active.
func (r *Recorder[R]) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Flush synchronously drains the queue into the database, bypassing the
// rate limit. It returns once the queue reports empty. Flush is meant
// for shutdown paths, typically after Stop.
func (r *Recorder[R]) Flush(ctx context.Context) error {
	for {
		rows, err := r.queue.Dequeue(ctx, r.batchSize)
		for _, row := range rows {
			r.persist(ctx, row)
		}
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		if len(rows) == 0 {
			return nil
		}
	}
}

// run is the drainer loop: dequeue a batch, write each row through the
// rate limiter, sleep when the queue is empty.
func (r *Recorder[R]) run(ctx context.Context) {
	defer close(r.doneCh)

	limiter := rate.NewLimiter(rate.Limit(r.drainRate), 1)
	written := 0
	started := time.Now()

	for {
		select {
		case <-r.stopCh:
			log.Printf("[RECORDER] stop signal, wrote %d rows in %v", written, time.Since(started))
			return
		case <-ctx.Done():
			log.Printf("[RECORDER] context cancelled, wrote %d rows in %v", written, time.Since(started))
			return
		default:
			if r.queue.Size() == 0 {
				time.Sleep(r.pollInterval)
				continue
			}

			rows, err := r.queue.Dequeue(ctx, r.batchSize)
			if err != nil {
				if errors.Is(err, ErrQueueClosed) {
					log.Printf("[RECORDER] queue closed, wrote %d rows in %v", written, time.Since(started))
					return
				}
				log.Printf("[RECORDER] ERROR: dequeue failed: %v", err)
				continue
			}

			for _, row := range rows {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				if r.persist(ctx, row) {
					written++
				}
			}
		}
	}
}

// persist writes one row, retrying up to maxRetries extra attempts
// before dropping it.
func (r *Recorder[R]) persist(ctx context.Context, row R) bool {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		_, err := resultdb.RecordExecution(ctx, r.db, row)
		if err == nil {
			return true
		}
		lastErr = err
	}
	log.Printf("[RECORDER] ERROR: dropping execution row after %d attempts: %v", r.maxRetries+1, lastErr)
	return false
}

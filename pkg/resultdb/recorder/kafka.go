package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/perfline/resultdb/pkg/resultdb"
)

// kafkaFetchTimeout bounds a single fetch so Dequeue returns once the
// topic has nothing more to hand out.
const kafkaFetchTimeout = 5 * time.Second

// KafkaQueue is a Queue journaled through a Kafka topic. Rows survive
// process restarts and can be drained by a consumer group on another
// host. JSON is the wire format, so R must round-trip through
// encoding/json.
type KafkaQueue[R any] struct {
	mu      sync.RWMutex
	writer  *kafka.Writer
	reader  *kafka.Reader
	topic   string
	groupID string
	closed  bool
	size    int
}

// NewKafkaQueue connects a producer and a consumer-group reader to the
// configured topic.
func NewKafkaQueue[R any](cfg resultdb.KafkaConfig) (*KafkaQueue[R], error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "resultdb-recorder"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}

	// A fresh consumer group starts at the beginning of the topic so rows
	// journaled before any drainer existed are still written back.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     groupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	log.Printf("[KAFKA] queue ready on topic %s (brokers: %v, group: %s)", cfg.Topic, cfg.Brokers, groupID)

	return &KafkaQueue[R]{
		writer:  writer,
		reader:  reader,
		topic:   cfg.Topic,
		groupID: groupID,
	}, nil
}

// Enqueue journals a row to the topic. The write is synchronous, so a
// nil return means the broker has the row.
func (q *KafkaQueue[R]) Enqueue(ctx context.Context, row R) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	message := kafka.Message{
		Value: payload,
		Time:  time.Now(),
	}
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()
	return nil
}

// Dequeue fetches up to max rows from the topic and commits their
// offsets. Payloads that fail to decode are logged and skipped, their
// offsets committed so they are not refetched forever.
func (q *KafkaQueue[R]) Dequeue(ctx context.Context, max int) ([]R, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	q.mu.RUnlock()

	if max <= 0 {
		max = defaultDequeueBatch
	}

	rows := make([]R, 0, max)
	for i := 0; i < max; i++ {
		fetchCtx, cancel := context.WithTimeout(ctx, kafkaFetchTimeout)
		message, err := q.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			log.Printf("[KAFKA] ERROR: fetch from topic %s failed: %v", q.topic, err)
			break
		}

		var row R
		if err := json.Unmarshal(message.Value, &row); err != nil {
			log.Printf("[KAFKA] ERROR: skipping corrupt message at partition %d offset %d: %v",
				message.Partition, message.Offset, err)
		} else {
			rows = append(rows, row)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			log.Printf("[KAFKA] WARNING: failed to commit offset %d on partition %d: %v",
				message.Offset, message.Partition, err)
		}
	}

	if len(rows) > 0 {
		q.mu.Lock()
		if q.size >= len(rows) {
			q.size -= len(rows)
		} else {
			q.size = 0
		}
		q.mu.Unlock()
	}
	return rows, nil
}

// Size returns an approximation of the rows waiting in the topic. Kafka
// does not expose an exact count, so this only tracks rows that passed
// through this process.
func (q *KafkaQueue[R]) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the producer and the consumer group reader.
func (q *KafkaQueue[R]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.writer.Close(); err != nil {
		log.Printf("[KAFKA] ERROR: failed to close writer: %v", err)
	}
	return q.reader.Close()
}

// Package changelog records Record Store mutations as an append-only audit
// trail, to a local JSONL file and optionally to a Kafka topic.
package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Op identifies what happened to a record.
type Op string

const (
	OpIngested Op = "ingested"
	OpUpdated  Op = "updated"
	OpSkipped  Op = "skipped"
	OpEvicted  Op = "evicted"
)

// Event is one changelog entry.
type Event struct {
	ID          string    `json:"id"`
	Op          Op        `json:"op"`
	RecordID    string    `json:"record_id,omitempty"`
	OrderNumber string    `json:"order_number,omitempty"`
	ItemCode    string    `json:"item_code,omitempty"`
	UnitPrice   float64   `json:"unit_price,omitempty"`
	Source      string    `json:"source,omitempty"`
	TS          time.Time `json:"ts"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(op Op, recordID string) Event {
	return Event{
		ID:       uuid.NewString(),
		Op:       op,
		RecordID: recordID,
		TS:       time.Now().UTC(),
	}
}

// Writer appends events. A call with several events is one write to the
// underlying sink.
type Writer interface {
	Append(ctx context.Context, events ...Event) error
}

// MultiWriter fans out writes to multiple underlying writers. All writers are
// attempted; failures are joined.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	var errs []error
	for _, w := range m.writers {
		if err := w.Append(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileWriter appends JSON lines to a file.
type FileWriter struct {
	mu   sync.Mutex
	path string
}

func NewFileWriter(dir, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

// Path returns the file events are written to.
func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Append(_ context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	}
	return nil
}

// kafkaBatchTimeout bounds how long a synchronous write waits for a batch
// to fill before flushing.
const kafkaBatchTimeout = 10 * time.Millisecond

// KafkaWriter publishes events to a Kafka topic keyed by record id.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a Kafka writer. bootstrap is a comma-separated list
// of host:port.
func NewKafkaWriter(bootstrap, topic string) *KafkaWriter {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: kafkaBatchTimeout,
	}}
}

func newKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

// Append publishes events in a single WriteMessages call.
func (k *KafkaWriter) Append(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i := range events {
		b, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		key := events[i].RecordID
		if key == "" {
			key = events[i].ID
		}
		msgs[i] = kafka.Message{Key: []byte(key), Value: b}
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (k *KafkaWriter) Close() error {
	return k.writer.Close()
}

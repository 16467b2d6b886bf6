package quotes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wonquotes/internal/changelog"
)

// DefaultMaxRecords is the collection cap.
const DefaultMaxRecords = 10000

// Options configures a Store.
type Options struct {
	// MaxRecords caps the collection (default DefaultMaxRecords).
	MaxRecords int

	// DeferWrites keeps mutations in memory until Flush, Save or Close.
	DeferWrites bool

	Logger    *zap.Logger
	Metrics   *Metrics
	Changelog changelog.Writer

	// Now overrides the clock used for ingested_at.
	Now func() time.Time
}

// BatchStats counts the outcomes of IngestBatch.
type BatchStats struct {
	Ingested int `json:"ingested"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Store owns the record collection.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	records []PriceRecord
	index   map[string]int
	dirty   bool
	closed  bool

	maxRecords  int
	deferWrites bool
	logger      *zap.Logger
	metrics     *Metrics
	changes     changelog.Writer
	pending     []changelog.Event
	now         func() time.Time
}

// NewStore creates an empty store over backend. Call Load to read the
// persisted collection.
func NewStore(backend Backend, opts Options) *Store {
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = DefaultMaxRecords
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend:     backend,
		index:       make(map[string]int),
		maxRecords:  opts.MaxRecords,
		deferWrites: opts.DeferWrites,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		changes:     opts.Changelog,
		now:         opts.Now,
	}
}

// Open creates a store and loads the persisted collection.
func Open(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	s := NewStore(backend, opts)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory collection with the persisted one. An
// unreadable collection is quarantined when the backend supports it and the
// store starts empty.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	records, err := s.backend.LoadAll(ctx)
	if err != nil {
		q, ok := s.backend.(Quarantiner)
		if !errors.Is(err, ErrCorruptDocument) || !ok {
			return fmt.Errorf("load records: %w", err)
		}
		moved, qerr := q.Quarantine(ctx)
		if qerr != nil {
			return fmt.Errorf("load records: %w", errors.Join(err, qerr))
		}
		s.logger.Warn("record collection unreadable, quarantined and starting empty",
			zap.Error(err),
			zap.String("quarantined_to", moved))
		records = nil
	}

	s.records = s.records[:0]
	s.index = make(map[string]int, len(records))
	for _, rec := range records {
		s.upsertLocked(rec)
	}
	s.dirty = false
	s.metrics.Records.Set(float64(len(s.records)))
	s.logger.Debug("record collection loaded", zap.Int("records", len(s.records)))
	return nil
}

// Save evicts over-cap records and writes the whole collection.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publishLocked(ctx)
	if s.closed {
		return ErrStoreClosed
	}
	return s.saveLocked(ctx)
}

// Flush saves only when there are unsaved changes.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publishLocked(ctx)
	if s.closed {
		return ErrStoreClosed
	}
	if !s.dirty {
		return nil
	}
	return s.saveLocked(ctx)
}

// Close flushes pending changes and closes the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var errs []error
	if s.dirty {
		if err := s.saveLocked(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	s.publishLocked(context.Background())
	if err := s.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	s.closed = true
	return errors.Join(errs...)
}

// Ingest upserts a single record. The source defaults to SourceLive.
func (s *Store) Ingest(ctx context.Context, in RecordInput) (PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publishLocked(ctx)
	if s.closed {
		return PriceRecord{}, ErrStoreClosed
	}

	price, ok := in.Price()
	if !ok {
		s.metrics.Ingests.WithLabelValues(string(changelog.OpSkipped)).Inc()
		s.record(ctx, changelog.OpSkipped, PriceRecord{OrderNumber: in.OrderNumber, ItemCode: in.ItemCode})
		return PriceRecord{}, ErrInvalidPrice
	}
	source := in.Source
	if source == "" {
		source = SourceLive
	}
	rec := buildRecord(in, price, source, sourceConfidence(source), s.now())

	op := changelog.OpIngested
	if s.upsertLocked(rec) {
		op = changelog.OpUpdated
	}
	s.metrics.Ingests.WithLabelValues(string(op)).Inc()
	s.record(ctx, op, rec)

	if err := s.persistLocked(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// IngestBatch upserts every input with a positive price and persists once.
// Sources default to SourceBulk and batch records carry full confidence.
func (s *Store) IngestBatch(ctx context.Context, inputs []RecordInput) (BatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publishLocked(ctx)
	if s.closed {
		return BatchStats{}, ErrStoreClosed
	}

	var stats BatchStats
	now := s.now()
	for _, in := range inputs {
		price, ok := in.Price()
		if !ok {
			stats.Skipped++
			s.metrics.Ingests.WithLabelValues(string(changelog.OpSkipped)).Inc()
			s.record(ctx, changelog.OpSkipped, PriceRecord{OrderNumber: in.OrderNumber, ItemCode: in.ItemCode})
			continue
		}
		source := in.Source
		if source == "" {
			source = SourceBulk
		}
		rec := buildRecord(in, price, source, 1.0, now)
		op := changelog.OpIngested
		if s.upsertLocked(rec) {
			op = changelog.OpUpdated
			stats.Updated++
		} else {
			stats.Ingested++
		}
		s.metrics.Ingests.WithLabelValues(string(op)).Inc()
		s.record(ctx, op, rec)
	}

	s.logger.Info("batch ingested",
		zap.Int("ingested", stats.Ingested),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped))

	if s.deferWrites {
		s.dirty = s.dirty || stats.Ingested+stats.Updated > 0
		return stats, nil
	}
	if err := s.saveLocked(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// Records returns a snapshot of the collection.
func (s *Store) Records() []PriceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PriceRecord(nil), s.records...)
}

// Get returns the record with id.
func (s *Store) Get(id string) (PriceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return PriceRecord{}, false
	}
	return s.records[i], true
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dirty reports whether there are unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// upsertLocked replaces or appends rec and reports whether it replaced.
func (s *Store) upsertLocked(rec PriceRecord) bool {
	if i, ok := s.index[rec.ID]; ok {
		s.records[i] = rec
		return true
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return false
}

// persistLocked writes a single changed record. Backends without
// single-record writes get a full save.
func (s *Store) persistLocked(ctx context.Context, rec PriceRecord) error {
	if s.deferWrites {
		s.dirty = true
		s.metrics.Records.Set(float64(len(s.records)))
		return nil
	}
	w, ok := s.backend.(RecordWriter)
	if !ok {
		return s.saveLocked(ctx)
	}
	if err := w.Put(ctx, rec); err != nil {
		s.dirty = true
		s.metrics.Saves.WithLabelValues("error").Inc()
		return fmt.Errorf("put record %s: %w", rec.ID, err)
	}
	for _, gone := range s.evictLocked(ctx) {
		if err := w.Delete(ctx, gone.ID); err != nil {
			s.dirty = true
			s.metrics.Saves.WithLabelValues("error").Inc()
			return fmt.Errorf("delete evicted record %s: %w", gone.ID, err)
		}
	}
	s.metrics.Saves.WithLabelValues("success").Inc()
	s.metrics.Records.Set(float64(len(s.records)))
	return nil
}

func (s *Store) saveLocked(ctx context.Context) error {
	s.evictLocked(ctx)
	if err := s.backend.SaveAll(ctx, s.records); err != nil {
		s.dirty = true
		s.metrics.Saves.WithLabelValues("error").Inc()
		return fmt.Errorf("save records: %w", err)
	}
	s.dirty = false
	s.metrics.Saves.WithLabelValues("success").Inc()
	s.metrics.Records.Set(float64(len(s.records)))
	return nil
}

// evictLocked keeps the maxRecords most recently ingested records and
// returns the evicted ones. Ties keep their collection order.
func (s *Store) evictLocked(ctx context.Context) []PriceRecord {
	if len(s.records) <= s.maxRecords {
		return nil
	}
	sorted := append([]PriceRecord(nil), s.records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IngestedAt.After(sorted[j].IngestedAt)
	})
	kept, evicted := sorted[:s.maxRecords], sorted[s.maxRecords:]

	s.records = kept
	s.index = make(map[string]int, len(kept))
	for i, rec := range kept {
		s.index[rec.ID] = i
	}
	for _, rec := range evicted {
		s.record(ctx, changelog.OpEvicted, rec)
	}
	s.metrics.Evictions.Add(float64(len(evicted)))
	s.logger.Info("evicted records over capacity",
		zap.Int("evicted", len(evicted)),
		zap.Int("max_records", s.maxRecords))
	return evicted
}

// record queues a changelog event. Queued events are published once per
// mutating call by publishLocked.
func (s *Store) record(_ context.Context, op changelog.Op, rec PriceRecord) {
	if s.changes == nil {
		return
	}
	e := changelog.NewEvent(op, rec.ID)
	e.OrderNumber = rec.OrderNumber
	e.ItemCode = rec.ItemCode
	e.UnitPrice = rec.UnitPrice
	e.Source = rec.Source
	s.pending = append(s.pending, e)
}

// publishLocked appends the queued events in one changelog write. Failures
// are logged, never returned.
func (s *Store) publishLocked(ctx context.Context) {
	if s.changes == nil || len(s.pending) == 0 {
		return
	}
	events := s.pending
	s.pending = nil
	if err := s.changes.Append(ctx, events...); err != nil {
		s.logger.Warn("changelog append failed",
			zap.Int("events", len(events)),
			zap.String("first_op", string(events[0].Op)),
			zap.Error(err))
	}
}

package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// recordKeyPrefix namespaces record keys inside the pebble keyspace.
var recordKeyPrefix = []byte("rec/")

// PebbleBackend stores one JSON value per record id in a pebble database.
type PebbleBackend struct {
	db *pebble.DB
}

// NewPebbleBackend opens (or creates) a pebble database in dir.
func NewPebbleBackend(dir string) (*PebbleBackend, error) {
	opts := &pebble.Options{
		MemTableSize:          64 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleBackend{db: db}, nil
}

func recordKey(id string) []byte {
	return append(append([]byte(nil), recordKeyPrefix...), id...)
}

// prefixUpperBound returns the smallest key greater than every key with the
// record prefix.
func prefixUpperBound() []byte {
	end := append([]byte(nil), recordKeyPrefix...)
	end[len(end)-1]++
	return end
}

func (p *PebbleBackend) iter() (*pebble.Iterator, error) {
	return p.db.NewIter(&pebble.IterOptions{
		LowerBound: recordKeyPrefix,
		UpperBound: prefixUpperBound(),
	})
}

func (p *PebbleBackend) LoadAll(_ context.Context) ([]PriceRecord, error) {
	it, err := p.iter()
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var out []PriceRecord
	for it.First(); it.Valid(); it.Next() {
		var rec PriceRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %v: %w", it.Key(), err, ErrCorruptDocument)
		}
		out = append(out, rec)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("pebble iterate: %w", err)
	}
	return out, nil
}

// SaveAll replaces the keyspace with records in one batch.
func (p *PebbleBackend) SaveAll(_ context.Context, records []PriceRecord) error {
	wb := p.db.NewBatch()
	defer wb.Close()

	if err := wb.DeleteRange(recordKeyPrefix, prefixUpperBound(), nil); err != nil {
		return fmt.Errorf("pebble clear: %w", err)
	}
	for _, rec := range records {
		val, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode %s: %w", rec.ID, err)
		}
		if err := wb.Set(recordKey(rec.ID), val, nil); err != nil {
			return fmt.Errorf("pebble set %s: %w", rec.ID, err)
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

func (p *PebbleBackend) Put(_ context.Context, rec PriceRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.ID, err)
	}
	if err := p.db.Set(recordKey(rec.ID), val, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", rec.ID, err)
	}
	return nil
}

func (p *PebbleBackend) Delete(_ context.Context, id string) error {
	if err := p.db.Delete(recordKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete %s: %w", id, err)
	}
	return nil
}

// Get reads a single record.
func (p *PebbleBackend) Get(id string) (PriceRecord, bool, error) {
	val, closer, err := p.db.Get(recordKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return PriceRecord{}, false, nil
	}
	if err != nil {
		return PriceRecord{}, false, fmt.Errorf("pebble get %s: %w", id, err)
	}
	defer closer.Close()
	var rec PriceRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return PriceRecord{}, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return rec, true, nil
}

func (p *PebbleBackend) Close() error { return p.db.Close() }

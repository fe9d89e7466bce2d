// Package store implements dal.DataStore on a local pebble key-value
// database: bundles, their inner items, and each process's schedule
// cursor are all persisted as flat key ranges over one database handle,
// the same batch-and-commit shape used for indexing transaction data
// against pebble elsewhere in this ecosystem.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/permaweb/scheduler-unit/bitem"
	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/metrics"
)

const (
	messagePrefix  = "m:"
	processPrefix  = "p:"
	schedulePrefix = "s:"
	indexPrefix    = "i:" // process id -> ordered message ids, for GetMessages
)

// Store persists bundle binaries and schedule cursors in a pebble
// database rooted at a configured directory.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) the pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scheduleKey(processID string) []byte {
	return []byte(schedulePrefix + processID)
}

func messageKey(id string) []byte {
	return []byte(messagePrefix + id)
}

func processKey(id string) []byte {
	return []byte(processPrefix + id)
}

func indexKey(processID string, nonce uint64) []byte {
	buf := make([]byte, len(indexPrefix)+len(processID)+1+8)
	n := copy(buf, indexPrefix)
	n += copy(buf[n:], processID)
	buf[n] = ':'
	binary.BigEndian.PutUint64(buf[n+1:], nonce)
	return buf
}

// SaveMessage persists a message bundle's binary, indexes it under its
// process id by nonce, and durably advances the schedule cursor. All
// three writes land in one pebble batch so a process crash between them
// cannot split persistence from the cursor it is trusted to reflect.
func (s *Store) SaveMessage(ctx context.Context, bundle *bitem.Bundle, payload []byte, schedule dal.ScheduleRecord) error {
	return s.save(bundle, payload, schedule, messageKey)
}

// SaveProcess persists a process-creation bundle's binary and its
// (nonce-absent) schedule cursor the same way SaveMessage does.
func (s *Store) SaveProcess(ctx context.Context, bundle *bitem.Bundle, payload []byte, schedule dal.ScheduleRecord) error {
	return s.save(bundle, payload, schedule, processKey)
}

func (s *Store) save(bundle *bitem.Bundle, payload []byte, schedule dal.ScheduleRecord, keyFn func(string) []byte) error {
	started := time.Now()
	defer func() {
		metrics.StoreWrites.Inc()
		metrics.StoreWriteLatencyMS.Observe(float64(time.Since(started).Milliseconds()))
	}()

	if len(bundle.Items) == 0 {
		return fmt.Errorf("bundle has no inner item to index")
	}
	id := bundle.Items[0].ID()

	recBytes, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule record: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(keyFn(id), payload, nil); err != nil {
		return err
	}
	if err := batch.Set(scheduleKey(schedule.ProcessID), recBytes, nil); err != nil {
		return err
	}
	if err := batch.Set(indexKey(schedule.ProcessID, schedule.Nonce), []byte(id), nil); err != nil {
		return err
	}

	return batch.Commit(pebble.Sync)
}

func (s *Store) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// GetMessage returns the stored bundle binary for a message id, or nil
// if absent.
func (s *Store) GetMessage(ctx context.Context, id string) ([]byte, error) {
	return s.get(messageKey(id))
}

// GetProcess returns the stored bundle binary for a process id, or nil
// if absent.
func (s *Store) GetProcess(ctx context.Context, id string) ([]byte, error) {
	return s.get(processKey(id))
}

// GetMessages scans the nonce index for processID over [from, to),
// returning up to limit bundle binaries in nonce order. The
// process-creation bundle indexed at nonce 0 is included.
func (s *Store) GetMessages(ctx context.Context, processID string, from, to uint64, limit int) ([][]byte, error) {
	lower := indexKey(processID, from)
	upper := indexKey(processID, to)

	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out [][]byte
	for it.First(); it.Valid() && (limit <= 0 || len(out) < limit); it.Next() {
		id := string(it.Value())
		payload, err := s.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			if payload, err = s.GetProcess(ctx, id); err != nil {
				return nil, err
			}
		}
		if payload != nil {
			out = append(out, payload)
		}
	}
	return out, it.Error()
}

// GetSchedule returns the latest persisted schedule cursor for a
// process, and ok=false if the process has never been written.
func (s *Store) GetSchedule(ctx context.Context, processID string) (dal.ScheduleRecord, bool, error) {
	raw, err := s.get(scheduleKey(processID))
	if err != nil {
		return dal.ScheduleRecord{}, false, err
	}
	if raw == nil {
		return dal.ScheduleRecord{}, false, nil
	}
	var rec dal.ScheduleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return dal.ScheduleRecord{}, false, fmt.Errorf("unmarshal schedule record: %w", err)
	}
	return rec, true, nil
}

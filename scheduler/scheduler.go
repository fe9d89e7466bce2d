// Package scheduler grants FIFO-fair exclusive access to a process's
// schedule cursor and implements the pure advance-the-cursor algorithm,
// plus the timestamp and hash-chain primitives it depends on. The
// concurrency shape is a concurrent map from process id to a
// per-process mutex-guarded state, the same structure a nonce tracker
// uses to serialise per-account sequencing while letting distinct
// accounts proceed independently.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/metrics"
	"github.com/permaweb/scheduler-unit/pipeline"
)

// State is the authoritative in-memory cursor for one process.
type State struct {
	ProcessID string
	Epoch     string
	Nonce     uint64
	HashChain string
	Timestamp uint64
}

// Snapshot is a coherent (epoch, nonce, hash_chain, timestamp) computed
// atomically under the process's lock, ready to build a bundle from.
type Snapshot struct {
	Epoch     string
	Nonce     uint64
	HashChain string
	Timestamp uint64
	// Creation marks a process-creation snapshot: nonce is 0 and the
	// hash chain is seeded from the process id itself rather than
	// chained from a predecessor.
	Creation bool
}

// NowMS returns the current wall-clock time in milliseconds since the
// Unix epoch.
func NowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}

// HashStep decodes prevB64 (URL-safe base64, no padding), computes
// SHA-256 of prev concatenated with itemID, and re-encodes the result
// the same way.
func HashStep(prevB64 string, itemID []byte) (string, error) {
	prev, err := base64.RawURLEncoding.DecodeString(prevB64)
	if err != nil {
		return "", fmt.Errorf("decode hash chain: %w", err)
	}
	h := sha256.New()
	h.Write(prev)
	h.Write(itemID)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// SeedHashChain returns hash_chain₀ for a newly created process:
// base64url(SHA256(process_id_bytes)).
func SeedHashChain(processID string) string {
	sum := sha256.Sum256([]byte(processID))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// procEntry pairs a process's state with the mutex that serialises
// writes to it. The mutex is held across the entire build-upload-persist
// sequence for a single write, never merely across the state read.
type procEntry struct {
	mu    sync.Mutex
	state State
	ready bool // true once loaded from the store or created fresh
	found bool // true once a schedule record exists for this process
	held  atomic.Bool
}

// Scheduler grants exclusive, FIFO-fair access to ScheduleState per
// process id and advances it. The outer map lock is held only for
// insert-if-absent and lookup, never across I/O.
type Scheduler struct {
	store dal.DataStore

	mu      sync.RWMutex
	entries map[string]*procEntry
}

// New constructs a Scheduler backed by the given store for first-load of
// a process's persisted cursor.
func New(store dal.DataStore) *Scheduler {
	return &Scheduler{
		store:   store,
		entries: make(map[string]*procEntry),
	}
}

func (s *Scheduler) entryFor(processID string) *procEntry {
	s.mu.RLock()
	e, ok := s.entries[processID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[processID]; ok {
		return e
	}
	e = &procEntry{}
	s.entries[processID] = e
	return e
}

// ActiveLocks returns the number of processes whose lock is currently
// held by an in-flight write.
func (s *Scheduler) ActiveLocks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if e.held.Load() {
			n++
		}
	}
	return n
}

// Handle is a held per-process lock. It must be released on every exit
// path, including failure, which is why callers are expected to defer
// Release immediately after a successful Acquire.
type Handle struct {
	entry     *procEntry
	processID string
	released  bool
}

// Acquire takes the exclusive lock for processID, loading its persisted
// schedule cursor from the store on first sight of the process in this
// scheduler's lifetime. Concurrent acquires for the same id queue;
// distinct ids proceed independently.
func (s *Scheduler) Acquire(ctx context.Context, processID string) (*Handle, error) {
	e := s.entryFor(processID)
	if !e.mu.TryLock() {
		// Another write is already in flight for this process; the
		// caller will block below. Recorded as a conflict since it
		// measures cross-writer contention on a single process id.
		metrics.ScheduleConflicts.Inc()
		e.mu.Lock()
	}
	e.held.Store(true)

	if !e.ready {
		rec, found, err := s.store.GetSchedule(ctx, processID)
		if err != nil {
			e.held.Store(false)
			e.mu.Unlock()
			return nil, pipeline.Wrap(pipeline.ScheduleUnavailable, "load schedule state", err)
		}
		if found {
			e.state = State{
				ProcessID: processID,
				Epoch:     rec.Epoch,
				Nonce:     rec.Nonce,
				HashChain: rec.HashChain,
				Timestamp: rec.Timestamp,
			}
		} else {
			e.state = State{ProcessID: processID}
		}
		e.found = found
		e.ready = true
	}

	return &Handle{entry: e, processID: processID}, nil
}

// State returns the current cursor seen under the held lock.
func (h *Handle) State() State {
	return h.entry.state
}

// Found reports whether a schedule record already existed for this
// process when it was first loaded (or has since been committed).
// WritePipeline uses this to reject a Message write targeting a process
// with no prior schedule before advancing any state.
func (h *Handle) Found() bool {
	return h.entry.found
}

// Release unlocks the process. Only the first call has an effect; later
// calls on the same Handle return without doing anything.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.entry.held.Store(false)
	h.entry.mu.Unlock()
}

// NextSnapshot computes the next schedule snapshot for processID given
// the current state and the id of the item being written. It is pure
// given (state, itemID, now): it does not mutate state or the scheduler.
//
// For a process-creation write, creation must be true: nonce starts at 0
// and hash_chain is seeded from the process id rather than chained.
func NextSnapshot(state State, processID string, itemID []byte, creation bool, epoch string) (Snapshot, error) {
	now := NowMS()

	if creation {
		ts := now
		return Snapshot{
			Epoch:     epoch,
			Nonce:     0,
			HashChain: SeedHashChain(processID),
			Timestamp: ts,
			Creation:  true,
		}, nil
	}

	if state.Nonce == math.MaxUint64 {
		return Snapshot{}, pipeline.New(pipeline.ScheduleExhausted, "nonce overflow for process "+processID)
	}

	chain, err := HashStep(state.HashChain, itemID)
	if err != nil {
		return Snapshot{}, pipeline.Wrap(pipeline.Internal, "hash chain decode failure", err)
	}

	ts := now
	if ts < state.Timestamp {
		// Timestamp clamp: never regress relative to the previous write.
		ts = state.Timestamp
	}

	return Snapshot{
		Epoch:     state.Epoch,
		Nonce:     state.Nonce + 1,
		HashChain: chain,
		Timestamp: ts,
	}, nil
}

// Commit overwrites the in-memory state with snapshot's fields. Callers
// must only invoke this after the snapshot has been durably persisted;
// it is the linearisation point after which the next acquirer of this
// process observes the advanced cursor.
func (h *Handle) Commit(snapshot Snapshot) {
	h.entry.state = State{
		ProcessID: h.processID,
		Epoch:     snapshot.Epoch,
		Nonce:     snapshot.Nonce,
		HashChain: snapshot.HashChain,
		Timestamp: snapshot.Timestamp,
	}
	h.entry.found = true
}

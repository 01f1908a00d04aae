// Package worldstate provides the versioned key-value store every ledger
// operation runs against. Operations read from an immutable Snapshot and
// return writes; the commit path applies those writes only if the versions
// the operation observed are still current (optimistic concurrency).
package worldstate

import (
	"context"
	"sync"
	"time"
)

//go:generate mockgen -source=worldstate.go -destination=mocks/mocks.go -package=mocks Snapshot,Store

// Version is a per-key monotonic counter. Version 0 means "key absent".
type Version uint64

// KV is a key with its current value and version.
type KV struct {
	Key     string
	Value   []byte
	Version Version
}

// VersionedValue is one committed state of a key, tagged with the commit
// transaction that produced it.
type VersionedValue struct {
	Value       []byte
	Version     Version
	TxID        string
	CommittedAt time.Time
	Deleted     bool
}

// Write is a single key mutation in a transaction's write-set.
type Write struct {
	Key    string
	Value  []byte
	Delete bool
}

// CommitMeta identifies a committed transaction. The transaction id and
// timestamp come from the ordering runtime, never from the operation itself.
type CommitMeta struct {
	TxID string
	Time time.Time
}

// Proposal is the outcome of executing one operation against a snapshot:
// the versions it observed and the writes it wants applied atomically.
type Proposal struct {
	Reads  map[string]Version
	Writes []Write
}

// Snapshot is a point-in-time, immutable view of the world state.
//
// Error contract: Get returns sentinel.ErrNotFound for absent keys. List
// returns keys in lexical order and an empty slice (not an error) when the
// prefix matches nothing. History returns versions oldest-first.
type Snapshot interface {
	Get(ctx context.Context, key string) ([]byte, Version, error)
	List(ctx context.Context, prefix string) ([]KV, error)
	History(ctx context.Context, key string) ([]VersionedValue, error)
}

// Store hands out snapshots and commits proposals. Commit returns
// sentinel.ErrConflict when any read key has moved past the observed
// version, leaving the state untouched (all-or-nothing).
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Commit(ctx context.Context, p Proposal, meta CommitMeta) error
}

// TrackingSnapshot wraps a Snapshot and records the version of every key
// read through it, building the read-set for conflict detection. Range
// reads are not tracked; ledger operations that mutate state only ever
// Get the keys they depend on, matching the conflict granularity of the
// underlying ledger runtime.
type TrackingSnapshot struct {
	snap  Snapshot
	mu    sync.Mutex
	reads map[string]Version
}

// Track wraps snap with read-set recording.
func Track(snap Snapshot) *TrackingSnapshot {
	return &TrackingSnapshot{snap: snap, reads: make(map[string]Version)}
}

func (t *TrackingSnapshot) Get(ctx context.Context, key string) ([]byte, Version, error) {
	value, version, err := t.snap.Get(ctx, key)
	t.record(key, version)
	return value, version, err
}

func (t *TrackingSnapshot) List(ctx context.Context, prefix string) ([]KV, error) {
	return t.snap.List(ctx, prefix)
}

func (t *TrackingSnapshot) History(ctx context.Context, key string) ([]VersionedValue, error) {
	return t.snap.History(ctx, key)
}

// Reads returns the recorded read-set. Absent keys are recorded at version 0
// so that a concurrent create of the same key is detected as a conflict.
func (t *TrackingSnapshot) Reads() map[string]Version {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Version, len(t.reads))
	for k, v := range t.reads {
		out[k] = v
	}
	return out
}

func (t *TrackingSnapshot) record(key string, version Version) {
	t.mu.Lock()
	t.reads[key] = version
	t.mu.Unlock()
}

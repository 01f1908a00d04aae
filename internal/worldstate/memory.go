package worldstate

import (
	"context"
	"sort"
	"strings"
	"sync"

	"eduledger/internal/sentinel"
)

// MemoryStore keeps the world state in memory. It backs unit tests and
// single-node development deployments; production nodes use PostgresStore.
type MemoryStore struct {
	mu      sync.RWMutex
	current map[string]VersionedValue
	history map[string][]VersionedValue
}

// NewMemory constructs an empty in-memory world state store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		current: make(map[string]VersionedValue),
		history: make(map[string][]VersionedValue),
	}
}

// Snapshot returns a point-in-time view. The snapshot copies the current
// version table so later commits never leak into an in-flight operation.
func (s *MemoryStore) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := make(map[string]VersionedValue, len(s.current))
	for k, v := range s.current {
		current[k] = v
	}
	history := make(map[string][]VersionedValue, len(s.history))
	for k, versions := range s.history {
		history[k] = versions[:len(versions):len(versions)]
	}
	return &memorySnapshot{current: current, history: history}, nil
}

// Commit applies the proposal atomically. Every key in the read-set must
// still be at its observed version, otherwise sentinel.ErrConflict is
// returned and nothing is written.
func (s *MemoryStore) Commit(_ context.Context, p Proposal, meta CommitMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, observed := range p.Reads {
		var cur Version
		if vv, ok := s.current[key]; ok {
			cur = vv.Version
		}
		if cur != observed {
			return sentinel.ErrConflict
		}
	}

	for _, w := range p.Writes {
		var next Version = 1
		if vv, ok := s.current[w.Key]; ok {
			next = vv.Version + 1
		}
		committed := VersionedValue{
			Value:       w.Value,
			Version:     next,
			TxID:        meta.TxID,
			CommittedAt: meta.Time,
			Deleted:     w.Delete,
		}
		if w.Delete {
			delete(s.current, w.Key)
		} else {
			s.current[w.Key] = committed
		}
		s.history[w.Key] = append(s.history[w.Key], committed)
	}
	return nil
}

type memorySnapshot struct {
	current map[string]VersionedValue
	history map[string][]VersionedValue
}

func (m *memorySnapshot) Get(_ context.Context, key string) ([]byte, Version, error) {
	vv, ok := m.current[key]
	if !ok {
		return nil, 0, sentinel.ErrNotFound
	}
	return vv.Value, vv.Version, nil
}

func (m *memorySnapshot) List(_ context.Context, prefix string) ([]KV, error) {
	var out []KV
	for key, vv := range m.current {
		if strings.HasPrefix(key, prefix) {
			out = append(out, KV{Key: key, Value: vv.Value, Version: vv.Version})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memorySnapshot) History(_ context.Context, key string) ([]VersionedValue, error) {
	versions, ok := m.history[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return versions, nil
}

package runlog

import (
	"context"
	"sync"
)

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu   sync.Mutex
	recs []Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for _, r := range m.recs {
		if q.match(r) {
			res = append(res, r)
		}
	}
	return q.limit(res), nil
}

func (m *MemoryStore) Close() error { return nil }

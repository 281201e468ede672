package usage

import (
	"context"
	"sync"
)

// Store is the read interface of the usage record store. Result ordering is
// unspecified; callers must aggregate.
type Store interface {
	QueryUsage(ctx context.Context, connectionIDs []string, window Window, filters Filters) ([]Record, error)
}

// MemoryStore is an in-memory Store holding immutable records.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates a MemoryStore seeded with the given records.
func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{}
	s.Add(records...)
	return s
}

// Add appends records. Records are never modified after insertion.
func (s *MemoryStore) Add(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// QueryUsage returns copies of the records belonging to the given connections
// that fall inside the window and match filters.
func (s *MemoryStore) QueryUsage(ctx context.Context, connectionIDs []string, window Window, filters Filters) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(connectionIDs))
	for _, id := range connectionIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if _, ok := wanted[r.ConnectionID]; !ok {
			continue
		}
		if !window.Contains(r) || !filters.Matches(r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

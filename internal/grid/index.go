package grid

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the read interface of the grid metric store. It returns the most
// recent applicable reading at or before the given time, or nil when none exists.
type Store interface {
	QueryGridMetric(ctx context.Context, key Key, family Family, atOrBefore time.Time) (*Metric, error)
}

type seriesKey struct {
	key    Key
	family Family
}

// Index is a time-indexed in-memory Store. Readings are kept sorted by
// timestamp per region, provider and family; lookups never interpolate.
type Index struct {
	mu     sync.RWMutex
	series map[seriesKey][]Metric
}

// NewIndex builds an Index from readings.
func NewIndex(metrics ...Metric) *Index {
	idx := &Index{series: make(map[seriesKey][]Metric)}
	idx.Add(metrics...)
	return idx
}

// Add inserts readings, keeping each series sorted by timestamp.
func (idx *Index) Add(metrics ...Metric) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	touched := make(map[seriesKey]struct{})
	for _, m := range metrics {
		sk := seriesKey{key: m.Key(), family: m.Family}
		idx.series[sk] = append(idx.series[sk], m)
		touched[sk] = struct{}{}
	}
	for sk := range touched {
		s := idx.series[sk]
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].Timestamp.Before(s[j].Timestamp)
		})
	}
}

// LatestAtOrBefore returns the newest reading with Timestamp <= t. Static
// families return their newest reading regardless of t.
func (idx *Index) LatestAtOrBefore(key Key, family Family, t time.Time) (Metric, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s := idx.series[seriesKey{key: key, family: family}]
	if len(s) == 0 {
		return Metric{}, false
	}
	if family.Static() {
		return s[len(s)-1], true
	}

	// First reading strictly after t; the one before it is the answer.
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Timestamp.After(t)
	})
	if i == 0 {
		return Metric{}, false
	}
	return s[i-1], true
}

// Len returns the number of stored readings.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, s := range idx.series {
		n += len(s)
	}
	return n
}

// QueryGridMetric implements Store.
func (idx *Index) QueryGridMetric(ctx context.Context, key Key, family Family, atOrBefore time.Time) (*Metric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := idx.LatestAtOrBefore(key, family, atOrBefore)
	if !ok {
		return nil, nil
	}
	return &m, nil
}

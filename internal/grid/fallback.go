package grid

import (
	"context"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
)

// referenceFallback decorates a Store with the built-in regional carbon
// intensity table.
type referenceFallback struct {
	next Store
}

// WithReferenceFallback wraps a Store so that missing CarbonIntensity readings
// for the provider's regions listed in carbon.RegionalCarbonIntensity are
// answered with an estimated reference reading. Other families and unknown regions pass through
// unchanged, so they still surface as missing.
func WithReferenceFallback(next Store) Store {
	return &referenceFallback{next: next}
}

func (f *referenceFallback) QueryGridMetric(ctx context.Context, key Key, family Family, atOrBefore time.Time) (*Metric, error) {
	m, err := f.next.QueryGridMetric(ctx, key, family, atOrBefore)
	if err != nil || m != nil || family != FamilyCarbonIntensity {
		return m, err
	}

	v, ok := carbon.ReferenceCarbonIntensity(string(key.Provider), key.Region)
	if !ok {
		return nil, nil
	}
	return &Metric{
		Region:      key.Region,
		Provider:    key.Provider,
		Family:      FamilyCarbonIntensity,
		Timestamp:   atOrBefore,
		Value:       v,
		IsEstimated: true,
	}, nil
}

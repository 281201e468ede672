package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"golang.org/x/sync/errgroup"
)

// MixResult is the weighted electricity mix across regions.
type MixResult struct {
	// Mix holds the weighted share per source, normalized to sum 100.
	Mix grid.Mix

	TotalWeight float64
	Basis       Basis
	NoData      bool

	// Regions holds each region's normalized mix, keyed like Result.Breakdown.
	Regions map[string]grid.Mix

	// Missing lists regions without a mix reading; they count as 100% unknown.
	Missing []grid.Key
}

// WeightedMix computes the weighted electricity mix across groups using the
// latest ElectricityMix reading at or before t for each region.
//
// Each region's mix is first normalized to 0-100, so inputs may be fractions
// or raw magnitudes. The weighted shares are then renormalized so the result
// always sums to 100 when there is usage.
func (a *Aggregator) WeightedMix(ctx context.Context, groups []Group, store grid.Store, t time.Time) (MixResult, error) {
	weights, basis := Weights(groups)

	mixes := make([]*grid.Metric, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i := range groups {
		eg.Go(func() error {
			m, err := store.QueryGridMetric(egCtx, groups[i].Key, grid.FamilyElectricityMix, t)
			if err != nil {
				return fmt.Errorf("query %s for %s: %w", grid.FamilyElectricityMix, groups[i].Key, err)
			}
			mixes[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return MixResult{}, err
	}

	res := MixResult{Basis: basis, Mix: grid.Mix{}, Regions: make(map[string]grid.Mix, len(groups))}
	keys := make([]grid.Key, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	labels := Labels(keys)

	weighted := grid.Mix{}
	for i, g := range groups {
		var normalized grid.Mix
		if mixes[i] == nil {
			normalized = grid.Mix{}.Normalize()
			res.Missing = append(res.Missing, g.Key)
		} else {
			normalized = mixes[i].Mix.Normalize()
		}
		res.Regions[labels[i]] = normalized

		w := weights[i]
		res.TotalWeight += w
		for src, share := range normalized {
			weighted[src] += w * share
		}
	}

	if res.TotalWeight == 0 {
		res.NoData = true
		for _, src := range grid.Sources {
			res.Mix[src] = 0
		}
		return res, nil
	}

	for _, src := range grid.Sources {
		res.Mix[src] = weighted[src] / res.TotalWeight
	}
	// Guard against drift so the shares sum to exactly 100.
	res.Mix = res.Mix.Normalize()
	for _, src := range grid.Sources {
		if _, ok := res.Mix[src]; !ok {
			res.Mix[src] = 0
		}
	}
	return res, nil
}

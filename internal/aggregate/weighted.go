package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds concurrent reference lookups per aggregation.
const DefaultConcurrency = 8

// Reference is a resolved per-region reference value.
type Reference struct {
	Value     float64
	Found     bool
	Estimated bool
}

// Selector resolves the reference value for a region and provider.
type Selector func(ctx context.Context, key grid.Key) (Reference, error)

// GridSelector returns a Selector reading the latest scalar metric of family
// at or before t from store.
func GridSelector(store grid.Store, family grid.Family, t time.Time) Selector {
	return func(ctx context.Context, key grid.Key) (Reference, error) {
		m, err := store.QueryGridMetric(ctx, key, family, t)
		if err != nil {
			return Reference{}, fmt.Errorf("query %s for %s: %w", family, key, err)
		}
		if m == nil {
			return Reference{}, nil
		}
		return Reference{Value: m.Value, Found: true, Estimated: m.IsEstimated}, nil
	}
}

// RegionValue is one region's contribution to a weighted result.
type RegionValue struct {
	Key       grid.Key
	Weight    float64
	Value     float64
	Missing   bool // reference not found, Value is the fallback
	Estimated bool // reference came from a built-in table
}

// Result is the outcome of a weighted aggregation.
type Result struct {
	// Value is Σ(weight × value) / Σ(weight), or 0 when NoData.
	Value float64

	// TotalWeight is Σ(weight) in Basis units.
	TotalWeight float64

	Basis Basis

	// NoData is true when the total weight is 0. Value must not be read as a
	// genuine zero in that case.
	NoData bool

	// Regions holds every region sorted by region then provider.
	Regions []RegionValue

	// Top holds at most TopN regions by descending value, ties broken by
	// region code ascending.
	Top []RegionValue
}

// Missing returns the keys whose reference value fell back to the default.
func (r Result) Missing() []grid.Key {
	var keys []grid.Key
	for _, rv := range r.Regions {
		if rv.Missing {
			keys = append(keys, rv.Key)
		}
	}
	return keys
}

// Estimated reports whether any region used an estimated reference.
func (r Result) Estimated() bool {
	for _, rv := range r.Regions {
		if rv.Estimated {
			return true
		}
	}
	return false
}

// Breakdown returns region code → value for audit traces. Keys carry the
// provider when a region code appears for several providers.
func (r Result) Breakdown() map[string]float64 {
	keys := make([]grid.Key, len(r.Regions))
	for i, rv := range r.Regions {
		keys[i] = rv.Key
	}
	labels := Labels(keys)
	out := make(map[string]float64, len(r.Regions))
	for i, rv := range r.Regions {
		out[labels[i]] = rv.Value
	}
	return out
}

// Labels returns a display label per key: the region code, or provider/region
// when the same code appears for more than one provider.
func Labels(keys []grid.Key) []string {
	providers := make(map[string]map[usage.Provider]struct{}, len(keys))
	for _, k := range keys {
		if providers[k.Region] == nil {
			providers[k.Region] = make(map[usage.Provider]struct{})
		}
		providers[k.Region][k.Provider] = struct{}{}
	}
	labels := make([]string, len(keys))
	for i, k := range keys {
		if len(providers[k.Region]) > 1 {
			labels[i] = k.String()
		} else {
			labels[i] = k.Region
		}
	}
	return labels
}

// Options tunes a weighted aggregation.
type Options struct {
	// Fallback is used as the value of regions without a reference reading.
	Fallback float64

	// TopN limits Result.Top. Zero means carbon.TopRegionsLimit.
	TopN int
}

// Aggregator computes weighted regional averages.
type Aggregator struct {
	concurrency int
}

// NewAggregator creates an Aggregator issuing at most concurrency parallel
// reference lookups. Non-positive values use DefaultConcurrency.
func NewAggregator(concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Aggregator{concurrency: concurrency}
}

// Weighted computes the weighted average of the selector's reference value
// across groups.
//
// The calculation:
//  1. weight_i = energy of group i (emissions when no group has energy)
//  2. value_i = selector(region_i), or opts.Fallback when missing
//  3. result = Σ(weight_i × value_i) / Σ(weight_i), 0 with NoData when Σ(weight_i) = 0
func (a *Aggregator) Weighted(ctx context.Context, groups []Group, sel Selector, opts Options) (Result, error) {
	weights, basis := Weights(groups)

	refs, err := a.Resolve(ctx, groups, sel)
	if err != nil {
		return Result{}, err
	}

	res := Result{Basis: basis, Regions: make([]RegionValue, len(groups))}
	var weighted float64
	for i, g := range groups {
		rv := RegionValue{Key: g.Key, Weight: weights[i], Value: refs[i].Value, Estimated: refs[i].Estimated}
		if !refs[i].Found {
			rv.Value = opts.Fallback
			rv.Missing = true
		}
		res.Regions[i] = rv
		res.TotalWeight += rv.Weight
		weighted += rv.Weight * rv.Value
	}

	if res.TotalWeight > 0 {
		res.Value = weighted / res.TotalWeight
	} else {
		res.NoData = true
	}

	res.Top = TopRegions(res.Regions, opts.TopN)
	return res, nil
}

// Resolve runs the selector for every group concurrently. Results are indexed
// like groups so ordering does not depend on completion order.
func (a *Aggregator) Resolve(ctx context.Context, groups []Group, sel Selector) ([]Reference, error) {
	refs := make([]Reference, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i := range groups {
		eg.Go(func() error {
			ref, err := sel(egCtx, groups[i].Key)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// TopRegions returns at most n regions sorted by descending value, ties broken
// by region ascending then provider. Zero-weight regions are excluded.
func TopRegions(regions []RegionValue, n int) []RegionValue {
	if n <= 0 {
		n = carbon.TopRegionsLimit
	}
	top := make([]RegionValue, 0, len(regions))
	for _, rv := range regions {
		if rv.Weight > 0 {
			top = append(top, rv)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Value != top[j].Value {
			return top[i].Value > top[j].Value
		}
		return lessKey(top[i].Key, top[j].Key)
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}

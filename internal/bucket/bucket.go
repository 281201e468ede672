// Package bucket classifies continuous reference values into ordered
// low/medium/high tiers and computes weight-proportional tier breakdowns.
package bucket

import (
	"fmt"
	"sort"

	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
)

// Tier is an ordered risk or performance category.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tiers lists tiers in ascending order.
var Tiers = []Tier{TierLow, TierMedium, TierHigh}

// Thresholds are the explicit tier boundaries for one metric.
//
//	value <  Low          → low  (value <= Low when LowInclusive)
//	Low <= value <= High  → medium
//	value >  High         → high
type Thresholds struct {
	Low          float64
	High         float64
	LowInclusive bool
}

// CarbonIntensityThresholds are the default grid carbon intensity tiers in
// gCO2eq/kWh: low < 150, high > 400.
func CarbonIntensityThresholds() Thresholds {
	return Thresholds{Low: carbon.LowCarbonIntensityThreshold, High: carbon.HighCarbonIntensityThreshold}
}

// WaterStressThresholds are the default water stress tiers on the 0-5 scale:
// low <= 1, high > 3.
func WaterStressThresholds() Thresholds {
	return Thresholds{Low: carbon.LowWaterStressThreshold, High: carbon.HighWaterStressThreshold, LowInclusive: true}
}

// Validate rejects inverted boundaries.
func (t Thresholds) Validate() error {
	if t.Low > t.High {
		return fmt.Errorf("low threshold %v is above high threshold %v", t.Low, t.High)
	}
	return nil
}

// Classify places value into a tier.
func (t Thresholds) Classify(value float64) Tier {
	switch {
	case value < t.Low, t.LowInclusive && value == t.Low:
		return TierLow
	case value > t.High:
		return TierHigh
	default:
		return TierMedium
	}
}

// Classify places value into a tier using strict low and high boundaries.
func Classify(value, low, high float64) Tier {
	return Thresholds{Low: low, High: high}.Classify(value)
}

// Item is one weighted region to classify.
type Item struct {
	Label  string
	Weight float64
	Value  float64
	Found  bool // false when the region has no reference reading
}

// Share is the weight and percentage of one tier.
type Share struct {
	Weight  float64
	Percent float64
}

// Breakdown is the proportional tier distribution of a set of items.
type Breakdown struct {
	Shares      map[Tier]Share
	TotalWeight float64

	// Regions maps each item label to its tier.
	Regions map[string]Tier

	// Fallbacks lists labels without reference data, sorted. They are placed in
	// the high tier so missing coverage never undercounts risk.
	Fallbacks []string
}

// Percent returns the percentage of total weight in tier.
func (b Breakdown) Percent(t Tier) float64 {
	return b.Shares[t].Percent
}

// Empty reports whether there was no weight to distribute.
func (b Breakdown) Empty() bool {
	return b.TotalWeight == 0
}

// Bucket classifies every item and sums weights per tier. Tier percentages
// sum to 100 when total weight is positive and are all 0 otherwise.
// Items with non-positive weight are classified but carry no weight.
func Bucket(items []Item, th Thresholds) Breakdown {
	b := Breakdown{
		Shares:  make(map[Tier]Share, len(Tiers)),
		Regions: make(map[string]Tier, len(items)),
	}
	weights := make(map[Tier]float64, len(Tiers))

	for _, it := range items {
		tier := TierHigh
		if it.Found {
			tier = th.Classify(it.Value)
		} else {
			b.Fallbacks = append(b.Fallbacks, it.Label)
		}
		b.Regions[it.Label] = tier

		if it.Weight > 0 {
			weights[tier] += it.Weight
			b.TotalWeight += it.Weight
		}
	}
	sort.Strings(b.Fallbacks)

	for _, tier := range Tiers {
		s := Share{Weight: weights[tier]}
		if b.TotalWeight > 0 {
			s.Percent = weights[tier] / b.TotalWeight * 100
		}
		b.Shares[tier] = s
	}
	return b
}

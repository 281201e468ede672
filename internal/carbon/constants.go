// Package carbon centralises the environmental reference tables used by the
// KPI engine: regional carbon intensity, water use effectiveness, tier
// thresholds and the AI accelerator allow-list.
package carbon

const (
	// DefaultWUE is the water use effectiveness applied when a region has no
	// published WUE reading, in liters per kWh.
	// Source: industry average datacenter WUE (The Green Grid), deliberately
	// higher than the hyperscaler disclosures so missing data is never flattering.
	DefaultWUE = 1.8

	// LowCarbonIntensityThreshold is the upper bound (exclusive) of the low
	// carbon tier in gCO2eq/kWh.
	LowCarbonIntensityThreshold = 150.0

	// HighCarbonIntensityThreshold is the lower bound (exclusive) of the high
	// carbon tier in gCO2eq/kWh.
	HighCarbonIntensityThreshold = 400.0

	// LowWaterStressThreshold is the upper bound (inclusive) of the low water
	// stress tier on the 0-5 WRI Aqueduct scale.
	LowWaterStressThreshold = 1.0

	// HighWaterStressThreshold is the lower bound (exclusive) of the high water
	// stress tier on the 0-5 WRI Aqueduct scale.
	HighWaterStressThreshold = 3.0

	// RevenueDivisor converts annual revenue into millions for GHG intensity.
	RevenueDivisor = 1_000_000.0

	// TopRegionsLimit is the default number of regions reported as top contributors.
	TopRegionsLimit = 5

	// MinTrendPoints is the minimum number of non-zero months needed to fit a trend.
	MinTrendPoints = 3
)

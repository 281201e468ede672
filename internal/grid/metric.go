// Package grid models timestamped environmental reference readings per cloud
// region and provider, and the "latest reading at or before" lookup the KPI
// engine uses to join them to usage.
package grid

import (
	"fmt"
	"strings"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

// Family is a metric family of grid reference data.
type Family string

const (
	FamilyCarbonIntensity Family = "CARBON_INTENSITY"  // gCO2eq/kWh
	FamilyElectricityMix  Family = "ELECTRICITY_MIX"   // shares per energy source
	FamilyRenewableShare  Family = "RENEWABLE_SHARE"   // 0-100
	FamilyCarbonFreeShare Family = "CARBON_FREE_SHARE" // 0-100
	FamilyWUE             Family = "WUE"               // liters/kWh, static
	FamilyWaterStress     Family = "WATER_STRESS"      // 0-5 index
)

// Static reports whether the family is a static reference rather than a time
// series. Static families ignore the at-or-before bound.
func (f Family) Static() bool {
	return f == FamilyWUE
}

// ParseFamily normalises a family name.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FamilyCarbonIntensity, FamilyElectricityMix, FamilyRenewableShare,
		FamilyCarbonFreeShare, FamilyWUE, FamilyWaterStress:
		return f, nil
	}
	return "", fmt.Errorf("unknown grid metric family %q", s)
}

// EnergySource is a generation source in an electricity mix.
type EnergySource string

const (
	SourceNuclear    EnergySource = "nuclear"
	SourceCoal       EnergySource = "coal"
	SourceGas        EnergySource = "gas"
	SourceOil        EnergySource = "oil"
	SourceHydro      EnergySource = "hydro"
	SourceWind       EnergySource = "wind"
	SourceSolar      EnergySource = "solar"
	SourceBiomass    EnergySource = "biomass"
	SourceGeothermal EnergySource = "geothermal"
	SourceUnknown    EnergySource = "unknown"
)

// Sources lists every energy source in reporting order.
var Sources = []EnergySource{
	SourceNuclear, SourceCoal, SourceGas, SourceOil, SourceHydro,
	SourceWind, SourceSolar, SourceBiomass, SourceGeothermal, SourceUnknown,
}

// RenewableSources is the default source group for the electricity mix KPI.
var RenewableSources = []EnergySource{
	SourceHydro, SourceWind, SourceSolar, SourceBiomass, SourceGeothermal,
}

// ParseEnergySource normalises a source name.
func ParseEnergySource(s string) (EnergySource, error) {
	src := EnergySource(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sources {
		if src == known {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown energy source %q", s)
}

// Mix holds shares per energy source. Shares may be fractions (0-1), percentages
// or raw generation magnitudes; Normalize converts them to percentages.
type Mix map[EnergySource]float64

// Total returns the sum of non-negative shares.
func (m Mix) Total() float64 {
	var total float64
	for _, v := range m {
		if v > 0 {
			total += v
		}
	}
	return total
}

// Normalize returns the mix scaled so its shares sum to 100. An empty or
// all-zero mix normalizes to 100% unknown.
func (m Mix) Normalize() Mix {
	total := m.Total()
	out := make(Mix, len(Sources))
	if total == 0 {
		out[SourceUnknown] = 100
		return out
	}
	for src, v := range m {
		if v > 0 {
			out[src] = v / total * 100
		}
	}
	return out
}

// Share returns the summed share of the given sources.
func (m Mix) Share(sources []EnergySource) float64 {
	var total float64
	for _, src := range sources {
		total += m[src]
	}
	return total
}

// Key identifies a region and provider pair.
type Key struct {
	Region   string
	Provider usage.Provider
}

// String renders the key as "provider/region".
func (k Key) String() string {
	return string(k.Provider) + "/" + k.Region
}

// Metric is one timestamped reading. Value carries scalar families; Mix
// carries ElectricityMix readings.
type Metric struct {
	Region      string
	Provider    usage.Provider
	Family      Family
	Timestamp   time.Time
	Value       float64
	Mix         Mix
	IsEstimated bool
}

// Key returns the region/provider key of the reading.
func (m Metric) Key() Key {
	return Key{Region: m.Region, Provider: m.Provider}
}

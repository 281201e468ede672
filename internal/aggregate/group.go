// Package aggregate joins usage to grid reference data and computes energy- or
// emissions-weighted regional averages.
package aggregate

import (
	"sort"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

// Group is the usage of one region and provider summed over a window.
type Group struct {
	Key          grid.Key
	EnergyKWh    float64
	CO2eTons     float64
	HasEnergy    bool
	HasEmissions bool
	Records      int
}

// GroupByRegion sums energy and emissions per region and provider. Records
// without energy still contribute their emissions. Groups are returned sorted
// by region then provider.
func GroupByRegion(records []usage.Record) []Group {
	byKey := make(map[grid.Key]*Group)
	for _, r := range records {
		k := grid.Key{Region: r.Region, Provider: r.Provider}
		g, ok := byKey[k]
		if !ok {
			g = &Group{Key: k}
			byKey[k] = g
		}
		g.Records++
		if r.EnergyKWh != nil {
			g.EnergyKWh += *r.EnergyKWh
			g.HasEnergy = true
		}
		if r.CO2eTons != nil {
			g.CO2eTons += *r.CO2eTons
			g.HasEmissions = true
		}
	}

	groups := make([]Group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return lessKey(groups[i].Key, groups[j].Key)
	})
	return groups
}

func lessKey(a, b grid.Key) bool {
	if a.Region != b.Region {
		return a.Region < b.Region
	}
	return a.Provider < b.Provider
}

// Basis names the weight used for a weighted average.
type Basis string

const (
	BasisEnergy    Basis = "energy_kwh"
	BasisEmissions Basis = "co2e_tons"
)

// Weights returns the weight of every group and the basis used. Energy is
// preferred; when no group has any energy the emissions totals are used for
// every group so a single run never mixes units.
func Weights(groups []Group) ([]float64, Basis) {
	weights := make([]float64, len(groups))
	var totalEnergy float64
	for i, g := range groups {
		if g.EnergyKWh > 0 {
			weights[i] = g.EnergyKWh
			totalEnergy += g.EnergyKWh
		}
	}
	if totalEnergy > 0 {
		return weights, BasisEnergy
	}
	for i, g := range groups {
		weights[i] = 0
		if g.CO2eTons > 0 {
			weights[i] = g.CO2eTons
		}
	}
	return weights, BasisEmissions
}

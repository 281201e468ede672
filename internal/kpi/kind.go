// Package kpi evaluates sustainability KPI definitions against usage and grid
// data, producing auditable results with a pass/fail status.
package kpi

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind enumerates the supported KPI formulas.
type Kind int

const (
	KindUnknown Kind = iota
	KindCO2Emissions
	KindEnergyConsumption
	KindWaterWithdrawal
	KindAIComputeHours
	KindGHGIntensity
	KindElectricityMix
	KindRenewableShare
	KindCarbonFreeShare
	KindLowCarbonRegionShare
	KindWaterStressedRegionShare
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{
	KindCO2Emissions,
	KindEnergyConsumption,
	KindWaterWithdrawal,
	KindAIComputeHours,
	KindGHGIntensity,
	KindElectricityMix,
	KindRenewableShare,
	KindCarbonFreeShare,
	KindLowCarbonRegionShare,
	KindWaterStressedRegionShare,
}

var kindNames = map[Kind]string{
	KindCO2Emissions:             "CO2_EMISSIONS",
	KindEnergyConsumption:        "ENERGY_CONSUMPTION",
	KindWaterWithdrawal:          "WATER_WITHDRAWAL",
	KindAIComputeHours:           "AI_COMPUTE_HOURS",
	KindGHGIntensity:             "GHG_INTENSITY",
	KindElectricityMix:           "ELECTRICITY_MIX",
	KindRenewableShare:           "RENEWABLE_ENERGY_PERCENTAGE",
	KindCarbonFreeShare:          "CARBON_FREE_ENERGY_PERCENTAGE",
	KindLowCarbonRegionShare:     "LOW_CARBON_REGION_PERCENTAGE",
	KindWaterStressedRegionShare: "WATER_STRESSED_REGION_PERCENTAGE",
}

var kindUnits = map[Kind]string{
	KindCO2Emissions:             "tCO2e",
	KindEnergyConsumption:        "kWh",
	KindWaterWithdrawal:          "L",
	KindAIComputeHours:           "h",
	KindGHGIntensity:             "tCO2e/employee",
	KindElectricityMix:           "%",
	KindRenewableShare:           "%",
	KindCarbonFreeShare:          "%",
	KindLowCarbonRegionShare:     "%",
	KindWaterStressedRegionShare: "%",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Unit returns the unit of the KPI value. GHG intensity depends on the basis,
// see Definition.Unit.
func (k Kind) Unit() string {
	return kindUnits[k]
}

// ParseKind accepts the canonical name case-insensitively.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return KindUnknown, &Error{Kind: ErrUnsupportedKPI.Kind, Message: fmt.Sprintf("unsupported KPI type %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unsupported KPI kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *Kind) UnmarshalYAML(n *yaml.Node) error {
	return k.UnmarshalText([]byte(n.Value))
}

// Direction says whether lower or higher values are better.
type Direction string

const (
	LowerIsBetter  Direction = "LOWER_IS_BETTER"
	HigherIsBetter Direction = "HIGHER_IS_BETTER"
)

// ParseDirection accepts the canonical names case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case LowerIsBetter, HigherIsBetter:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Status is the outcome of comparing actual against target.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// DetermineStatus applies the pass rule: LowerIsBetter passes when
// actual <= target, HigherIsBetter passes when actual >= target.
func DetermineStatus(d Direction, actual, target float64) Status {
	switch d {
	case LowerIsBetter:
		if actual <= target {
			return StatusPassed
		}
	case HigherIsBetter:
		if actual >= target {
			return StatusPassed
		}
	}
	return StatusFailed
}

func comparator(d Direction) string {
	if d == HigherIsBetter {
		return ">="
	}
	return "<="
}

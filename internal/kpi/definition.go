package kpi

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"gopkg.in/yaml.v3"
)

// IntensityBasis selects the denominator of the GHG intensity KPI.
type IntensityBasis string

const (
	PerEmployee       IntensityBasis = "PER_EMPLOYEE"
	PerMillionRevenue IntensityBasis = "PER_MILLION_REVENUE"
)

// Definition is a tracked KPI configuration.
type Definition struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name,omitempty" json:"name,omitempty"`
	Kind      Kind      `yaml:"type" json:"type"`
	Target    float64   `yaml:"target" json:"target"`
	Direction Direction `yaml:"direction,omitempty" json:"direction,omitempty"`

	// MixSources is the source group whose share is the value of an
	// electricity mix KPI. Empty means the renewable group.
	MixSources []grid.EnergySource `yaml:"mix_sources,omitempty" json:"mix_sources,omitempty"`

	// IntensityBasis applies to GHG intensity only. Empty means PerEmployee.
	IntensityBasis IntensityBasis `yaml:"intensity_basis,omitempty" json:"intensity_basis,omitempty"`

	// Start and End are the optional observation window.
	Start *time.Time `yaml:"start,omitempty" json:"start,omitempty"`
	End   *time.Time `yaml:"end,omitempty" json:"end,omitempty"`
}

// DefaultDirection returns the conventional direction for a kind: share KPIs
// improve upwards, quantities downwards.
func DefaultDirection(k Kind) Direction {
	switch k {
	case KindRenewableShare, KindCarbonFreeShare, KindLowCarbonRegionShare, KindElectricityMix:
		return HigherIsBetter
	default:
		return LowerIsBetter
	}
}

// Unit returns the unit of the evaluated value.
func (d Definition) Unit() string {
	if d.Kind == KindGHGIntensity && d.basis() == PerMillionRevenue {
		return "tCO2e/$M revenue"
	}
	return d.Kind.Unit()
}

// ObservationWindow returns the definition's own window when both bounds are set.
func (d Definition) ObservationWindow() (usage.Window, bool) {
	if d.Start == nil || d.End == nil {
		return usage.Window{}, false
	}
	return usage.Window{Start: *d.Start, End: *d.End}, true
}

func (d Definition) mixSources() []grid.EnergySource {
	if len(d.MixSources) == 0 {
		return grid.RenewableSources
	}
	return d.MixSources
}

func (d Definition) basis() IntensityBasis {
	if d.IntensityBasis == "" {
		return PerEmployee
	}
	return d.IntensityBasis
}

// Validate checks the definition is evaluable.
func (d Definition) Validate() error {
	if _, ok := kindNames[d.Kind]; !ok {
		return newError(ErrUnsupportedKPI, "KPI %q has unsupported type", d.ID)
	}
	if _, err := ParseDirection(string(d.Direction)); err != nil {
		return fmt.Errorf("KPI %q: %w", d.ID, err)
	}
	for _, s := range d.MixSources {
		if _, err := grid.ParseEnergySource(string(s)); err != nil {
			return fmt.Errorf("KPI %q: %w", d.ID, err)
		}
	}
	switch d.IntensityBasis {
	case "", PerEmployee, PerMillionRevenue:
	default:
		return fmt.Errorf("KPI %q: unknown intensity basis %q", d.ID, d.IntensityBasis)
	}
	if w, ok := d.ObservationWindow(); ok && !w.Valid() {
		return newError(ErrInvalidWindow, "KPI %q window %s starts after it ends", d.ID, w)
	}
	return nil
}

// normalize fills defaulted fields and canonicalises case.
func (d *Definition) normalize() error {
	if d.Direction == "" {
		d.Direction = DefaultDirection(d.Kind)
	} else {
		dir, err := ParseDirection(string(d.Direction))
		if err != nil {
			return fmt.Errorf("KPI %q: %w", d.ID, err)
		}
		d.Direction = dir
	}
	for i, s := range d.MixSources {
		src, err := grid.ParseEnergySource(string(s))
		if err != nil {
			return fmt.Errorf("KPI %q: %w", d.ID, err)
		}
		d.MixSources[i] = src
	}
	slices.Sort(d.MixSources)
	d.MixSources = slices.Compact(d.MixSources)
	return nil
}

// Normalized returns a validated copy of d with defaults filled in.
func (d Definition) Normalized() (Definition, error) {
	d.MixSources = slices.Clone(d.MixSources)
	if err := d.normalize(); err != nil {
		return Definition{}, wrapError(ErrUnsupportedKPI, err, "KPI %q is invalid", d.ID)
	}
	if err := d.Validate(); err != nil {
		return Definition{}, err
	}
	return d, nil
}

type definitionFile struct {
	KPIs []Definition `yaml:"kpis"`
}

// LoadDefinitions decodes a YAML document of the form
//
//	kpis:
//	  - id: renewable-2025
//	    type: RENEWABLE_ENERGY_PERCENTAGE
//	    target: 60
//	    direction: HIGHER_IS_BETTER
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	var f definitionFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode KPI definitions: %w", err)
	}
	for i := range f.KPIs {
		if err := f.KPIs[i].normalize(); err != nil {
			return nil, err
		}
		if err := f.KPIs[i].Validate(); err != nil {
			return nil, err
		}
	}
	return f.KPIs, nil
}

package kpi

import (
	"fmt"
	"sort"

	"github.com/Deepak-Sangle/greenratchet/internal/aggregate"
	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
)

// Input is one named numeric value consumed by a formula.
type Input struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// RegionShare is one entry of a top-regions report.
type RegionShare struct {
	Region   string  `json:"region"`
	Provider string  `json:"provider"`
	Value    float64 `json:"value"`
	Weight   float64 `json:"weight"`
}

// CalculationDetails is the audit trace of an evaluation: formula, inputs in
// consumption order, reproducible steps, and sub-component breakdowns.
type CalculationDetails struct {
	Formula     string                        `json:"formula"`
	Inputs      []Input                       `json:"inputs"`
	Steps       []string                      `json:"steps"`
	Breakdowns  map[string]map[string]float64 `json:"breakdowns,omitempty"`
	RegionTiers map[string]string             `json:"region_tiers,omitempty"`
	TopRegions  []RegionShare                 `json:"top_regions,omitempty"`
}

// Input returns the named input.
func (d CalculationDetails) Input(name string) (Input, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// trace accumulates CalculationDetails while a calculator runs.
type trace struct {
	d CalculationDetails
}

func newTrace(formula string) *trace {
	return &trace{d: CalculationDetails{Formula: formula}}
}

func (t *trace) input(name string, value float64, unit string) {
	t.d.Inputs = append(t.d.Inputs, Input{Name: name, Value: value, Unit: unit})
}

func (t *trace) step(format string, args ...any) {
	t.d.Steps = append(t.d.Steps, fmt.Sprintf(format, args...))
}

func (t *trace) breakdown(name string, values map[string]float64) {
	if len(values) == 0 {
		return
	}
	if t.d.Breakdowns == nil {
		t.d.Breakdowns = make(map[string]map[string]float64)
	}
	t.d.Breakdowns[name] = values
}

func (t *trace) top(regions []aggregate.RegionValue) {
	for _, rv := range regions {
		t.d.TopRegions = append(t.d.TopRegions, RegionShare{
			Region:   rv.Key.Region,
			Provider: string(rv.Key.Provider),
			Value:    carbon.Round2(rv.Value),
			Weight:   rv.Weight,
		})
	}
}

// weightedSteps records the per-region products of a weighted average in
// region order so an auditor can redo the sum by hand.
func (t *trace) weightedSteps(res aggregate.Result, unit string) {
	for _, rv := range res.Regions {
		note := ""
		switch {
		case rv.Missing:
			note = " (no reading, default used)"
		case rv.Estimated:
			note = " (estimated)"
		}
		t.step("%s: weight %s %s × %s%s%s", rv.Key, num(rv.Weight), res.Basis, num(rv.Value), unit, note)
	}
}

func (t *trace) details() CalculationDetails {
	return t.d
}

// num renders a number for trace text.
func num(v float64) string {
	return carbon.FormatFloat(carbon.Round2(v))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package kpi

import (
	"context"
	"sync"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

// DataSource describes what an evaluation read.
type DataSource struct {
	Window       usage.Window `json:"window"`
	Connections  []string     `json:"connections"`
	UsageRecords int          `json:"usage_records"`
	Regions      int          `json:"regions"`
	GridFamily   string       `json:"grid_family,omitempty"`
	WeightBasis  string       `json:"weight_basis,omitempty"`
}

// DataQuality flags degraded results.
type DataQuality struct {
	// NoData is set when a weight or count total was zero. The value is then a
	// defined 0 rather than a measurement.
	NoData bool `json:"no_data"`

	// Estimated is set when some grid values came from built-in reference tables.
	Estimated bool `json:"estimated"`

	// MissingGridMetrics lists provider/region keys that used a default value.
	MissingGridMetrics []string `json:"missing_grid_metrics,omitempty"`
}

// Authoritative reports whether the value reflects actual data.
func (q DataQuality) Authoritative() bool {
	return !q.NoData
}

// Result is one immutable KPI evaluation.
type Result struct {
	ID             string             `json:"id"`
	OrganizationID string             `json:"organization_id"`
	KPIID          string             `json:"kpi_id"`
	Kind           Kind               `json:"kind"`
	Unit           string             `json:"unit"`
	Direction      Direction          `json:"direction"`
	ActualValue    float64            `json:"actual_value"`
	TargetValue    float64            `json:"target_value"`
	Status         Status             `json:"status"`
	Details        CalculationDetails `json:"calculation_details"`
	DataSource     DataSource         `json:"data_source"`
	Quality        DataQuality        `json:"data_quality"`
	EvaluatedAt    time.Time          `json:"evaluated_at"`
}

// Computed is the status-independent output of the compute stage. It depends
// only on the organization, the kind parameters and the window, which makes it
// the unit of caching.
type Computed struct {
	Value      float64            `json:"value"`
	Details    CalculationDetails `json:"details"`
	DataSource DataSource         `json:"data_source"`
	Quality    DataQuality        `json:"quality"`
}

// ResultSink receives finished results. Implementations only append.
type ResultSink interface {
	Emit(ctx context.Context, r Result) error
}

// MemorySink keeps emitted results in memory.
type MemorySink struct {
	mu      sync.Mutex
	results []Result
}

// Emit appends r.
func (s *MemorySink) Emit(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

// Results returns a copy of everything emitted, oldest first.
func (s *MemorySink) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

// Package usage defines the immutable cloud resource-usage records consumed by
// the KPI engine and the read interface used to query them.
package usage

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies the cloud provider of a connection or record.
type Provider string

const (
	ProviderAWS   Provider = "AWS"
	ProviderGCP   Provider = "GCP"
	ProviderAzure Provider = "AZURE"
)

// ParseProvider normalises a provider name. Unknown names return an error.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToUpper(strings.TrimSpace(s))); p {
	case ProviderAWS, ProviderGCP, ProviderAzure:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Record is one observation of resource consumption for an organization's
// cloud connection in a period. Nullable measures are pointers.
type Record struct {
	ID           string
	ConnectionID string
	Region       string
	Provider     Provider
	ServiceName  string
	ServiceType  *string // instance or SKU identifier, e.g. "p4d.24xlarge"
	PeriodStart  time.Time
	PeriodEnd    time.Time
	EnergyKWh    *float64
	CO2eTons     *float64 // metric tons CO2e
	CostAmount   *float64
	UsageHours   *float64
}

// Hours returns the usage hours of the record: UsageHours when reported,
// otherwise the duration of the record period.
func (r Record) Hours() float64 {
	if r.UsageHours != nil {
		return *r.UsageHours
	}
	if r.PeriodEnd.Before(r.PeriodStart) {
		return 0
	}
	return r.PeriodEnd.Sub(r.PeriodStart).Hours()
}

// Validate checks the record invariant periodStart <= periodEnd.
func (r Record) Validate() error {
	if r.PeriodEnd.Before(r.PeriodStart) {
		return fmt.Errorf("usage record %s: period end %s before start %s",
			r.ID, r.PeriodEnd.Format(time.RFC3339), r.PeriodStart.Format(time.RFC3339))
	}
	return nil
}

// Window is a closed reporting interval [Start, End].
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether Start is not after End.
func (w Window) Valid() bool {
	return !w.Start.After(w.End)
}

// Contains reports whether a record falls inside the window: its period
// starts at or after Start and ends at or before End.
func (w Window) Contains(r Record) bool {
	return !r.PeriodStart.Before(w.Start) && !r.PeriodEnd.After(w.End)
}

// String renders the window for logs and traces.
func (w Window) String() string {
	return w.Start.UTC().Format(time.RFC3339) + "/" + w.End.UTC().Format(time.RFC3339)
}

// Filters narrows a usage query. Empty fields match everything.
type Filters struct {
	Regions      []string
	ServiceNames []string
	ServiceTypes []string
}

// Matches reports whether a record satisfies every non-empty filter.
func (f Filters) Matches(r Record) bool {
	if len(f.Regions) > 0 && !containsFold(f.Regions, r.Region) {
		return false
	}
	if len(f.ServiceNames) > 0 && !containsFold(f.ServiceNames, r.ServiceName) {
		return false
	}
	if len(f.ServiceTypes) > 0 {
		if r.ServiceType == nil || !containsFold(f.ServiceTypes, *r.ServiceType) {
			return false
		}
	}
	return true
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

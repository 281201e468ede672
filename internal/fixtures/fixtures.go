// Package fixtures loads demo and test datasets (organizations, connections,
// usage records and grid readings) from YAML and seeds them into a store.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/org"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"gopkg.in/yaml.v3"
)

// Dataset is the decoded form of a fixture file.
type Dataset struct {
	Organizations []Organization `yaml:"organizations,omitempty"`
	Connections   []Connection   `yaml:"connections,omitempty"`
	Usage         []UsageRecord  `yaml:"usage,omitempty"`
	Grid          []GridMetric   `yaml:"grid,omitempty"`
}

type Organization struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	EmployeeCount *int     `yaml:"employee_count"`
	AnnualRevenue *float64 `yaml:"annual_revenue"`
}

type Connection struct {
	ID             string `yaml:"id"`
	OrganizationID string `yaml:"organization_id"`
	Provider       string `yaml:"provider"`
	Active         *bool  `yaml:"active"` // defaults to true
}

type UsageRecord struct {
	ID           string    `yaml:"id"`
	ConnectionID string    `yaml:"connection_id"`
	Region       string    `yaml:"region"`
	Provider     string    `yaml:"provider"`
	ServiceName  string    `yaml:"service_name"`
	ServiceType  *string   `yaml:"service_type"`
	PeriodStart  time.Time `yaml:"period_start"`
	PeriodEnd    time.Time `yaml:"period_end"`
	EnergyKWh    *float64  `yaml:"energy_kwh"`
	CO2eTons     *float64  `yaml:"co2e_tons"`
	CostAmount   *float64  `yaml:"cost_amount"`
	UsageHours   *float64  `yaml:"usage_hours"`
}

type GridMetric struct {
	Region      string             `yaml:"region"`
	Provider    string             `yaml:"provider"`
	Family      string             `yaml:"family"`
	Timestamp   time.Time          `yaml:"timestamp"`
	Value       float64            `yaml:"value"`
	Mix         map[string]float64 `yaml:"mix,omitempty"`
	IsEstimated bool               `yaml:"is_estimated,omitempty"`
}

// Decode reads a YAML dataset.
func Decode(r io.Reader) (*Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		if errors.Is(err, io.EOF) {
			return &ds, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &ds, nil
}

// LoadFile reads a YAML dataset from path.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Data is a dataset converted to domain types.
type Data struct {
	Organizations []org.Organization
	Connections   []org.Connection
	Usage         []usage.Record
	Grid          []grid.Metric
}

// Convert validates the dataset and converts it to domain types.
func (ds *Dataset) Convert() (*Data, error) {
	out := &Data{
		Organizations: make([]org.Organization, 0, len(ds.Organizations)),
		Connections:   make([]org.Connection, 0, len(ds.Connections)),
		Usage:         make([]usage.Record, 0, len(ds.Usage)),
		Grid:          make([]grid.Metric, 0, len(ds.Grid)),
	}
	for _, o := range ds.Organizations {
		if o.ID == "" {
			return nil, errors.New("organization without id")
		}
		out.Organizations = append(out.Organizations, org.Organization{
			ID: o.ID, Name: o.Name, EmployeeCount: o.EmployeeCount, AnnualRevenue: o.AnnualRevenue,
		})
	}
	for _, c := range ds.Connections {
		p, err := usage.ParseProvider(c.Provider)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", c.ID, err)
		}
		active := c.Active == nil || *c.Active
		out.Connections = append(out.Connections, org.Connection{
			ID: c.ID, OrganizationID: c.OrganizationID, Provider: p, Active: active,
		})
	}
	for i, u := range ds.Usage {
		p, err := usage.ParseProvider(u.Provider)
		if err != nil {
			return nil, fmt.Errorf("usage[%d]: %w", i, err)
		}
		rec := usage.Record{
			ID:           u.ID,
			ConnectionID: u.ConnectionID,
			Region:       u.Region,
			Provider:     p,
			ServiceName:  u.ServiceName,
			ServiceType:  u.ServiceType,
			PeriodStart:  u.PeriodStart,
			PeriodEnd:    u.PeriodEnd,
			EnergyKWh:    u.EnergyKWh,
			CO2eTons:     u.CO2eTons,
			CostAmount:   u.CostAmount,
			UsageHours:   u.UsageHours,
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("usage-%d", i+1)
		}
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		out.Usage = append(out.Usage, rec)
	}
	for i, g := range ds.Grid {
		m, err := g.metric()
		if err != nil {
			return nil, fmt.Errorf("grid[%d]: %w", i, err)
		}
		out.Grid = append(out.Grid, m)
	}
	return out, nil
}

func (g GridMetric) metric() (grid.Metric, error) {
	p, err := usage.ParseProvider(g.Provider)
	if err != nil {
		return grid.Metric{}, err
	}
	family, err := grid.ParseFamily(g.Family)
	if err != nil {
		return grid.Metric{}, err
	}
	m := grid.Metric{
		Region:      g.Region,
		Provider:    p,
		Family:      family,
		Timestamp:   g.Timestamp,
		Value:       g.Value,
		IsEstimated: g.IsEstimated,
	}
	if len(g.Mix) > 0 {
		m.Mix = make(grid.Mix, len(g.Mix))
		for name, share := range g.Mix {
			src, err := grid.ParseEnergySource(name)
			if err != nil {
				return grid.Metric{}, err
			}
			m.Mix[src] += share
		}
	}
	return m, nil
}

// Memory holds a dataset in the in-memory stores.
type Memory struct {
	Usage     *usage.MemoryStore
	Grid      *grid.Index
	Directory *org.MemoryDirectory
}

// InMemory builds in-memory stores populated with d.
func (d *Data) InMemory() *Memory {
	dir := org.NewMemoryDirectory()
	for _, o := range d.Organizations {
		dir.PutOrganization(o)
	}
	for _, c := range d.Connections {
		dir.AddConnection(c)
	}
	return &Memory{
		Usage:     usage.NewMemoryStore(d.Usage...),
		Grid:      grid.NewIndex(d.Grid...),
		Directory: dir,
	}
}

// Writer is the persistence surface Seed writes through.
type Writer interface {
	SaveOrganization(ctx context.Context, o org.Organization) error
	SaveConnection(ctx context.Context, c org.Connection) error
	InsertUsage(ctx context.Context, records ...usage.Record) error
	InsertGrid(ctx context.Context, metrics ...grid.Metric) error
}

// Counts reports how many rows Seed wrote.
type Counts struct {
	Organizations int
	Connections   int
	Usage         int
	Grid          int
}

// Seed writes d through w. Organizations are written before their
// connections.
func (d *Data) Seed(ctx context.Context, w Writer) (Counts, error) {
	var n Counts
	for _, o := range d.Organizations {
		if err := w.SaveOrganization(ctx, o); err != nil {
			return n, fmt.Errorf("seed organization %s: %w", o.ID, err)
		}
		n.Organizations++
	}
	for _, c := range d.Connections {
		if err := w.SaveConnection(ctx, c); err != nil {
			return n, fmt.Errorf("seed connection %s: %w", c.ID, err)
		}
		n.Connections++
	}
	if len(d.Usage) > 0 {
		if err := w.InsertUsage(ctx, d.Usage...); err != nil {
			return n, fmt.Errorf("seed usage: %w", err)
		}
		n.Usage = len(d.Usage)
	}
	if len(d.Grid) > 0 {
		if err := w.InsertGrid(ctx, d.Grid...); err != nil {
			return n, fmt.Errorf("seed grid metrics: %w", err)
		}
		n.Grid = len(d.Grid)
	}
	return n, nil
}

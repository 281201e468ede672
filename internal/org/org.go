// Package org exposes the organization profile and cloud connection data the
// KPI engine reads from the surrounding application.
package org

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

// Organization is the borrower profile used for intensity KPIs.
type Organization struct {
	ID            string
	Name          string
	EmployeeCount *int
	AnnualRevenue *float64 // USD
}

// Connection is a cloud account connected by an organization.
type Connection struct {
	ID             string
	OrganizationID string
	Provider       usage.Provider
	Active         bool
}

// Directory looks up organizations and their connections.
type Directory interface {
	Organization(ctx context.Context, orgID string) (Organization, error)
	Connections(ctx context.Context, orgID string) ([]Connection, error)
}

// ErrNotFound is returned when an organization does not exist.
var ErrNotFound = errors.New("organization not found")

// ActiveConnectionIDs returns the IDs of active connections.
func ActiveConnectionIDs(conns []Connection) []string {
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		if c.Active {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// MemoryDirectory is an in-memory Directory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	orgs  map[string]Organization
	conns map[string][]Connection
}

// NewMemoryDirectory creates an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		orgs:  make(map[string]Organization),
		conns: make(map[string][]Connection),
	}
}

// PutOrganization stores or replaces an organization profile.
func (d *MemoryDirectory) PutOrganization(o Organization) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orgs[o.ID] = o
}

// AddConnection attaches a connection to its organization.
func (d *MemoryDirectory) AddConnection(c Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[c.OrganizationID] = append(d.conns[c.OrganizationID], c)
}

// Organization implements Directory.
func (d *MemoryDirectory) Organization(_ context.Context, orgID string) (Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.orgs[orgID]
	if !ok {
		return Organization{}, fmt.Errorf("%w: %s", ErrNotFound, orgID)
	}
	return o, nil
}

// Connections implements Directory.
func (d *MemoryDirectory) Connections(_ context.Context, orgID string) ([]Connection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Connection, len(d.conns[orgID]))
	copy(out, d.conns[orgID])
	return out, nil
}

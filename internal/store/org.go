package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Deepak-Sangle/greenratchet/internal/org"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrgRepository implements org.Directory.
type OrgRepository struct {
	db *gorm.DB
}

// NewOrgRepository creates an OrgRepository.
func NewOrgRepository(db *gorm.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// SaveOrganization inserts or replaces an organization profile.
func (r *OrgRepository) SaveOrganization(ctx context.Context, o org.Organization) error {
	row := OrganizationModel{ID: o.ID, Name: o.Name, EmployeeCount: o.EmployeeCount, AnnualRevenue: o.AnnualRevenue}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save organization %s: %w", o.ID, err)
	}
	return nil
}

// SaveConnection inserts or replaces a cloud connection.
func (r *OrgRepository) SaveConnection(ctx context.Context, c org.Connection) error {
	row := ConnectionModel{ID: c.ID, OrganizationID: c.OrganizationID, Provider: string(c.Provider), Active: c.Active}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save connection %s: %w", c.ID, err)
	}
	return nil
}

// Organization implements org.Directory.
func (r *OrgRepository) Organization(ctx context.Context, orgID string) (org.Organization, error) {
	var row OrganizationModel
	err := r.db.WithContext(ctx).Where("id = ?", orgID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return org.Organization{}, fmt.Errorf("%w: %s", org.ErrNotFound, orgID)
	}
	if err != nil {
		return org.Organization{}, fmt.Errorf("load organization %s: %w", orgID, err)
	}
	return org.Organization{ID: row.ID, Name: row.Name, EmployeeCount: row.EmployeeCount, AnnualRevenue: row.AnnualRevenue}, nil
}

// Connections implements org.Directory.
func (r *OrgRepository) Connections(ctx context.Context, orgID string) ([]org.Connection, error) {
	var rows []ConnectionModel
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list connections of %s: %w", orgID, err)
	}
	out := make([]org.Connection, 0, len(rows))
	for _, row := range rows {
		provider, err := usage.ParseProvider(row.Provider)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", row.ID, err)
		}
		out = append(out, org.Connection{ID: row.ID, OrganizationID: row.OrganizationID, Provider: provider, Active: row.Active})
	}
	return out, nil
}

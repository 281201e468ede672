package store

import (
	"context"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"gorm.io/gorm"
)

// Repositories bundles every repository over one database handle.
type Repositories struct {
	*OrgRepository
	Usage   *UsageRepository
	Grid    *GridRepository
	Results *ResultRepository
}

// NewRepositories creates the repositories for db.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		OrgRepository: NewOrgRepository(db),
		Usage:         NewUsageRepository(db),
		Grid:          NewGridRepository(db),
		Results:       NewResultRepository(db),
	}
}

// InsertUsage stores usage records.
func (r *Repositories) InsertUsage(ctx context.Context, records ...usage.Record) error {
	return r.Usage.Insert(ctx, records...)
}

// InsertGrid stores grid readings.
func (r *Repositories) InsertGrid(ctx context.Context, metrics ...grid.Metric) error {
	return r.Grid.Insert(ctx, metrics...)
}

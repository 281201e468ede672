package store

import (
	"context"
	"fmt"

	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRepository implements usage.Store.
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a UsageRepository.
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Insert stores records. Records without an ID get a generated one; records
// whose ID already exists are left untouched.
func (r *UsageRepository) Insert(ctx context.Context, records ...usage.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]UsageRecordModel, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return err
		}
		rows = append(rows, usageToModel(rec))
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("insert usage records: %w", err)
	}
	return nil
}

// QueryUsage implements usage.Store.
func (r *UsageRepository) QueryUsage(ctx context.Context, connectionIDs []string, window usage.Window, filters usage.Filters) ([]usage.Record, error) {
	if len(connectionIDs) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).
		Where("connection_id IN ?", connectionIDs).
		Where("period_start >= ? AND period_end <= ?", window.Start.UTC(), window.End.UTC())
	if len(filters.Regions) > 0 {
		q = q.Where("region IN ?", filters.Regions)
	}
	if len(filters.ServiceNames) > 0 {
		q = q.Where("service_name IN ?", filters.ServiceNames)
	}
	if len(filters.ServiceTypes) > 0 {
		q = q.Where("service_type IN ?", filters.ServiceTypes)
	}

	var rows []UsageRecordModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	out := make([]usage.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := usageFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func usageToModel(r usage.Record) UsageRecordModel {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return UsageRecordModel{
		ID:           id,
		ConnectionID: r.ConnectionID,
		Region:       r.Region,
		Provider:     string(r.Provider),
		ServiceName:  r.ServiceName,
		ServiceType:  r.ServiceType,
		PeriodStart:  r.PeriodStart.UTC(),
		PeriodEnd:    r.PeriodEnd.UTC(),
		EnergyKWh:    r.EnergyKWh,
		CO2eTons:     r.CO2eTons,
		CostAmount:   r.CostAmount,
		UsageHours:   r.UsageHours,
	}
}

func usageFromModel(m UsageRecordModel) (usage.Record, error) {
	provider, err := usage.ParseProvider(m.Provider)
	if err != nil {
		return usage.Record{}, fmt.Errorf("usage record %s: %w", m.ID, err)
	}
	return usage.Record{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		Region:       m.Region,
		Provider:     provider,
		ServiceName:  m.ServiceName,
		ServiceType:  m.ServiceType,
		PeriodStart:  m.PeriodStart.UTC(),
		PeriodEnd:    m.PeriodEnd.UTC(),
		EnergyKWh:    m.EnergyKWh,
		CO2eTons:     m.CO2eTons,
		CostAmount:   m.CostAmount,
		UsageHours:   m.UsageHours,
	}, nil
}

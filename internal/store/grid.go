package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GridRepository implements grid.Store over the grid_metrics table.
type GridRepository struct {
	db *gorm.DB
}

// NewGridRepository creates a GridRepository.
func NewGridRepository(db *gorm.DB) *GridRepository {
	return &GridRepository{db: db}
}

// Insert stores readings. A reading for an existing series timestamp is
// ignored.
func (r *GridRepository) Insert(ctx context.Context, metrics ...grid.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	rows := make([]GridMetricModel, 0, len(metrics))
	for _, m := range metrics {
		row, err := gridToModel(m)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("insert grid metrics: %w", err)
	}
	return nil
}

// QueryGridMetric implements grid.Store: the most recent reading at or before
// atOrBefore, or nil. Static families ignore the time bound.
func (r *GridRepository) QueryGridMetric(ctx context.Context, key grid.Key, family grid.Family, atOrBefore time.Time) (*grid.Metric, error) {
	q := r.db.WithContext(ctx).
		Where("region = ? AND provider = ? AND family = ?", key.Region, string(key.Provider), string(family))
	if !family.Static() {
		q = q.Where("timestamp <= ?", atOrBefore.UTC())
	}

	var row GridMetricModel
	err := q.Order("timestamp DESC").Order("id DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query grid metric %s %s: %w", family, key, err)
	}
	m, err := gridFromModel(row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadIndex reads every reading into a time-indexed grid.Index so repeated
// lookups during batch evaluation do not hit the database.
func (r *GridRepository) LoadIndex(ctx context.Context) (*grid.Index, error) {
	var rows []GridMetricModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load grid metrics: %w", err)
	}
	idx := grid.NewIndex()
	metrics := make([]grid.Metric, 0, len(rows))
	for _, row := range rows {
		m, err := gridFromModel(row)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	idx.Add(metrics...)
	return idx, nil
}

func gridToModel(m grid.Metric) (GridMetricModel, error) {
	row := GridMetricModel{
		Region:      m.Region,
		Provider:    string(m.Provider),
		Family:      string(m.Family),
		Timestamp:   m.Timestamp.UTC(),
		Value:       m.Value,
		IsEstimated: m.IsEstimated,
	}
	if len(m.Mix) > 0 {
		b, err := json.Marshal(m.Mix)
		if err != nil {
			return GridMetricModel{}, fmt.Errorf("encode electricity mix: %w", err)
		}
		row.Mix = datatypes.JSON(b)
	}
	return row, nil
}

func gridFromModel(row GridMetricModel) (grid.Metric, error) {
	provider, err := usage.ParseProvider(row.Provider)
	if err != nil {
		return grid.Metric{}, fmt.Errorf("grid metric %d: %w", row.ID, err)
	}
	family, err := grid.ParseFamily(row.Family)
	if err != nil {
		return grid.Metric{}, fmt.Errorf("grid metric %d: %w", row.ID, err)
	}
	m := grid.Metric{
		Region:      row.Region,
		Provider:    provider,
		Family:      family,
		Timestamp:   row.Timestamp.UTC(),
		Value:       row.Value,
		IsEstimated: row.IsEstimated,
	}
	if len(row.Mix) > 0 {
		if err := json.Unmarshal(row.Mix, &m.Mix); err != nil {
			return grid.Metric{}, fmt.Errorf("decode electricity mix of grid metric %d: %w", row.ID, err)
		}
	}
	return m, nil
}

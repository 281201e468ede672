package store

import (
	"context"
	"fmt"

	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResultRepository is the append-only kpi.ResultSink. It exposes no update or
// delete operation.
type ResultRepository struct {
	db *gorm.DB
}

// NewResultRepository creates a ResultRepository.
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Emit implements kpi.ResultSink with a plain INSERT. A duplicate result ID
// is rejected by the primary key.
func (r *ResultRepository) Emit(ctx context.Context, res kpi.Result) error {
	row, err := resultToModel(res)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert kpi result %s: %w", res.ID, err)
	}
	return nil
}

// ListResults returns the evaluation history of a KPI, newest first.
func (r *ResultRepository) ListResults(ctx context.Context, kpiID string) ([]kpi.Result, error) {
	var rows []KPIResultModel
	err := r.db.WithContext(ctx).
		Where("kpi_id = ?", kpiID).
		Order("evaluated_at DESC").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list kpi results of %s: %w", kpiID, err)
	}
	out := make([]kpi.Result, 0, len(rows))
	for _, row := range rows {
		res, err := resultFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func resultToModel(res kpi.Result) (KPIResultModel, error) {
	details, err := json.Marshal(res.Details)
	if err != nil {
		return KPIResultModel{}, fmt.Errorf("encode calculation details: %w", err)
	}
	source, err := json.Marshal(res.DataSource)
	if err != nil {
		return KPIResultModel{}, fmt.Errorf("encode data source: %w", err)
	}
	quality, err := json.Marshal(res.Quality)
	if err != nil {
		return KPIResultModel{}, fmt.Errorf("encode data quality: %w", err)
	}
	return KPIResultModel{
		ID:             res.ID,
		OrganizationID: res.OrganizationID,
		KPIID:          res.KPIID,
		Kind:           res.Kind.String(),
		Unit:           res.Unit,
		Direction:      string(res.Direction),
		ActualValue:    res.ActualValue,
		TargetValue:    res.TargetValue,
		Status:         string(res.Status),
		NoData:         res.Quality.NoData,
		Details:        datatypes.JSON(details),
		DataSource:     datatypes.JSON(source),
		Quality:        datatypes.JSON(quality),
		EvaluatedAt:    res.EvaluatedAt.UTC(),
	}, nil
}

func resultFromModel(row KPIResultModel) (kpi.Result, error) {
	kind, err := kpi.ParseKind(row.Kind)
	if err != nil {
		return kpi.Result{}, err
	}
	res := kpi.Result{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		KPIID:          row.KPIID,
		Kind:           kind,
		Unit:           row.Unit,
		Direction:      kpi.Direction(row.Direction),
		ActualValue:    row.ActualValue,
		TargetValue:    row.TargetValue,
		Status:         kpi.Status(row.Status),
		EvaluatedAt:    row.EvaluatedAt.UTC(),
	}
	if err := json.Unmarshal(row.Details, &res.Details); err != nil {
		return kpi.Result{}, fmt.Errorf("decode calculation details of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.DataSource, &res.DataSource); err != nil {
		return kpi.Result{}, fmt.Errorf("decode data source of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Quality, &res.Quality); err != nil {
		return kpi.Result{}, fmt.Errorf("decode data quality of %s: %w", row.ID, err)
	}
	return res, nil
}

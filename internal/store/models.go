package store

import (
	"time"

	"gorm.io/datatypes"
)

// UsageRecordModel is an immutable usage observation.
type UsageRecordModel struct {
	ID           string    `gorm:"primaryKey;type:text"`
	ConnectionID string    `gorm:"type:text;not null;index:idx_usage_conn_period,priority:1"`
	Region       string    `gorm:"type:text;not null"`
	Provider     string    `gorm:"type:text;not null"`
	ServiceName  string    `gorm:"type:text"`
	ServiceType  *string   `gorm:"type:text"`
	PeriodStart  time.Time `gorm:"not null;index:idx_usage_conn_period,priority:2"`
	PeriodEnd    time.Time `gorm:"not null"`
	EnergyKWh    *float64 `gorm:"column:energy_kwh"`
	CO2eTons     *float64 `gorm:"column:co2e_tons"`
	CostAmount   *float64
	UsageHours   *float64
}

// TableName sets the database table name.
func (UsageRecordModel) TableName() string { return "usage_records" }

// GridMetricModel is one timestamped grid reading.
type GridMetricModel struct {
	ID          uint           `gorm:"primaryKey"`
	Region      string         `gorm:"type:text;not null;uniqueIndex:idx_grid_series,priority:1"`
	Provider    string         `gorm:"type:text;not null;uniqueIndex:idx_grid_series,priority:2"`
	Family      string         `gorm:"type:text;not null;uniqueIndex:idx_grid_series,priority:3"`
	Timestamp   time.Time      `gorm:"not null;uniqueIndex:idx_grid_series,priority:4"`
	Value       float64        `gorm:"not null;default:0"`
	Mix         datatypes.JSON `gorm:""`
	IsEstimated bool           `gorm:"not null;default:false"`
}

// TableName sets the database table name.
func (GridMetricModel) TableName() string { return "grid_metrics" }

// OrganizationModel is a borrower profile.
type OrganizationModel struct {
	ID            string `gorm:"primaryKey;type:text"`
	Name          string `gorm:"type:text"`
	EmployeeCount *int
	AnnualRevenue *float64
}

// TableName sets the database table name.
func (OrganizationModel) TableName() string { return "organizations" }

// ConnectionModel is a connected cloud account.
type ConnectionModel struct {
	ID             string `gorm:"primaryKey;type:text"`
	OrganizationID string `gorm:"type:text;not null;index"`
	Provider       string `gorm:"type:text;not null"`
	Active         bool   `gorm:"not null"`
}

// TableName sets the database table name.
func (ConnectionModel) TableName() string { return "cloud_connections" }

// KPIResultModel is one append-only evaluation row.
type KPIResultModel struct {
	ID             string         `gorm:"primaryKey;type:text"`
	OrganizationID string         `gorm:"type:text;not null;index"`
	KPIID          string         `gorm:"column:kpi_id;type:text;not null;index:idx_kpi_results_history,priority:1"`
	Kind           string         `gorm:"type:text;not null"`
	Unit           string         `gorm:"type:text"`
	Direction      string         `gorm:"type:text;not null"`
	ActualValue    float64        `gorm:"not null"`
	TargetValue    float64        `gorm:"not null"`
	Status         string         `gorm:"type:text;not null"`
	NoData         bool           `gorm:"not null;default:false"`
	Details        datatypes.JSON `gorm:"not null"`
	DataSource     datatypes.JSON `gorm:"not null"`
	Quality        datatypes.JSON `gorm:"not null"`
	EvaluatedAt    time.Time      `gorm:"not null;index:idx_kpi_results_history,priority:2"`
}

// TableName sets the database table name.
func (KPIResultModel) TableName() string { return "kpi_results" }

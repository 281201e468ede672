// Package store persists usage, grid metrics, organizations and KPI results
// with gorm.
package store

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Dialect returns the gorm dialector for driver and dsn.
func Dialect(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		return postgres.Open(dsn), nil
	case DriverSQLite, "":
		if dsn == "" {
			dsn = "greenratchet.db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported %s database driver", driver)
	}
}

// Open connects to the database. SQL logging is silenced; query errors are
// returned to callers and logged there.
func Open(driver, dsn string) (*gorm.DB, error) {
	dialect, err := Dialect(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialect, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UsageRecordModel{},
		&GridMetricModel{},
		&OrganizationModel{},
		&ConnectionModel{},
		&KPIResultModel{},
	)
}

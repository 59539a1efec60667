// Package database provides database helper functions
package database

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// VerifyDataSource opens a throwaway connection and runs a probe query,
// proving the data source is reachable before the schema and services
// come up. Works for both the local sqlite3 driver and libsql/Turso.
func VerifyDataSource(driverName, dataSourceName string) error {
	db, err := NewConnection(driverName, dataSourceName)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}
	defer db.Close()

	var result int
	if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("connection probe query failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected probe result: %d", result)
	}
	return nil
}

// GetSlowQueryThreshold returns the configured slow query threshold
func GetSlowQueryThreshold() time.Duration {
	return config.SlowQueryThreshold
}

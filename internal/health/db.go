// Package health provides readiness checks for the service's backing stores.
package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrExtensionMissing is returned when a required Postgres extension is not installed.
var ErrExtensionMissing = errors.New("postgres extension not installed")

// DBChecker implements health checking for the Postgres database.
type DBChecker struct {
	db        *sql.DB
	extension string
}

// NewDBChecker creates a new database health checker that only pings.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{
		db: db,
	}
}

// RequireExtension makes HealthCheck also verify that the named extension
// (for example "vector") is installed.
func (d *DBChecker) RequireExtension(name string) *DBChecker {
	d.extension = name
	return d
}

// HealthCheck pings the database and checks the required extension if any.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return err
	}
	if d.extension == "" {
		return nil
	}

	var installed bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = $1)`, d.extension,
	).Scan(&installed)
	if err != nil {
		return fmt.Errorf("check extension %s: %w", d.extension, err)
	}
	if !installed {
		return fmt.Errorf("%w: %s", ErrExtensionMissing, d.extension)
	}
	return nil
}

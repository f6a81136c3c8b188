package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

type OpenConfig struct {
	Driver string
	DSN    string
}

// Open connects the single active database for the session. For duckdb the
// DSN is a local file path (empty for in-memory); for postgres it is a
// standard connection string.
func Open(ctx context.Context, cfg OpenConfig) (*sql.DB, error) {
	driverName := ""
	switch cfg.Driver {
	case DriverDuckDB:
		driverName = "duckdb"
	case DriverPostgres:
		driverName = "pgx"
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

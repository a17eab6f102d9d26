package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/fingerprint-matcher/internal/config"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
)

func init() {
	database.RegisterBackend("mariadb", func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		return NewPool(ctx, cfg)
	})
}

// Pool manages a MariaDB connection pool over the legacy enrollment tables.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
// The DSN is forced to parse DATE and DATETIME columns into time.Time.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := normalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = 5
	}
	if maxIdle <= 0 {
		maxIdle = 2
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// normalizeDSN parses a go-sql-driver DSN and enables parseTime and UTC.
func normalizeDSN(raw string) (string, error) {
	parsed, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse MariaDB DSN: %w", err)
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

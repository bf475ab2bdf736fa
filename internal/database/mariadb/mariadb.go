// Package mariadb reads the student roster from a MariaDB/MySQL database.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-attendance/internal/config"
)

// Pool is a small read-only pool over the school database. The roster is
// read once per session, so it never needs many connections.
type Pool struct {
	db *sql.DB
}

// Open connects to the roster database described by cfg and verifies the
// connection within ctx.
func Open(ctx context.Context, cfg *config.RosterConfig) (*Pool, error) {
	if cfg == nil || cfg.DatabaseURL == "" {
		return nil, errors.New("roster database DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid roster database DSN: %w", err)
	}
	db.SetMaxOpenConns(max(cfg.MaxOpenConns, 1))
	db.SetMaxIdleConns(max(cfg.MaxIdleConns, 0))
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("roster database unreachable: %w", err)
	}
	return &Pool{db: db}, nil
}

// Close releases the pool.
func (p *Pool) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing roster database: %w", err)
	}
	return nil
}

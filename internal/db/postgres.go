// Package db owns the shared PostgreSQL connection pool used by every
// service binary in this repository. Schema bootstrap lives in the
// sibling migrations package.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/bloomingFlower/auction-service/internal/db/migrations"
)

// Pool wraps a sqlx connection pool shared read-only by all tasks; it is
// internally thread-safe and holds no per-command state.
type Pool struct {
	*sqlx.DB
}

// Open connects to Postgres and verifies the connection with a bounded
// ping, matching the connection lifecycle the archival worker uses.
func Open(connStr string) (*Pool, error) {
	conn, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &Pool{DB: conn}, nil
}

// InitSchema applies the goose-managed migrations. It is safe to call
// from more than one binary at startup.
func (p *Pool) InitSchema(ctx context.Context) error {
	if err := migrations.Run(ctx, p.DB.DB); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

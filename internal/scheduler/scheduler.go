// Package scheduler advances an item's status by wall-clock time,
// sweeping on a fixed interval via a goroutine driven by time.Ticker.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Scheduler sweeps the items table on a fixed tick, transitioning
// SCHEDULED -> ACTIVE and (any non-terminal status) -> COMPLETED by
// wall-clock time. It never emits events -- see the design notes on
// status as a derived field -- and its writes are conditioned on the
// previous status so they never clobber a COMPLETED set by the
// projection consumer's BuyNowExecuted handler.
type Scheduler struct {
	db   *sqlx.DB
	tick time.Duration
	log  *slog.Logger
}

// New builds a Scheduler that sweeps every tick.
func New(db *sqlx.DB, tick time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{db: db, tick: tick, log: log}
}

// Run sweeps once per tick until ctx is cancelled. It is meant to be run
// in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.log.Error("status sweep failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) error {
	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = 'ACTIVE' WHERE status = 'SCHEDULED' AND start_time <= $1`, now); err != nil {
		return fmt.Errorf("scheduled->active: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = 'COMPLETED' WHERE status <> 'COMPLETED' AND end_time <= $1`, now); err != nil {
		return fmt.Errorf("->completed: %w", err)
	}

	return nil
}

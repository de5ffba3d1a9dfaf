// Package eventstore is the single linearization point for each
// auction aggregate. It is grounded on the append-then-publish sequence
// the archival worker's NATS consumer mirrors on the read side, with
// the OCC gate expressed as a Postgres unique index violation rather
// than an explicit conditional insert.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bloomingFlower/auction-service/internal/bus"
	"github.com/bloomingFlower/auction-service/internal/models"
)

// AppendErrorKind classifies why append_and_publish failed.
type AppendErrorKind int

const (
	// ErrKindStorage covers any database failure other than the unique
	// (aggregate_id, version) violation.
	ErrKindStorage AppendErrorKind = iota
	// ErrKindVersionConflict is returned when another appender already
	// holds the target version for this aggregate.
	ErrKindVersionConflict
	// ErrKindSerialization covers a failure to marshal the event payload.
	ErrKindSerialization
)

// AppendError is the typed error surface of AppendAndPublish. Callers branch on
// Kind, most importantly to decide whether to retry (ErrKindVersionConflict
// only).
type AppendError struct {
	Kind AppendErrorKind
	Err  error
}

func (e *AppendError) Error() string { return e.Err.Error() }
func (e *AppendError) Unwrap() error { return e.Err }

func versionConflict(err error) *AppendError {
	return &AppendError{Kind: ErrKindVersionConflict, Err: err}
}

func storageErr(err error) *AppendError {
	return &AppendError{Kind: ErrKindStorage, Err: err}
}

func serializationErr(err error) *AppendError {
	return &AppendError{Kind: ErrKindSerialization, Err: err}
}

// Store is the PostgreSQL-backed event store. It publishes accepted
// events to bus.Publisher, which is the sole caller-visible dependency
// on the message bus.
type Store struct {
	db        *sqlx.DB
	publisher bus.Publisher
	log       *slog.Logger
}

// New builds a Store over db, publishing accepted events through pub.
func New(db *sqlx.DB, pub bus.Publisher, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, publisher: pub, log: log}
}

// NextVersion returns max(version)+1 for aggregateID, or 1 if the
// aggregate has no events yet.
func (s *Store) NextVersion(ctx context.Context, aggregateID int64) (int64, error) {
	var version int64
	err := s.db.GetContext(ctx, &version,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM events WHERE aggregate_id = $1`,
		aggregateID)
	if err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}
	return version, nil
}

// AppendAndPublish inserts event under the (aggregate_id, version)
// uniqueness constraint and, on success, publishes it to the bus keyed
// by aggregate_id. A publish failure after a successful insert is
// logged and swallowed: the event stays in the events table, but it is
// not on the bus and nothing in this package publishes it again, so the
// projection consumer does not see it (see the design notes on why no
// distributed transaction is used).
func (s *Store) AppendAndPublish(ctx context.Context, event *models.Event) *AppendError {
	if _, err := json.Marshal(event.Data); err != nil {
		return serializationErr(fmt.Errorf("marshal event data: %w", err))
	}

	row := s.db.QueryRowxContext(ctx,
		`INSERT INTO events (aggregate_id, event_type, data, version, timestamp)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		event.AggregateID, event.EventType, event.Data, event.Version, event.Timestamp)

	if err := row.Scan(&event.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return versionConflict(fmt.Errorf("version conflict on aggregate %d version %d", event.AggregateID, event.Version))
		}
		return storageErr(fmt.Errorf("insert event: %w", err))
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		// Insert already committed; the event is durable in the store
		// but absent from the bus. Do not fail the command.
		s.log.Warn("publish failed after durable insert", "aggregate_id", event.AggregateID, "version", event.Version, "error", err)
		return nil
	}

	return nil
}

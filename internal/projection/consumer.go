// Package projection applies BidPlaced and BuyNowExecuted
// events to the bids/items read model. Grounded on the archival worker's
// NATS-to-Postgres consumer, with a transactional conditional-update
// pattern (UPDATE ... WHERE current_price < $1 RETURNING ...) as the
// idempotence mechanism.
package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/bloomingFlower/auction-service/internal/models"
)

// Publisher is the optional real-time fan-out sink. Consumer works
// without one; NopPublisher below is used when fan-out is not wired in.
type Publisher interface {
	PublishPriceUpdate(ctx context.Context, update PriceUpdate) error
}

// PriceUpdate is the wire-only delta the projection consumer hands to
// the fan-out sink after a successful projection write.
type PriceUpdate struct {
	ItemID       int64             `json:"item_id"`
	CurrentPrice float64           `json:"current_price"`
	Status       models.ItemStatus `json:"status"`
	Reason       string            `json:"reason"`
}

// NopPublisher discards every update; the zero value is ready to use.
type NopPublisher struct{}

func (NopPublisher) PublishPriceUpdate(context.Context, PriceUpdate) error { return nil }

// Consumer applies events to the read model. PoisonEvents counts
// deliveries whose payload fails to unmarshal (again on each
// redelivery) and events of an unknown type; database errors are not
// counted. It is exposed as a metric with no dead-letter sink.
type Consumer struct {
	db           *sqlx.DB
	fanout       Publisher
	log          *slog.Logger
	PoisonEvents atomic.Int64
}

// New builds a Consumer over db. fanout may be nil, in which case
// updates are simply not broadcast.
func New(db *sqlx.DB, fanout Publisher, log *slog.Logger) *Consumer {
	if fanout == nil {
		fanout = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{db: db, fanout: fanout, log: log}
}

// Handle dispatches one delivered event to its projection. Returning an
// error means the bus should not advance past this event: it will be
// redelivered.
func (c *Consumer) Handle(ctx context.Context, event *models.Event) error {
	switch event.EventType {
	case models.EventBidPlaced:
		return c.handleBidPlaced(ctx, event)
	case models.EventBuyNowExecuted:
		return c.handleBuyNowExecuted(ctx, event)
	default:
		c.PoisonEvents.Add(1)
		c.log.Warn("unknown event type, skipping", "event_type", event.EventType, "aggregate_id", event.AggregateID)
		return nil
	}
}

func (c *Consumer) handleBidPlaced(ctx context.Context, event *models.Event) error {
	var payload models.BidPlacedPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		c.PoisonEvents.Add(1)
		return fmt.Errorf("unmarshal BidPlaced payload: %w", err)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// The conditional WHERE clause is what makes redelivery of the same
	// event a no-op: a bid_amount that no longer beats current_price
	// (because this event was already applied) simply updates zero rows.
	var newPrice float64
	err = tx.GetContext(ctx, &newPrice,
		`UPDATE items SET current_price = $1
		 WHERE id = $2 AND current_price < $1
		 RETURNING current_price`,
		payload.BidAmount, payload.ItemID)

	applied := true
	if errors.Is(err, sql.ErrNoRows) {
		applied = false
	} else if err != nil {
		return fmt.Errorf("conditional price update: %w", err)
	}

	if applied {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bids (item_id, bidder_id, bid_amount, bid_time) VALUES ($1, $2, $3, $4)`,
			payload.ItemID, payload.BidderID, payload.BidAmount, payload.Timestamp)
		if err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	if applied {
		c.publish(ctx, PriceUpdate{ItemID: payload.ItemID, CurrentPrice: payload.BidAmount, Status: models.ItemActive, Reason: "bid"})
	}
	return nil
}

func (c *Consumer) handleBuyNowExecuted(ctx context.Context, event *models.Event) error {
	var payload models.BuyNowExecutedPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		c.PoisonEvents.Add(1)
		return fmt.Errorf("unmarshal BuyNowExecuted payload: %w", err)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// status <> 'COMPLETED' makes COMPLETED sticky: a redelivered or
	// racing BuyNowExecuted can never un-terminate an item.
	var newPrice float64
	err = tx.GetContext(ctx, &newPrice,
		`UPDATE items SET current_price = $1, status = 'COMPLETED', end_time = LEAST(end_time, now())
		 WHERE id = $2 AND status <> 'COMPLETED'
		 RETURNING current_price`,
		payload.BuyNowPrice, payload.ItemID)

	applied := true
	if errors.Is(err, sql.ErrNoRows) {
		applied = false
	} else if err != nil {
		return fmt.Errorf("conditional buy-now update: %w", err)
	}

	if applied {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bids (item_id, bidder_id, bid_amount, bid_time) VALUES ($1, $2, $3, $4)`,
			payload.ItemID, payload.BuyerID, payload.BuyNowPrice, payload.Timestamp)
		if err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	if applied {
		c.publish(ctx, PriceUpdate{ItemID: payload.ItemID, CurrentPrice: payload.BuyNowPrice, Status: models.ItemCompleted, Reason: "buy_now"})
	}
	return nil
}

// publish best-effort fans a PriceUpdate out to the realtime sink. It
// never fails the projection: a dropped update just means the
// WebSocket gateway is a beat behind the next query poll, and never
// affects the committed read model.
func (c *Consumer) publish(ctx context.Context, update PriceUpdate) {
	if err := c.fanout.PublishPriceUpdate(ctx, update); err != nil {
		c.log.Warn("realtime fan-out publish failed", "item_id", update.ItemID, "error", err)
	}
}

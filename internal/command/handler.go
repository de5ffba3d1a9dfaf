// Package command validates a bid or buy-now request against the
// current aggregate state, builds the corresponding event, and appends
// it under optimistic concurrency control with bounded retry,
// re-reading aggregate state on every attempt with exponential backoff
// between retries.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloomingFlower/auction-service/internal/eventstore"
	"github.com/bloomingFlower/auction-service/internal/models"
	"github.com/bloomingFlower/auction-service/internal/query"
)

// ItemReader is the read dependency the command handler needs: re-read
// the aggregate's current state on every attempt, including retries. No
// aggregate state is ever cached across a retry.
type ItemReader interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
}

// Appender is the write dependency: append an event under OCC.
type Appender interface {
	NextVersion(ctx context.Context, aggregateID int64) (int64, error)
	AppendAndPublish(ctx context.Context, event *models.Event) *eventstore.AppendError
}

// RetryPolicy configures the bounded OCC retry loop.
type RetryPolicy struct {
	MaxRetries   int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// DefaultRetryPolicy: 5 attempts, 10ms base, doubling, capped at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, BaseBackoff: 10 * time.Millisecond, MaxBackoff: 200 * time.Millisecond}
}

// backoff returns the delay before retry attempt n (0-indexed).
func (p RetryPolicy) backoff(n int) time.Duration {
	d := p.BaseBackoff << n
	if d > p.MaxBackoff || d <= 0 {
		return p.MaxBackoff
	}
	return d
}

// Handler is the command pipeline for PlaceBid and BuyNow.
type Handler struct {
	reader Appender
	items  ItemReader
	retry  RetryPolicy
	log    *slog.Logger
}

// New builds a Handler. items is typically a *query.Service; store is
// typically an *eventstore.Store.
func New(store Appender, items ItemReader, retry RetryPolicy, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{reader: store, items: items, retry: retry, log: log}
}

// PlaceBid is the PlaceBid{item_id, bidder_id, bid_amount} command. A
// bid at or above buy_now_price transparently becomes a BuyNow executed
// at buy_now_price.
type PlaceBid struct {
	ItemID    int64
	BidderID  string
	BidAmount float64
}

// BuyNow is the BuyNow{item_id, buyer_id} command.
type BuyNow struct {
	ItemID  int64
	BuyerID string
}

// validateWindow checks the time-window precondition shared by both
// commands: start/end time window and ACTIVE status. Existence is
// checked by the callers before this runs.
func validateWindow(item *models.Item, now time.Time) *Error {
	if now.Before(item.StartTime) || item.Status == models.ItemScheduled {
		return errNotStarted
	}
	if item.Status == models.ItemCompleted || !now.Before(item.EndTime) {
		return errAlreadyEnded
	}
	return nil
}

// HandlePlaceBid runs the full PlaceBid pipeline: read, validate, build
// event, append with retry.
func (h *Handler) HandlePlaceBid(ctx context.Context, cmd PlaceBid) *Error {
	for attempt := 0; attempt < h.retry.MaxRetries; attempt++ {
		item, err := h.items.GetItem(ctx, cmd.ItemID)
		if errors.Is(err, query.ErrItemNotFound) {
			return errNotFound
		}
		if err != nil {
			return internal(err)
		}

		now := time.Now().UTC()
		if verr := validateWindow(item, now); verr != nil {
			return verr
		}
		if cmd.BidAmount <= item.CurrentPrice {
			return lowBid()
		}

		var event *models.Event
		if cmd.BidAmount >= item.BuyNowPrice {
			event, err = h.buildBuyNowEvent(ctx, cmd.ItemID, cmd.BidderID, item.BuyNowPrice, now)
		} else {
			event, err = h.buildBidPlacedEvent(ctx, cmd.ItemID, cmd.BidderID, cmd.BidAmount, now)
		}
		if err != nil {
			return internal(err)
		}

		if appendErr := h.reader.AppendAndPublish(ctx, event); appendErr != nil {
			if appendErr.Kind == eventstore.ErrKindVersionConflict {
				h.log.Warn("occ conflict, retrying", "item_id", cmd.ItemID, "attempt", attempt)
				h.sleep(ctx, attempt)
				continue
			}
			return internal(appendErr)
		}
		return nil
	}
	return errConflict
}

// HandleBuyNow runs the full BuyNow pipeline.
func (h *Handler) HandleBuyNow(ctx context.Context, cmd BuyNow) *Error {
	for attempt := 0; attempt < h.retry.MaxRetries; attempt++ {
		item, err := h.items.GetItem(ctx, cmd.ItemID)
		if errors.Is(err, query.ErrItemNotFound) {
			return errNotFound
		}
		if err != nil {
			return internal(err)
		}

		now := time.Now().UTC()
		if verr := validateWindow(item, now); verr != nil {
			return verr
		}

		event, err := h.buildBuyNowEvent(ctx, cmd.ItemID, cmd.BuyerID, item.BuyNowPrice, now)
		if err != nil {
			return internal(err)
		}

		if appendErr := h.reader.AppendAndPublish(ctx, event); appendErr != nil {
			if appendErr.Kind == eventstore.ErrKindVersionConflict {
				h.log.Warn("occ conflict, retrying", "item_id", cmd.ItemID, "attempt", attempt)
				h.sleep(ctx, attempt)
				continue
			}
			return internal(appendErr)
		}
		return nil
	}
	return errConflict
}

func (h *Handler) buildBidPlacedEvent(ctx context.Context, itemID int64, bidderID string, amount float64, now time.Time) (*models.Event, error) {
	version, err := h.reader.NextVersion(ctx, itemID)
	if err != nil {
		return nil, err
	}
	payload := models.BidPlacedPayload{ItemID: itemID, BidderID: bidderID, BidAmount: amount, Timestamp: now}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal BidPlaced payload: %w", err)
	}
	return &models.Event{
		AggregateID: itemID,
		EventType:   models.EventBidPlaced,
		Data:        data,
		Version:     version,
		Timestamp:   now,
	}, nil
}

func (h *Handler) buildBuyNowEvent(ctx context.Context, itemID int64, buyerID string, price float64, now time.Time) (*models.Event, error) {
	version, err := h.reader.NextVersion(ctx, itemID)
	if err != nil {
		return nil, err
	}
	payload := models.BuyNowExecutedPayload{ItemID: itemID, BuyerID: buyerID, BuyNowPrice: price, Timestamp: now}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal BuyNowExecuted payload: %w", err)
	}
	return &models.Event{
		AggregateID: itemID,
		EventType:   models.EventBuyNowExecuted,
		Data:        data,
		Version:     version,
		Timestamp:   now,
	}, nil
}

// sleep waits out the backoff for attempt, returning early if ctx is
// cancelled -- commands observe caller cancellation between retries.
func (h *Handler) sleep(ctx context.Context, attempt int) {
	select {
	case <-time.After(h.retry.backoff(attempt)):
	case <-ctx.Done():
	}
}

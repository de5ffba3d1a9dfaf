package models

import (
	"encoding/json"
	"time"
)

// EventType names the kind of domain event carried by an Event envelope.
type EventType string

const (
	EventBidPlaced     EventType = "BidPlaced"
	EventBuyNowExecuted EventType = "BuyNowExecuted"
)

// Event is the append-only log row. (AggregateID, Version) is globally
// unique and is the sole optimistic-concurrency gate: an insert that
// collides on this pair means somebody else's command won the race.
type Event struct {
	ID          int64           `db:"id" json:"id"`
	AggregateID int64           `db:"aggregate_id" json:"aggregate_id"`
	EventType   EventType       `db:"event_type" json:"event_type"`
	Data        json.RawMessage `db:"data" json:"data"`
	Version     int64           `db:"version" json:"version"`
	Timestamp   time.Time       `db:"timestamp" json:"timestamp"`
}

// BidPlacedPayload is the Data payload of an EventBidPlaced event.
type BidPlacedPayload struct {
	ItemID    int64     `json:"item_id"`
	BidderID  string    `json:"bidder_id"`
	BidAmount float64   `json:"bid_amount"`
	Timestamp time.Time `json:"timestamp"`
}

// BuyNowExecutedPayload is the Data payload of an EventBuyNowExecuted event.
type BuyNowExecutedPayload struct {
	ItemID      int64     `json:"item_id"`
	BuyerID     string    `json:"buyer_id"`
	BuyNowPrice float64   `json:"buy_now_price"`
	Timestamp   time.Time `json:"timestamp"`
}

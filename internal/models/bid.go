package models

import "time"

// Bid is a read-model row projected from BidPlaced and BuyNowExecuted
// events. Bids are append-only: the projection consumer inserts them and
// nothing ever deletes or updates a row.
type Bid struct {
	ID         int64     `db:"id" json:"id"`
	ItemID     int64     `db:"item_id" json:"item_id"`
	BidderID   string    `db:"bidder_id" json:"bidder_id"`
	BidAmount  float64   `db:"bid_amount" json:"bid_amount"`
	BidTime    time.Time `db:"bid_time" json:"bid_time"`
}

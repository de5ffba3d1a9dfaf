package models

import "time"

// ItemStatus is the auction lifecycle state of an Item. It only ever
// moves forward: SCHEDULED -> ACTIVE -> COMPLETED.
type ItemStatus string

const (
	ItemScheduled ItemStatus = "SCHEDULED"
	ItemActive    ItemStatus = "ACTIVE"
	ItemCompleted ItemStatus = "COMPLETED"
)

// Item is the auction aggregate root. It is created externally (catalog
// service, out of scope) and is only ever mutated by the projection
// consumer and the status scheduler; the command path never
// writes it directly.
type Item struct {
	ID            int64      `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	StartingPrice float64    `db:"starting_price" json:"starting_price"`
	CurrentPrice  float64    `db:"current_price" json:"current_price"`
	BuyNowPrice   float64    `db:"buy_now_price" json:"buy_now_price"`
	Seller        string     `db:"seller" json:"seller"`
	Status        ItemStatus `db:"status" json:"status"`
	StartTime     time.Time  `db:"start_time" json:"start_time"`
	EndTime       time.Time  `db:"end_time" json:"end_time"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

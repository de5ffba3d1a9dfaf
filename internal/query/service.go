// Package query implements read-only projections over the read
// model. Every method is a single snapshot-consistent read; there are no
// cross-item transactions.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bloomingFlower/auction-service/internal/models"
)

// ErrItemNotFound is returned by GetItem and Status when no item with
// the given id exists in the read model.
var ErrItemNotFound = errors.New("item not found")

// Service is the PostgreSQL-backed query service.
type Service struct {
	db *sqlx.DB
}

// New builds a Service over db.
func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// GetItem returns the current projected state of item id.
func (s *Service) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item, `SELECT * FROM items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return &item, nil
}

// ListItems returns every item in the read model.
func (s *Service) ListItems(ctx context.Context) ([]models.Item, error) {
	items := []models.Item{}
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ListBids returns every bid on item id, most recent first.
func (s *Service) ListBids(ctx context.Context, itemID int64) ([]models.Bid, error) {
	bids := []models.Bid{}
	err := s.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE item_id = $1 ORDER BY bid_time DESC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list bids for item %d: %w", itemID, err)
	}
	return bids, nil
}

// TopBid returns the highest bid on item id, breaking ties by earlier
// bid_time. It returns (nil, nil) if the item has no bids yet.
func (s *Service) TopBid(ctx context.Context, itemID int64) (*models.Bid, error) {
	var bid models.Bid
	err := s.db.GetContext(ctx, &bid,
		`SELECT * FROM bids WHERE item_id = $1
		 ORDER BY bid_amount DESC, bid_time ASC LIMIT 1`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("top bid for item %d: %w", itemID, err)
	}
	return &bid, nil
}

// Status returns the current auction status of item id.
func (s *Service) Status(ctx context.Context, itemID int64) (models.ItemStatus, error) {
	var status models.ItemStatus
	err := s.db.GetContext(ctx, &status, `SELECT status FROM items WHERE id = $1`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrItemNotFound
	}
	if err != nil {
		return "", fmt.Errorf("status for item %d: %w", itemID, err)
	}
	return status, nil
}

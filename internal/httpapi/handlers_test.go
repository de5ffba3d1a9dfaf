package httpapi_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bloomingFlower/auction-service/internal/command"
	"github.com/bloomingFlower/auction-service/internal/httpapi"
	"github.com/bloomingFlower/auction-service/internal/models"
	"github.com/bloomingFlower/auction-service/internal/query"
)

type stubCommands struct {
	placeBidErr *command.Error
	buyNowErr   *command.Error
}

func (s *stubCommands) HandlePlaceBid(ctx context.Context, cmd command.PlaceBid) *command.Error {
	return s.placeBidErr
}

func (s *stubCommands) HandleBuyNow(ctx context.Context, cmd command.BuyNow) *command.Error {
	return s.buyNowErr
}

type stubQueries struct {
	item    *models.Item
	itemErr error
	bids    []models.Bid
	topBid  *models.Bid
	status  models.ItemStatus
}

func (s *stubQueries) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return s.item, s.itemErr
}
func (s *stubQueries) ListItems(ctx context.Context) ([]models.Item, error) {
	if s.item == nil {
		return nil, nil
	}
	return []models.Item{*s.item}, nil
}
func (s *stubQueries) ListBids(ctx context.Context, itemID int64) ([]models.Bid, error) {
	return s.bids, nil
}
func (s *stubQueries) TopBid(ctx context.Context, itemID int64) (*models.Bid, error) {
	return s.topBid, nil
}
func (s *stubQueries) Status(ctx context.Context, itemID int64) (models.ItemStatus, error) {
	return s.status, nil
}

func TestPlaceBid_Accepted(t *testing.T) {
	h := httpapi.New(&stubCommands{}, &stubQueries{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bid", bytes.NewBufferString(`{"item_id":1,"bidder_id":"alice","bid_amount":20}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "message")
}

func TestPlaceBid_ValidationError(t *testing.T) {
	h := httpapi.New(&stubCommands{}, &stubQueries{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bid", bytes.NewBufferString(`{"item_id":1,"bidder_id":"","bid_amount":20}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestPlaceBid_CommandError(t *testing.T) {
	h := httpapi.New(&stubCommands{placeBidErr: &command.Error{Code: command.CodeLowBid, Message: "bid too low"}}, &stubQueries{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bid", bytes.NewBufferString(`{"item_id":1,"bidder_id":"alice","bid_amount":1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Contains(t, string(body), "LOW_BID")
}

func TestGetItem_NotFound(t *testing.T) {
	h := httpapi.New(&stubCommands{}, &stubQueries{itemErr: query.ErrItemNotFound}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/42", nil)
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestGetItem_Found(t *testing.T) {
	item := &models.Item{ID: 42, Title: "Vintage Lamp", Status: models.ItemActive}
	h := httpapi.New(&stubCommands{}, &stubQueries{item: item}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/42", nil)
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "Vintage Lamp")
}

func TestGetItem_InvalidID(t *testing.T) {
	h := httpapi.New(&stubCommands{}, &stubQueries{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/not-a-number", nil)
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestTopBid_NoBids(t *testing.T) {
	h := httpapi.New(&stubCommands{}, &stubQueries{topBid: nil}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/42/top-bid", nil)
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Result().StatusCode)
}

func TestTopBid_Found(t *testing.T) {
	bid := &models.Bid{ID: 1, ItemID: 42, BidderID: "alice", BidAmount: 20}
	h := httpapi.New(&stubCommands{}, &stubQueries{topBid: bid}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/42/top-bid", nil)
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "alice")
}

func TestHealthCheck(t *testing.T) {
	h := httpapi.New(&stubCommands{}, &stubQueries{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
}

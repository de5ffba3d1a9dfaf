package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomingFlower/auction-service/internal/command"
	"github.com/bloomingFlower/auction-service/internal/eventstore"
	"github.com/bloomingFlower/auction-service/internal/models"
	"github.com/bloomingFlower/auction-service/internal/query"
)

type stubReader struct {
	item *models.Item
	err  error
}

func (s *stubReader) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return s.item, s.err
}

type stubAppender struct {
	nextVersion  int64
	conflictsLeft int
	appended     []*models.Event
	appendErr    *eventstore.AppendError
}

func (s *stubAppender) NextVersion(ctx context.Context, aggregateID int64) (int64, error) {
	s.nextVersion++
	return s.nextVersion, nil
}

func (s *stubAppender) AppendAndPublish(ctx context.Context, event *models.Event) *eventstore.AppendError {
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return &eventstore.AppendError{Kind: eventstore.ErrKindVersionConflict}
	}
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, event)
	return nil
}

func testRetryPolicy() command.RetryPolicy {
	return command.RetryPolicy{MaxRetries: 5, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func activeItem() *models.Item {
	now := time.Now().UTC()
	return &models.Item{
		ID:            1,
		CurrentPrice:  10,
		BuyNowPrice:   100,
		Status:        models.ItemActive,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
	}
}

func TestHandlePlaceBid_Success(t *testing.T) {
	reader := &stubReader{item: activeItem()}
	appender := &stubAppender{}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 20})

	require.Nil(t, err)
	require.Len(t, appender.appended, 1)
	require.Equal(t, models.EventBidPlaced, appender.appended[0].EventType)
}

func TestHandlePlaceBid_LowBid(t *testing.T) {
	reader := &stubReader{item: activeItem()}
	appender := &stubAppender{}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 5})

	require.NotNil(t, err)
	require.Equal(t, command.CodeLowBid, err.Code)
	require.Empty(t, appender.appended)
}

func TestHandlePlaceBid_NotStarted(t *testing.T) {
	item := activeItem()
	item.Status = models.ItemScheduled
	item.StartTime = time.Now().UTC().Add(time.Hour)
	reader := &stubReader{item: item}
	appender := &stubAppender{}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 20})

	require.NotNil(t, err)
	require.Equal(t, command.CodeNotStarted, err.Code)
}

func TestHandlePlaceBid_AlreadyEnded(t *testing.T) {
	item := activeItem()
	item.Status = models.ItemCompleted
	reader := &stubReader{item: item}
	appender := &stubAppender{}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 20})

	require.NotNil(t, err)
	require.Equal(t, command.CodeAlreadyEnded, err.Code)
}

func TestHandlePlaceBid_NotFound(t *testing.T) {
	reader := &stubReader{err: query.ErrItemNotFound}
	appender := &stubAppender{}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 20})

	require.NotNil(t, err)
	require.Equal(t, command.CodeNotFound, err.Code)
}

func TestHandlePlaceBid_ConvertsToBuyNow(t *testing.T) {
	reader := &stubReader{item: activeItem()}
	appender := &stubAppender{}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 100})

	require.Nil(t, err)
	require.Len(t, appender.appended, 1)
	require.Equal(t, models.EventBuyNowExecuted, appender.appended[0].EventType)
}

func TestHandlePlaceBid_RetriesThenSucceeds(t *testing.T) {
	reader := &stubReader{item: activeItem()}
	appender := &stubAppender{conflictsLeft: 2}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 20})

	require.Nil(t, err)
	require.Len(t, appender.appended, 1)
}

func TestHandlePlaceBid_ExhaustsRetries(t *testing.T) {
	reader := &stubReader{item: activeItem()}
	appender := &stubAppender{conflictsLeft: 10}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandlePlaceBid(context.Background(), command.PlaceBid{ItemID: 1, BidderID: "alice", BidAmount: 20})

	require.NotNil(t, err)
	require.Equal(t, command.CodeConflict, err.Code)
	require.Empty(t, appender.appended)
}

func TestHandleBuyNow_Success(t *testing.T) {
	reader := &stubReader{item: activeItem()}
	appender := &stubAppender{}
	h := command.New(appender, reader, testRetryPolicy(), nil)

	err := h.HandleBuyNow(context.Background(), command.BuyNow{ItemID: 1, BuyerID: "bob"})

	require.Nil(t, err)
	require.Len(t, appender.appended, 1)
	require.Equal(t, models.EventBuyNowExecuted, appender.appended[0].EventType)
}

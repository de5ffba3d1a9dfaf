// Package httpapi exposes the command and query surfaces over HTTP.
// Grounded on the api-gateway's handlers.go: gorilla/mux routing, JSON
// respond/error helpers, and logging/CORS middleware, with println
// swapped for the structured logger already used across the rest of
// this module.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/bloomingFlower/auction-service/internal/command"
	"github.com/bloomingFlower/auction-service/internal/models"
	"github.com/bloomingFlower/auction-service/internal/query"
)

// Commands is the command pipeline this handler depends on;
// *command.Handler satisfies it.
type Commands interface {
	HandlePlaceBid(ctx context.Context, cmd command.PlaceBid) *command.Error
	HandleBuyNow(ctx context.Context, cmd command.BuyNow) *command.Error
}

// Queries is the read side this handler depends on; *query.Service
// satisfies it.
type Queries interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)
	ListBids(ctx context.Context, itemID int64) ([]models.Bid, error)
	TopBid(ctx context.Context, itemID int64) (*models.Bid, error)
	Status(ctx context.Context, itemID int64) (models.ItemStatus, error)
}

// Handler wires the command and query services into HTTP endpoints.
type Handler struct {
	commands Commands
	queries  Queries
	log      *slog.Logger
}

// New builds a Handler.
func New(commands Commands, queries Queries, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{commands: commands, queries: queries, log: log}
}

// Router builds the full mux.Router, including middleware.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/bid", h.PlaceBid).Methods("POST")
	api.HandleFunc("/buy-now", h.BuyNow).Methods("POST")
	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id}/bids", h.ListBids).Methods("GET")
	api.HandleFunc("/items/{id}/top-bid", h.TopBid).Methods("GET")
	api.HandleFunc("/items/{id}/status", h.Status).Methods("GET")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type placeBidRequest struct {
	ItemID    int64   `json:"item_id"`
	BidderID  string  `json:"bidder_id"`
	BidAmount float64 `json:"bid_amount"`
}

// PlaceBid handles POST /api/v1/bid.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.BidderID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "bidder_id is required")
		return
	}
	if req.BidAmount <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "bid_amount must be positive")
		return
	}

	cmdErr := h.commands.HandlePlaceBid(r.Context(), command.PlaceBid{
		ItemID:    req.ItemID,
		BidderID:  req.BidderID,
		BidAmount: req.BidAmount,
	})
	if cmdErr != nil {
		respondCommandError(w, cmdErr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "bid accepted"})
}

type buyNowRequest struct {
	ItemID  int64  `json:"item_id"`
	BuyerID string `json:"buyer_id"`
}

// BuyNow handles POST /api/v1/buy-now.
func (h *Handler) BuyNow(w http.ResponseWriter, r *http.Request) {
	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.BuyerID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "buyer_id is required")
		return
	}

	cmdErr := h.commands.HandleBuyNow(r.Context(), command.BuyNow{
		ItemID:  req.ItemID,
		BuyerID: req.BuyerID,
	})
	if cmdErr != nil {
		respondCommandError(w, cmdErr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "buy-now executed"})
}

// ListItems handles GET /api/v1/items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.queries.ListItems(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to list items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// GetItem handles GET /api/v1/items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDFromPath(w, r)
	if !ok {
		return
	}
	item, err := h.queries.GetItem(r.Context(), id)
	if errors.Is(err, query.ErrItemNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to get item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// ListBids handles GET /api/v1/items/{id}/bids.
func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDFromPath(w, r)
	if !ok {
		return
	}
	bids, err := h.queries.ListBids(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to list bids")
		return
	}
	respondJSON(w, http.StatusOK, bids)
}

// TopBid handles GET /api/v1/items/{id}/top-bid.
func (h *Handler) TopBid(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDFromPath(w, r)
	if !ok {
		return
	}
	bid, err := h.queries.TopBid(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to get top bid")
		return
	}
	if bid == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, bid)
}

// Status handles GET /api/v1/items/{id}/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDFromPath(w, r)
	if !ok {
		return
	}
	status, err := h.queries.Status(r.Context(), id)
	if errors.Is(err, query.ErrItemNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to get status")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func itemIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "item id must be an integer")
		return 0, false
	}
	return id, true
}

// commandStatus maps a command.Code to its HTTP status.
func commandStatus(code command.Code) int {
	switch code {
	case command.CodeNotFound:
		return http.StatusNotFound
	case command.CodeNotStarted, command.CodeAlreadyEnded, command.CodeLowBid:
		return http.StatusBadRequest
	case command.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondCommandError(w http.ResponseWriter, err *command.Error) {
	respondError(w, commandStatus(err.Code), string(err.Code), err.Message)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, map[string]string{
		"code":  code,
		"error": message,
	})
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Info("http request", "method", r.Method, "path", r.RequestURI, "duration", time.Since(start).String())
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

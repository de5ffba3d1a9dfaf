package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler serves the WebSocket surface: GET /ws/items/{id} and
// GET /ws/items/{id}/stats.
type Handler struct {
	manager *Manager
	log     *slog.Logger
}

// NewHandler builds a Handler over manager.
func NewHandler(manager *Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{manager: manager, log: log}
}

// Register adds the WebSocket routes to router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/ws/items/{id}", h.HandleWebSocket)
	router.HandleFunc("/ws/items/{id}/stats", h.Stats).Methods("GET")
}

// HandleWebSocket upgrades the connection and registers it as a
// subscriber to one item's updates.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "item id must be an integer", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		ItemID: itemID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.manager.RegisterClient(client)
	client.StartReadPump(h.manager.unregister)

	welcome, _ := json.Marshal(map[string]any{"type": "connected", "item_id": itemID, "client_id": client.ID})
	client.Send <- welcome
}

// Stats returns the current subscriber count for one item.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "item id must be an integer", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"item_id":     itemID,
		"subscribers": h.manager.SubscriberCount(itemID),
	})
}

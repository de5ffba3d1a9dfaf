package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Manager fans a Message out to every WebSocket client watching its
// item. One Manager serves every item; clients are keyed by item ID
// under a sync.Map to avoid a single global lock on the hot path.
type Manager struct {
	subscribers sync.Map // map[int64]*sync.Map (map[*Client]bool)

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	log *slog.Logger
}

// Client is one connected WebSocket subscriber.
type Client struct {
	ID     string
	ItemID int64
	Conn   *websocket.Conn
	Send   chan []byte
}

// NewManager builds a Manager. Call Run in its own goroutine before
// registering any clients.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		log:        log,
	}
}

// Run is the Manager's event loop.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		case msg := <-m.broadcast:
			m.broadcastToItem(msg.ItemID, msg.Payload)
		}
	}
}

// RegisterClient adds client to the manager and starts its write pump.
func (m *Manager) RegisterClient(client *Client) { m.register <- client }

// UnregisterClient removes client and closes its connection.
func (m *Manager) UnregisterClient(client *Client) { m.unregister <- client }

// Broadcast fans payload out to every client watching itemID.
func (m *Manager) Broadcast(itemID int64, payload []byte) {
	m.broadcast <- &Message{ItemID: itemID, Payload: payload}
}

func (m *Manager) registerClient(client *Client) {
	subscribers, _ := m.subscribers.LoadOrStore(client.ItemID, &sync.Map{})
	subscribers.(*sync.Map).Store(client, true)
	m.log.Info("client subscribed", "client_id", client.ID, "item_id", client.ItemID)
	go client.writePump()
}

func (m *Manager) unregisterClient(client *Client) {
	if subscribers, ok := m.subscribers.Load(client.ItemID); ok {
		subscribers.(*sync.Map).Delete(client)
	}
	close(client.Send)
	client.Conn.Close()
	m.log.Info("client unsubscribed", "client_id", client.ID, "item_id", client.ItemID)
}

func (m *Manager) broadcastToItem(itemID int64, payload []byte) {
	subscribers, ok := m.subscribers.Load(itemID)
	if !ok {
		return
	}
	subscribers.(*sync.Map).Range(func(key, _ interface{}) bool {
		client := key.(*Client)
		select {
		case client.Send <- payload:
		default:
			// Slow client; drop it rather than block every other subscriber.
			// Closing the connection ends its read pump, which unregisters it.
			subscribers.(*sync.Map).Delete(client)
			client.Conn.Close()
		}
		return true
	})
}

// SubscriberCount returns how many clients are watching itemID.
func (m *Manager) SubscriberCount(itemID int64) int {
	subscribers, ok := m.subscribers.Load(itemID)
	if !ok {
		return 0
	}
	count := 0
	subscribers.(*sync.Map).Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(unregister chan *Client) {
	defer func() { unregister <- c }()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
		// Clients are read-only subscribers; inbound frames are discarded
		// once they've served their purpose of keeping the connection live.
	}
}

// StartReadPump starts the read pump that detects client disconnects.
func (c *Client) StartReadPump(unregister chan *Client) {
	go c.readPump(unregister)
}

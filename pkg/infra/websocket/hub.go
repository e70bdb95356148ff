// Package websocket gives operators a live feed of payment lifecycle
// events: a register/unregister/broadcast channel loop with a
// per-client Send/Disconnect shape, rooming clients by merchant ID so
// a merchant's dashboard only receives its own payments' events.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// UpgradeHandler upgrades an HTTP connection and registers the
// resulting client with the hub; the client then subscribes to a
// merchant's events via the {"type":"subscribe",...} handshake
// ReadPump understands.
func (h *Hub) UpgradeHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.ErrorContext(ctx, "failed to upgrade websocket connection", "err", err)
			return
		}

		client := &Client{
			ID:         uuid.New(),
			Conn:       conn,
			Send:       make(chan *Message, 256),
			Disconnect: make(chan struct{}),
		}

		h.RegisterClient(client)
		go client.WritePump()
		go client.ReadPump(h)
	}
}

const (
	MessageTypePaymentStatusChanged = "payment.status_changed"
	MessageTypeTransferObserved     = "transfer.observed"
	MessageTypeSweepCompleted       = "sweep.completed"
)

// Message is the wire protocol format sent to subscribed operator
// clients.
type Message struct {
	Type       string          `json:"type"`
	MerchantID *uuid.UUID      `json:"merchant_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
}

// Client represents one connected operator dashboard connection.
type Client struct {
	ID         uuid.UUID
	Conn       *websocket.Conn
	Send       chan *Message
	MerchantID *uuid.UUID
	Disconnect chan struct{}
}

// Hub manages all WebSocket connections and broadcasts.
type Hub struct {
	clients       map[uuid.UUID]*Client
	merchantRooms map[uuid.UUID]map[uuid.UUID]*Client
	register      chan *Client
	unregister    chan *Client
	broadcast     chan *Message
	mu            sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:       make(map[uuid.UUID]*Client),
		merchantRooms: make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:      make(chan *Client, 256),
		unregister:    make(chan *Client, 256),
		broadcast:     make(chan *Message, 1024),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Run starts the hub's main event loop; it returns once ctx is
// cancelled, after closing every connected client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if client.MerchantID != nil {
		if _, exists := h.merchantRooms[*client.MerchantID]; !exists {
			h.merchantRooms[*client.MerchantID] = make(map[uuid.UUID]*Client)
		}
		h.merchantRooms[*client.MerchantID][client.ID] = client
	}

	slog.Info("websocket client connected", "client_id", client.ID, "merchant_id", client.MerchantID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.ID]; exists {
		delete(h.clients, client.ID)
		if client.MerchantID != nil {
			delete(h.merchantRooms[*client.MerchantID], client.ID)
			if len(h.merchantRooms[*client.MerchantID]) == 0 {
				delete(h.merchantRooms, *client.MerchantID)
			}
		}
		close(client.Send)
		slog.Info("websocket client disconnected", "client_id", client.ID)
	}
}

func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.MerchantID != nil {
		for _, client := range h.merchantRooms[*message.MerchantID] {
			h.send(client, message)
		}
		return
	}
	for _, client := range h.clients {
		h.send(client, message)
	}
}

func (h *Hub) send(client *Client, message *Message) {
	select {
	case client.Send <- message:
	default:
		slog.Warn("client send buffer full", "client_id", client.ID)
	}
}

// BroadcastPaymentStatusChanged notifies a merchant's connected
// dashboards that one of its payments transitioned.
func (h *Hub) BroadcastPaymentStatusChanged(merchantID uuid.UUID, payload interface{}) {
	h.broadcastTyped(MessageTypePaymentStatusChanged, &merchantID, payload)
}

// BroadcastTransferObserved notifies that a new on-chain transfer was
// recorded, before it has necessarily been matched to a payment.
func (h *Hub) BroadcastTransferObserved(payload interface{}) {
	h.broadcastTyped(MessageTypeTransferObserved, nil, payload)
}

// BroadcastSweepCompleted notifies that a deposit address was swept to
// the master wallet.
func (h *Hub) BroadcastSweepCompleted(payload interface{}) {
	h.broadcastTyped(MessageTypeSweepCompleted, nil, payload)
}

func (h *Hub) broadcastTyped(msgType string, merchantID *uuid.UUID, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal websocket payload", "type", msgType, "err", err)
		return
	}

	h.broadcast <- &Message{
		Type:       msgType,
		MerchantID: merchantID,
		Payload:    body,
		Timestamp:  time.Now().Unix(),
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
	}
	slog.Info("websocket hub shut down")
}

func (h *Hub) ConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) MerchantClientsCount(merchantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.merchantRooms[merchantID])
}

// WritePump relays hub-queued messages to the underlying connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Error("websocket write error", "client_id", c.ID, "err", err)
				return
			}
		case <-c.Disconnect:
			return
		}
	}
}

// ReadPump only handles the client's subscription handshake
// ({"type":"subscribe","merchant_id":"..."}) — operator dashboards
// never push payment commands over this channel.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)

	for {
		var msg map[string]interface{}
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read error", "err", err)
			}
			break
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "subscribe" {
			if merchantIDStr, ok := msg["merchant_id"].(string); ok {
				if merchantID, err := uuid.Parse(merchantIDStr); err == nil {
					c.MerchantID = &merchantID
					hub.register <- c
				}
			}
		}
	}
}

package kds

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

// Event types
const (
	EventOrderUpdate  = "order_update"
	EventNotification = "notification"
	EventChatMessage  = "chat_message"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // identity is checked before the upgrade
	},
}

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Audience selects connected identities. A nil ID means every identity of
// Party; PartyAll reaches everyone except guests.
type Audience struct {
	Party models.PartyType
	ID    *uint
}

func (a Audience) Matches(id models.Identity) bool {
	if id.IsGuest() {
		return false
	}
	if a.Party == models.PartyAll {
		return true
	}
	if a.Party != id.Party() {
		return false
	}
	if a.ID == nil {
		return true
	}
	pid := id.PartyID()
	return pid != nil && *pid == *a.ID
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity models.Identity
	send     chan []byte
}

// Hub holds every live connection of the process. Construct one at start and
// Close it on shutdown.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Serve registers conn for identity and blocks until the peer goes away.
func (h *Hub) Serve(conn *websocket.Conn, identity models.Identity) {
	c := &Client{hub: h, conn: conn, identity: identity, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// SendTo queues msg for every connection the audience covers. Slow clients
// whose buffer is full are dropped.
func (h *Hub) SendTo(audience Audience, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Errorf("Error marshaling message: %v", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for c := range h.clients {
		if !audience.Matches(c.identity) {
			continue
		}
		select {
		case c.send <- data:
			sent++
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.InfoLogger.WithField("identity", c.identity.Key()).Warnf("websocket error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jansahayak/agent/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Commands are small JSON.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionController is the slice of the session driver the hub needs:
// user commands in, state snapshots out.
type SessionController interface {
	Start()
	Stop()
	SetRegion(region string)
	SetLanguage(code string)
	Snapshot() usecase.Snapshot
}

// Hub maintains the set of connected UI viewers and fans driver snapshots
// out to all of them. Every viewer sees the same session.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Snapshot envelopes queued for broadcast.
	broadcast chan []byte

	mu sync.RWMutex

	controller SessionController
	logger     *zap.Logger
}

// NewHub creates a hub over the given session controller.
func NewHub(controller SessionController, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		controller: controller,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("viewer connected", zap.String("remote", client.remote))

			// A fresh viewer gets the current state immediately.
			if payload, err := stateEnvelope(h.controller.Snapshot()); err == nil {
				client.trySend(payload)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("viewer disconnected", zap.String("remote", client.remote))

		case payload := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.trySend(payload)
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues a snapshot for broadcast. It never blocks; under pressure
// stale snapshots are dropped, the next one carries the full state anyway.
func (h *Hub) Publish(snapshot usecase.Snapshot) {
	payload, err := stateEnvelope(snapshot)
	if err != nil {
		h.logger.Error("snapshot marshal failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	remote string
	logger *zap.Logger
}

// trySend drops the payload when the client's queue is full rather than
// stalling the hub.
func (c *Client) trySend(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

// HandleWebSocket upgrades the request and attaches the viewer to the hub.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		remote: conn.RemoteAddr().String(),
		logger: logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps commands from the websocket connection into the driver.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.handleCommand(message)
	}
}

func (c *Client) handleCommand(raw []byte) {
	cmd, err := parseCommand(raw)
	if err != nil {
		c.logger.Warn("bad command", zap.Error(err))
		return
	}

	switch cmd.Type {
	case CommandStart:
		c.hub.controller.Start()
	case CommandStop:
		c.hub.controller.Stop()
	case CommandSetRegion:
		c.hub.controller.SetRegion(cmd.Region)
	case CommandSetLanguage:
		c.hub.controller.SetLanguage(cmd.LanguageCode)
	default:
		c.logger.Warn("unknown command type", zap.String("type", cmd.Type))
	}
}

// writePump pumps snapshots from the hub to the websocket connection.
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
				c.logger.Error("Failed to write message", zap.Error(err))
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

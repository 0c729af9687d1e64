// server/ws/hub.go
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ItemCreated  = "item_created"
	ItemUpdated  = "item_updated"
	ItemMoved    = "item_moved"
	ItemDeleted  = "item_deleted"
	CacheCleared = "cache_cleared"
)

type Message struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	ItemID string    `json:"item_id,omitempty"`
	Folder string    `json:"folder,omitempty"`
	Origin string    `json:"origin"`
	Time   time.Time `json:"time"`
}

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// ReadConn is a connection the hub also reads from.
type ReadConn interface {
	Conn
	ReadJSON(v any) error
}

type client struct {
	conn Conn
	peer string
}

type Hub struct {
	serverID   string
	clients    map[Conn]client
	broadcast  chan Message
	register   chan client
	unregister chan Conn
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewHub(serverID string, log zerolog.Logger) *Hub {
	return &Hub{
		serverID:   serverID,
		clients:    make(map[Conn]client),
		broadcast:  make(chan Message, 256),
		register:   make(chan client),
		unregister: make(chan Conn),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) ServerID() string {
	return h.serverID
}

// Run delivers messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			h.mu.Unlock()
			h.log.Debug().Str("peer", c.peer).Msg("websocket client registered")

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var failed []Conn
			for conn := range h.clients {
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Warn().Err(err).Msg("websocket write failed")
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range failed {
				h.drop(conn)
			}
		}
	}
}

func (h *Hub) drop(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Broadcast stamps a new message from this server and queues it.
func (h *Hub) Broadcast(msgType, itemID, folder string) Message {
	msg := Message{
		ID:     uuid.NewString(),
		Type:   msgType,
		ItemID: itemID,
		Folder: folder,
		Origin: h.serverID,
		Time:   time.Now().UTC(),
	}
	h.send(msg)
	return msg
}

// BroadcastLocal relays msg unchanged, keeping its id and origin.
func (h *Hub) BroadcastLocal(msg Message) {
	h.send(msg)
}

func (h *Hub) send(msg Message) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) Register(conn Conn, peer string) {
	select {
	case h.register <- client{conn: conn, peer: peer}:
	case <-h.done:
		conn.Close()
	}
}

func (h *Hub) Unregister(conn Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection registers conn and blocks until it stops reading.
func (h *Hub) HandleConnection(conn ReadConn, peer string) {
	h.Register(conn, peer)
	defer h.Unregister(conn)

	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msgType, _ := msg["type"].(string); msgType == "subscribe" {
			h.log.Debug().Str("peer", peer).Msg("client subscribed")
		}
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler serves /ws. Peers identify themselves with ?server_id=.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.HandleConnection(c, c.Query("server_id"))
	})
}

// server/peer/peer.go
package peer

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ViniZap4/lumi-drive/ws"
)

const (
	reconnectDelay = 5 * time.Second
	seenLimit      = 1024
)

// Invalidator drops cached listings after a remote change.
type Invalidator interface {
	InvalidateListings()
}

// Relay re-broadcasts a peer message to local clients.
type Relay interface {
	BroadcastLocal(msg ws.Message)
}

// Manager maintains outbound websocket connections to peer servers.
type Manager struct {
	peerURLs []string
	serverID string
	cache    Invalidator
	relay    Relay
	dialer   *websocket.Dialer
	delay    time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func NewManager(peerURLs []string, serverID string, cache Invalidator, relay Relay, log zerolog.Logger) *Manager {
	return &Manager{
		peerURLs: peerURLs,
		serverID: serverID,
		cache:    cache,
		relay:    relay,
		dialer:   websocket.DefaultDialer,
		delay:    reconnectDelay,
		log:      log,
		seen:     make(map[string]struct{}),
	}
}

// Start launches one connection loop per peer; they stop with ctx.
func (m *Manager) Start(ctx context.Context) {
	for _, peerURL := range m.peerURLs {
		go m.connectLoop(ctx, peerURL)
	}
}

func (m *Manager) connectLoop(ctx context.Context, peerURL string) {
	for {
		m.connect(ctx, peerURL)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.delay):
		}
		m.log.Debug().Str("peer", peerURL).Msg("reconnecting to peer")
	}
}

func (m *Manager) connect(ctx context.Context, peerURL string) {
	u, err := url.Parse(peerURL)
	if err != nil {
		m.log.Error().Err(err).Str("peer", peerURL).Msg("invalid peer url")
		return
	}
	q := u.Query()
	q.Set("server_id", m.serverID)
	u.RawQuery = q.Encode()

	conn, _, err := m.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		m.log.Warn().Err(err).Str("peer", peerURL).Msg("peer dial failed")
		return
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	m.log.Info().Str("peer", peerURL).Msg("connected to peer")
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.log.Warn().Err(err).Str("peer", peerURL).Msg("peer connection lost")
			}
			return
		}
		var msg ws.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			m.log.Warn().Err(err).Msg("peer message parse failed")
			continue
		}
		m.Apply(msg)
	}
}

// Apply handles one message from a peer and reports whether it was acted on.
// Messages from this server and repeats are ignored.
func (m *Manager) Apply(msg ws.Message) bool {
	if msg.Origin == m.serverID || !m.markSeen(msg.ID) {
		return false
	}
	switch msg.Type {
	case ws.ItemCreated, ws.ItemUpdated, ws.ItemMoved, ws.ItemDeleted, ws.CacheCleared:
	default:
		return false
	}
	m.cache.InvalidateListings()
	m.relay.BroadcastLocal(msg)
	return true
}

func (m *Manager) markSeen(id string) bool {
	if id == "" {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[id]; ok {
		return false
	}
	m.seen[id] = struct{}{}
	m.order = append(m.order, id)
	if len(m.order) > seenLimit {
		delete(m.seen, m.order[0])
		m.order = m.order[1:]
	}
	return true
}

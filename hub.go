package main

import (
	"sync"

	"go.uber.org/zap"

	"arena-server/game"
	"arena-server/protocol"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// World is the slice of the arena the transport needs
type World interface {
	Connect(playerID string) error
	Disconnect(playerID string) error
	Deliver(playerID string, env protocol.InEnvelope) bool
}

// Hub tracks connected clients and fans arena events out to them
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	world   World
	log     *zap.Logger
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub creates a Hub; SetWorld must be called before Register
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		ipConns: make(map[string]int),
		log:     log,
	}
}

// SetWorld attaches the arena. The arena also needs the hub as its emitter,
// so one of the two is wired after construction.
func (h *Hub) SetWorld(w World) {
	h.world = w
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Register adds the client and queues its player in the arena. It runs on
// the /ws handler before the pumps start, so the arena sees the connect
// ahead of any message or disconnect from the same client.
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	h.clients[client.playerID] = client
	h.mu.Unlock()

	// Not under h.mu: the arena may be blocked in Emit
	if err := h.world.Connect(client.playerID); err != nil {
		h.drop(client)
		return err
	}
	return nil
}

// Unregister removes the client and queues the player's removal. Called once
// by ReadPump when the connection ends.
func (h *Hub) Unregister(client *Client) {
	if !h.drop(client) {
		return
	}
	if err := h.world.Disconnect(client.playerID); err != nil {
		h.log.Debug("disconnect after shutdown", zap.String("player", client.playerID), zap.Error(err))
	}
}

// drop deletes the client and closes its send channel; false if already gone
func (h *Hub) drop(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[client.playerID]; !ok || cur != client {
		return false
	}
	delete(h.clients, client.playerID)
	close(client.send)
	return true
}

// Emit encodes an arena event once and queues it on every addressed client.
// gameState goes out as msgpack to clients that asked for binary snapshots.
func (h *Hub) Emit(evt game.Event) {
	data, err := protocol.Encode(evt.Name, evt.Data)
	if err != nil {
		h.log.Error("encode event", zap.String("type", evt.Name), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if evt.To != "" {
		if c, ok := h.clients[evt.To]; ok {
			c.SendRaw(data)
		}
		return
	}

	var bin []byte
	for id, c := range h.clients {
		if id == evt.Except {
			continue
		}
		if c.binary && evt.Name == protocol.MsgGameState {
			if bin == nil {
				bin = h.encodeBinary(evt.Data)
			}
			if bin != nil {
				c.SendBinary(bin)
				continue
			}
		}
		c.SendRaw(data)
	}
}

func (h *Hub) encodeBinary(data any) []byte {
	gs, ok := data.(protocol.GameState)
	if !ok {
		return nil
	}
	b, err := protocol.EncodeStateBinary(gs)
	if err != nil {
		h.log.Error("encode binary state", zap.Error(err))
		return nil
	}
	return b
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"arena-server/protocol"
)

// Coin is a collectible worth Value points
type Coin struct {
	ID        string
	X, Y      float64
	Size      float64
	Value     int
	CreatedAt time.Time
	ExpiresAt time.Time
	seq       int
}

// ToState converts to protocol state
func (c *Coin) ToState() protocol.CoinState {
	return protocol.CoinState{
		ID:        c.ID,
		X:         c.X,
		Y:         c.Y,
		Size:      c.Size,
		Value:     c.Value,
		CreatedAt: c.CreatedAt.UnixMilli(),
	}
}

// CoinManager owns live coins and their expiry deadlines
type CoinManager struct {
	coins  map[string]*Coin
	nextID int
	rng    *rand.Rand
	log    *zap.Logger
}

// NewCoinManager creates an empty CoinManager
func NewCoinManager(rng *rand.Rand, log *zap.Logger) *CoinManager {
	if rng == nil {
		rng = NewRand()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CoinManager{
		coins: make(map[string]*Coin),
		rng:   rng,
		log:   log,
	}
}

// Spawn places a coin that expires after CoinLifetime. Non-finite
// coordinates are rejected.
func (m *CoinManager) Spawn(x, y float64, now time.Time) (*protocol.CoinState, []Event) {
	if !isFinite(x) || !isFinite(y) {
		m.log.Warn("coin spawn rejected: invalid position", zap.Float64("x", x), zap.Float64("y", y))
		return nil, nil
	}
	m.nextID++
	c := &Coin{
		ID:        fmt.Sprintf("coin-%d", m.nextID),
		X:         x,
		Y:         y,
		Size:      CoinSize,
		Value:     CoinValue,
		CreatedAt: now,
		ExpiresAt: now.Add(CoinLifetime),
		seq:       m.nextID,
	}
	m.coins[c.ID] = c
	state := c.ToState()
	return &state, []Event{Broadcast(protocol.MsgCoinSpawned, state)}
}

// SpawnAmbient drops a coin at a random in-bounds position while fewer than
// MaxAmbientCoins are live
func (m *CoinManager) SpawnAmbient(now time.Time) []Event {
	if len(m.coins) >= MaxAmbientCoins {
		return nil
	}
	x := SpawnMargin + m.rng.Float64()*(WorldWidth-2*SpawnMargin)
	y := UITopMargin + SpawnMargin + m.rng.Float64()*(WorldHeight-UITopMargin-2*SpawnMargin)
	_, events := m.Spawn(x, y, now)
	return events
}

// DropAtDefeat spawns a coin near a defeated player
func (m *CoinManager) DropAtDefeat(player *protocol.PlayerState, now time.Time) (*protocol.CoinState, []Event) {
	if player == nil {
		m.log.Warn("coin drop rejected: no player")
		return nil, nil
	}
	if !isFinite(player.X) || !isFinite(player.Y) {
		m.log.Warn("coin drop rejected: invalid position", zap.String("player", player.ID))
		return nil, nil
	}
	jx := (m.rng.Float64() - 0.5) * CoinDropJitter
	jy := (m.rng.Float64() - 0.5) * CoinDropJitter
	return m.Spawn(player.X+jx, player.Y+jy, now)
}

// Remove deletes a coin; the broadcast carries whether it expired or was collected
func (m *CoinManager) Remove(id string, expired bool) []Event {
	if _, ok := m.coins[id]; !ok {
		return nil
	}
	delete(m.coins, id)
	reason := protocol.CoinCollected
	if expired {
		reason = protocol.CoinExpired
	}
	return []Event{Broadcast(protocol.MsgCoinRemoved, protocol.CoinRemovedMsg{ID: id, Reason: reason})}
}

// Collect removes a coin on behalf of collectorID and returns its value for
// the caller to credit. Unknown ids return nil.
func (m *CoinManager) Collect(id, collectorID string) (*protocol.CoinCollectedMsg, []Event) {
	c, ok := m.coins[id]
	if !ok {
		return nil, nil
	}
	events := m.Remove(id, false)
	msg := protocol.CoinCollectedMsg{ID: id, PlayerID: collectorID, Value: c.Value}
	events = append(events, Broadcast(protocol.MsgCoinCollected, msg))
	return &msg, events
}

// ExpireDue removes every coin whose lifetime has elapsed
func (m *CoinManager) ExpireDue(now time.Time) []Event {
	var events []Event
	for _, c := range m.ordered() {
		if !now.Before(c.ExpiresAt) {
			events = append(events, m.Remove(c.ID, true)...)
		}
	}
	return events
}

// Nearby returns the ids of coins within radius of (x, y), oldest first
func (m *CoinManager) Nearby(x, y, radius float64) []string {
	var ids []string
	for _, c := range m.ordered() {
		if CheckCollision(x, y, radius, c.X, c.Y, 0) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Count returns the number of live coins
func (m *CoinManager) Count() int {
	return len(m.coins)
}

// States returns at most MaxCoinsPerSnapshot coins, oldest first
func (m *CoinManager) States() []protocol.CoinState {
	ordered := m.ordered()
	if len(ordered) > MaxCoinsPerSnapshot {
		ordered = ordered[:MaxCoinsPerSnapshot]
	}
	out := make([]protocol.CoinState, 0, len(ordered))
	for _, c := range ordered {
		out = append(out, c.ToState())
	}
	return out
}

func (m *CoinManager) ordered() []*Coin {
	out := make([]*Coin, 0, len(m.coins))
	for _, c := range m.coins {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

package game

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"arena-server/protocol"
)

// Input is the held-key snapshot last reported by a client
type Input struct {
	Left, Right, Up, Down bool
}

// axes resolves the input into independent horizontal/vertical signs;
// opposing keys cancel.
func (in Input) axes() (int, int) {
	dx, dy := 0, 0
	if in.Left {
		dx--
	}
	if in.Right {
		dx++
	}
	if in.Up {
		dy--
	}
	if in.Down {
		dy++
	}
	return dx, dy
}

// Active reports whether the input drives movement this tick
func (in Input) Active() bool {
	dx, dy := in.axes()
	return dx != 0 || dy != 0
}

// Player represents a connected player
type Player struct {
	ID        string
	Name      string
	X, Y      float64
	Direction Direction
	Moving    bool
	Health    int
	Ammo      int
	Score     int
	Defeated  bool
	LastHit   time.Time
	Input     Input

	KnockbackX, KnockbackY float64
	KnockbackFrames        int
}

// ToState converts to protocol state
func (p *Player) ToState() protocol.PlayerState {
	return protocol.PlayerState{
		ID:        p.ID,
		X:         p.X,
		Y:         p.Y,
		Direction: string(p.Direction),
		Moving:    p.Moving,
		Health:    p.Health,
		Ammo:      p.Ammo,
		Score:     p.Score,
		Name:      p.Name,
		Defeated:  p.Defeated,
	}
}

func (p *Player) inHitCooldown(now time.Time) bool {
	return !p.LastHit.IsZero() && now.Sub(p.LastHit) < HitCooldown
}

func (p *Player) applyKnockback(vx, vy float64, frames int) {
	p.KnockbackX = vx
	p.KnockbackY = vy
	p.KnockbackFrames = frames
}

func (p *Player) clearKnockback() {
	p.KnockbackX, p.KnockbackY, p.KnockbackFrames = 0, 0, 0
}

func (p *Player) clampToWorld() {
	p.X = Clamp(p.X, 0, WorldWidth)
	p.Y = Clamp(p.Y, 0, WorldHeight)
}

// PlayerManager owns the player map. Every mutation goes through its methods;
// callers only ever receive protocol.PlayerState copies.
type PlayerManager struct {
	players map[string]*Player
	rng     *rand.Rand
	log     *zap.Logger
}

// NewPlayerManager creates an empty PlayerManager
func NewPlayerManager(rng *rand.Rand, log *zap.Logger) *PlayerManager {
	if rng == nil {
		rng = NewRand()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PlayerManager{
		players: make(map[string]*Player),
		rng:     rng,
		log:     log,
	}
}

// Create adds a player with a random in-bounds spawn and default stats.
// Everyone but the new player is told about it.
func (m *PlayerManager) Create(id string) (protocol.PlayerState, []Event) {
	if p, ok := m.players[id]; ok {
		return p.ToState(), nil
	}
	p := &Player{
		ID:        id,
		Name:      DefaultPlayerName,
		X:         SpawnMargin + m.rng.Float64()*(WorldWidth-2*SpawnMargin),
		Y:         UITopMargin + SpawnMargin + m.rng.Float64()*(WorldHeight-UITopMargin-2*SpawnMargin),
		Direction: DirDown,
		Health:    PlayerMaxHealth,
		Ammo:      PlayerMaxAmmo,
	}
	m.players[id] = p
	state := p.ToState()
	return state, []Event{BroadcastExcept(id, protocol.MsgNewPlayer, state)}
}

// Remove deletes a player and tells everyone
func (m *PlayerManager) Remove(id string) []Event {
	if _, ok := m.players[id]; !ok {
		return nil
	}
	delete(m.players, id)
	return []Event{Broadcast(protocol.MsgPlayerDisconnected, protocol.IDMsg{ID: id})}
}

// Has reports whether id is a live player
func (m *PlayerManager) Has(id string) bool {
	_, ok := m.players[id]
	return ok
}

// Count returns the number of players
func (m *PlayerManager) Count() int {
	return len(m.players)
}

// State returns a copy of one player's public state
func (m *PlayerManager) State(id string) (protocol.PlayerState, bool) {
	p, ok := m.players[id]
	if !ok {
		return protocol.PlayerState{}, false
	}
	return p.ToState(), true
}

// States returns every player's public state, ordered by id
func (m *PlayerManager) States() []protocol.PlayerState {
	out := make([]protocol.PlayerState, 0, len(m.players))
	for _, p := range m.ordered() {
		out = append(out, p.ToState())
	}
	return out
}

// StateMap returns the currentPlayers payload
func (m *PlayerManager) StateMap() map[string]protocol.PlayerState {
	out := make(map[string]protocol.PlayerState, len(m.players))
	for id, p := range m.players {
		out[id] = p.ToState()
	}
	return out
}

// SetInput overwrites the stored input snapshot
func (m *PlayerManager) SetInput(id string, in Input) bool {
	p, ok := m.players[id]
	if !ok {
		return false
	}
	p.Input = in
	return true
}

// SetName trims and truncates name, then broadcasts it
func (m *PlayerManager) SetName(id, name string) []Event {
	p, ok := m.players[id]
	if !ok {
		m.log.Debug("setName for unknown player", zap.String("player", id))
		return nil
	}
	name = strings.TrimSpace(name)
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	if name == "" {
		name = DefaultPlayerName
	}
	p.Name = name
	return []Event{Broadcast(protocol.MsgPlayerNameUpdate, protocol.NameUpdateMsg{ID: id, Name: name})}
}

// RequestDefeat zeroes health and marks the player defeated. Repeated calls
// are no-ops so the defeat is broadcast once.
func (m *PlayerManager) RequestDefeat(id, attackerID string) []Event {
	p, ok := m.players[id]
	if !ok || p.Defeated {
		return nil
	}
	p.Health = 0
	p.Defeated = true
	p.Moving = false
	p.Input = Input{}
	p.clearKnockback()
	return []Event{Broadcast(protocol.MsgPlayerDefeated, protocol.DefeatedMsg{PlayerID: id, AttackerID: attackerID})}
}

// Respawn places the player at a random named respawn point with fresh stats
func (m *PlayerManager) Respawn(id string) []Event {
	p, ok := m.players[id]
	if !ok {
		return nil
	}
	point := RespawnPoints[m.rng.Intn(len(RespawnPoints))]
	p.X, p.Y = point.X, point.Y
	p.Health = PlayerMaxHealth
	p.Ammo = PlayerMaxAmmo
	p.Defeated = false
	p.Moving = false
	p.clearKnockback()
	return []Event{Broadcast(protocol.MsgPlayerRespawned, protocol.RespawnedMsg{
		PlayerID:   id,
		X:          p.X,
		Y:          p.Y,
		Health:     p.Health,
		Ammo:       p.Ammo,
		Score:      p.Score,
		SpawnPoint: point.Name,
	})}
}

// ReloadAmmo refills ammo; the change shows up in the next snapshot
func (m *PlayerManager) ReloadAmmo(id string) bool {
	p, ok := m.players[id]
	if !ok {
		return false
	}
	p.Ammo = PlayerMaxAmmo
	return true
}

// ApplyHit applies damage unless the target is missing, already defeated or
// still inside its hit cooldown. Reaching zero health triggers the defeat.
func (m *PlayerManager) ApplyHit(targetID, attackerID string, damage int, now time.Time) (bool, []Event) {
	p, ok := m.players[targetID]
	if !ok || p.Defeated || p.inHitCooldown(now) {
		return false, nil
	}
	if damage < 0 {
		damage = 0
	}
	p.Health -= damage
	if p.Health < 0 {
		p.Health = 0
	}
	p.LastHit = now
	if p.Health == 0 {
		return true, m.RequestDefeat(targetID, attackerID)
	}
	return true, nil
}

// IncreaseScore adds points and broadcasts the new total
func (m *PlayerManager) IncreaseScore(id string, points float64) (bool, []Event) {
	p, ok := m.players[id]
	if !ok || !isFinite(points) {
		m.log.Debug("increaseScore rejected", zap.String("player", id), zap.Float64("points", points))
		return false, nil
	}
	p.Score += int(math.Round(points))
	if p.Score < 0 {
		p.Score = 0
	}
	return true, []Event{Broadcast(protocol.MsgPlayerScoreUpdate, protocol.ScoreUpdateMsg{PlayerID: id, Score: p.Score})}
}

// Advance integrates movement for one tick and reports animation changes
func (m *PlayerManager) Advance(dt float64) []Event {
	var events []Event
	for _, p := range Advance(m.ordered(), dt) {
		events = append(events, Broadcast(protocol.MsgPlayerMoved, protocol.PlayerMovedMsg{
			ID:        p.ID,
			X:         p.X,
			Y:         p.Y,
			Direction: string(p.Direction),
			Moving:    p.Moving,
		}))
	}
	return events
}

// ResolveCollisions runs the pairwise separation pass
func (m *PlayerManager) ResolveCollisions() {
	ResolveCollisions(m.ordered())
}

func (m *PlayerManager) get(id string) *Player {
	return m.players[id]
}

// ordered returns players sorted by id so every pass is deterministic
func (m *PlayerManager) ordered() []*Player {
	out := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package game

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"arena-server/protocol"
)

// Obstacle is a destructible block. OriginalID links a respawned obstacle to
// the first obstacle of its lineage.
type Obstacle struct {
	ID         string
	OriginalID string
	X, Y       float64
	Size       float64
	Health     int
}

// ToState converts to protocol state
func (o *Obstacle) ToState() protocol.ObstacleState {
	return protocol.ObstacleState{
		ID:         o.ID,
		X:          o.X,
		Y:          o.Y,
		Size:       o.Size,
		Health:     o.Health,
		MaxHealth:  ObstacleMaxHealth,
		OriginalID: o.OriginalID,
	}
}

func (o *Obstacle) lineage() string {
	if o.OriginalID != "" {
		return o.OriginalID
	}
	return o.ID
}

// Outline marks where a destroyed obstacle will come back. It never collides.
type Outline struct {
	ID         string
	ObstacleID string
	X, Y       float64
	Size       float64
}

// ToState converts to protocol state
func (o *Outline) ToState() protocol.OutlineState {
	return protocol.OutlineState{ID: o.ID, ObstacleID: o.ObstacleID, X: o.X, Y: o.Y, Size: o.Size}
}

// RespawnEntry is a pending re-creation of a destroyed obstacle
type RespawnEntry struct {
	OriginalID  string
	DestroyedID string
	X, Y        float64
	DueAt       time.Time
}

// Pattern is a group layout
type Pattern string

const (
	PatternLineHorizontal Pattern = "line-horizontal"
	PatternLineVertical   Pattern = "line-vertical"
	PatternLShape         Pattern = "l-shape"
	PatternSquare         Pattern = "square"
)

var groupPatterns = []Pattern{PatternLineHorizontal, PatternLineVertical, PatternLShape, PatternSquare}

// Point is a world position
type Point struct {
	X, Y float64
}

// GroupPositions lays out n obstacle centers for pattern, starting at the anchor
func GroupPositions(pattern Pattern, n int, ax, ay, spacing float64) []Point {
	if n <= 0 {
		return nil
	}
	out := make([]Point, 0, n)
	switch pattern {
	case PatternLineHorizontal:
		for i := 0; i < n; i++ {
			out = append(out, Point{ax + float64(i)*spacing, ay})
		}
	case PatternLineVertical:
		for i := 0; i < n; i++ {
			out = append(out, Point{ax, ay + float64(i)*spacing})
		}
	case PatternLShape:
		arm := n - 1
		if arm < 1 {
			arm = 1
		}
		for i := 0; i < arm && len(out) < n; i++ {
			out = append(out, Point{ax, ay + float64(i)*spacing})
		}
		for i := 1; len(out) < n; i++ {
			out = append(out, Point{ax + float64(i)*spacing, ay + float64(arm-1)*spacing})
		}
	default:
		cols := int(math.Ceil(math.Sqrt(float64(n))))
		for i := 0; i < n; i++ {
			out = append(out, Point{ax + float64(i%cols)*spacing, ay + float64(i/cols)*spacing})
		}
	}
	return out
}

// ObstacleManager owns active obstacles, their outlines and the respawn queue
type ObstacleManager struct {
	obstacles map[string]*Obstacle
	order     []string // active ids, oldest first
	outlines  map[string]*Outline
	pending   []RespawnEntry
	nextID    int
	max       int

	grid      *SpatialGrid
	gridDirty bool

	rng *rand.Rand
	log *zap.Logger
}

// NewObstacleManager creates an empty ObstacleManager capped at max active obstacles
func NewObstacleManager(max int, rng *rand.Rand, log *zap.Logger) *ObstacleManager {
	if max <= 0 {
		max = MaxObstacles
	}
	if rng == nil {
		rng = NewRand()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ObstacleManager{
		obstacles: make(map[string]*Obstacle),
		outlines:  make(map[string]*Outline),
		max:       max,
		grid:      NewSpatialGrid(WorldWidth, WorldHeight),
		rng:       rng,
		log:       log,
	}
}

// Create adds one obstacle, evicting the oldest active ones first if the
// cap would be exceeded. Pending respawns count toward the cap.
func (m *ObstacleManager) Create(x, y float64) (protocol.ObstacleState, []Event) {
	var events []Event
	for len(m.obstacles)+len(m.pending) >= m.max && len(m.order) > 0 {
		events = append(events, m.evictOldest()...)
	}
	o := m.add(x, y, "")
	state := o.ToState()
	events = append(events, Broadcast(protocol.MsgNewObstacle, state))
	return state, events
}

func (m *ObstacleManager) add(x, y float64, originalID string) *Obstacle {
	m.nextID++
	o := &Obstacle{
		ID:         fmt.Sprintf("obstacle-%d", m.nextID),
		OriginalID: originalID,
		X:          x,
		Y:          y,
		Size:       ObstacleSize,
		Health:     ObstacleMaxHealth,
	}
	m.obstacles[o.ID] = o
	m.order = append(m.order, o.ID)
	m.gridDirty = true
	return o
}

func (m *ObstacleManager) remove(id string) {
	delete(m.obstacles, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.gridDirty = true
}

func (m *ObstacleManager) evictOldest() []Event {
	id := m.order[0]
	o := m.obstacles[id]
	m.remove(id)
	m.log.Debug("obstacle evicted", zap.String("obstacle", id))
	return []Event{Broadcast(protocol.MsgObstacleDestroyed, protocol.ObstacleDestroyedMsg{
		ID:      id,
		X:       o.X,
		Y:       o.Y,
		Evicted: true,
	})}
}

// CreateGroup places 3-5 obstacles in a random pattern at a validated anchor.
// It returns no events when no anchor is found within the attempt budget.
func (m *ObstacleManager) CreateGroup() []Event {
	n := GroupMinSize + m.rng.Intn(GroupMaxSize-GroupMinSize+1)
	pattern := groupPatterns[m.rng.Intn(len(groupPatterns))]
	extent := GroupPositions(pattern, n, 0, 0, GroupSpacing)
	var ex, ey float64
	for _, p := range extent {
		ex = math.Max(ex, p.X)
		ey = math.Max(ey, p.Y)
	}

	half := ObstacleSize / 2
	for attempt := 0; attempt < GroupPlacementAttempts; attempt++ {
		ax := half + m.rng.Float64()*(WorldWidth-2*half)
		ay := UITopMargin + half + m.rng.Float64()*(WorldHeight-UITopMargin-2*half)
		if !m.validAnchor(ax, ay, n, ex, ey) {
			continue
		}
		var events []Event
		for _, p := range GroupPositions(pattern, n, ax, ay, GroupSpacing) {
			_, evs := m.Create(p.X, p.Y)
			events = append(events, evs...)
		}
		return events
	}
	m.log.Debug("obstacle group placement failed", zap.Int("size", n), zap.String("pattern", string(pattern)))
	return nil
}

func (m *ObstacleManager) validAnchor(ax, ay float64, n int, ex, ey float64) bool {
	half := ObstacleSize / 2
	if ax-half < 0 || ax+ex+half > WorldWidth || ay-half < UITopMargin || ay+ey+half > WorldHeight {
		return false
	}
	for _, rp := range RespawnPoints {
		if Distance(ax, ay, rp.X, rp.Y) < MinObstacleDistance*RespawnPointClearanceMul {
			return false
		}
	}
	clearance := MinObstacleDistance * math.Sqrt(float64(n))
	for _, o := range m.obstacles {
		if Distance(ax, ay, o.X, o.Y) < clearance {
			return false
		}
	}
	for _, o := range m.outlines {
		if Distance(ax, ay, o.X, o.Y) < clearance {
			return false
		}
	}
	return true
}

// TakeHit removes one health point. At zero the obstacle becomes an outline
// and a respawn at the same position is queued.
func (m *ObstacleManager) TakeHit(id, attackerID string, now time.Time) []Event {
	o, ok := m.obstacles[id]
	if !ok {
		m.log.Debug("hit on unknown obstacle", zap.String("obstacle", id))
		return nil
	}
	o.Health--
	if o.Health > 0 {
		return []Event{Broadcast(protocol.MsgObstacleHit, protocol.ObstacleHitMsg{ID: id, Health: o.Health, AttackerID: attackerID})}
	}

	m.outlines[o.ID] = &Outline{ID: "outline-" + o.ID, ObstacleID: o.ID, X: o.X, Y: o.Y, Size: o.Size}
	m.pending = append(m.pending, RespawnEntry{
		OriginalID:  o.lineage(),
		DestroyedID: o.ID,
		X:           o.X,
		Y:           o.Y,
		DueAt:       now.Add(ObstacleRespawnDelay),
	})
	m.remove(id)
	return []Event{Broadcast(protocol.MsgObstacleDestroyed, protocol.ObstacleDestroyedMsg{
		ID:           id,
		X:            o.X,
		Y:            o.Y,
		AttackerID:   attackerID,
		RespawnDelay: ObstacleRespawnDelay.Milliseconds(),
	})}
}

// ProcessRespawns re-creates every due obstacle at its exact position,
// oldest due first. Entries that would break the active cap are pushed back
// by the retry delay.
func (m *ObstacleManager) ProcessRespawns(now time.Time) []Event {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool { return m.pending[i].DueAt.Before(m.pending[j].DueAt) })

	var events []Event
	kept := m.pending[:0]
	for _, e := range m.pending {
		if e.DueAt.After(now) {
			kept = append(kept, e)
			continue
		}
		if len(m.obstacles)+1 > m.max {
			e.DueAt = now.Add(ObstacleRetryDelay)
			kept = append(kept, e)
			continue
		}
		if outline, ok := m.outlines[e.DestroyedID]; ok {
			delete(m.outlines, e.DestroyedID)
			events = append(events, Broadcast(protocol.MsgOutlineRemoved, protocol.OutlineRemovedMsg{ID: outline.ID, ObstacleID: e.DestroyedID}))
		}
		o := m.add(e.X, e.Y, e.OriginalID)
		events = append(events, Broadcast(protocol.MsgObstacleRespawned, o.ToState()))
	}
	m.pending = kept
	return events
}

// CheckPointCollision reports whether a circle at (x, y) touches any active
// obstacle. Outlines are never considered.
func (m *ObstacleManager) CheckPointCollision(x, y, radius float64) bool {
	if m.gridDirty {
		m.rebuildGrid()
	}
	reach := radius + ObstacleSize/2
	for _, id := range m.grid.Query(x, y, reach) {
		o, ok := m.obstacles[id]
		if !ok {
			continue
		}
		if Distance(x, y, o.X, o.Y) < radius+o.Size/2 {
			return true
		}
	}
	return false
}

func (m *ObstacleManager) rebuildGrid() {
	m.grid.Clear()
	for id, o := range m.obstacles {
		m.grid.InsertCircle(o.X, o.Y, o.Size/2, id)
	}
	m.gridDirty = false
}

// ActiveCount returns the number of colliding obstacles
func (m *ObstacleManager) ActiveCount() int {
	return len(m.obstacles)
}

// PendingCount returns the number of queued respawns
func (m *ObstacleManager) PendingCount() int {
	return len(m.pending)
}

// States returns active obstacles, oldest first
func (m *ObstacleManager) States() []protocol.ObstacleState {
	out := make([]protocol.ObstacleState, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.obstacles[id].ToState())
	}
	return out
}

// Outlines returns every outline, ordered by id
func (m *ObstacleManager) Outlines() []protocol.OutlineState {
	out := make([]protocol.OutlineState, 0, len(m.outlines))
	for _, o := range m.outlines {
		out = append(out, o.ToState())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot is the obstaclesUpdated payload
func (m *ObstacleManager) Snapshot() protocol.ObstaclesUpdatedMsg {
	return protocol.ObstaclesUpdatedMsg{Obstacles: m.States(), Outlines: m.Outlines()}
}

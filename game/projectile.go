package game

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"arena-server/protocol"
)

// ProjectileRadius is the point-vs-obstacle test radius
const ProjectileRadius = 4.0

// Projectile is a shot travelling in a straight line
type Projectile struct {
	ID      string
	OwnerID string
	X, Y    float64
	VX, VY  float64
}

// ToState converts to protocol state
func (p *Projectile) ToState() protocol.ProjectileState {
	return protocol.ProjectileState{
		ID:        p.ID,
		X:         p.X,
		Y:         p.Y,
		VelocityX: p.VX,
		VelocityY: p.VY,
		PlayerID:  p.OwnerID,
	}
}

// ObstacleCollider is the only obstacle capability projectiles need
type ObstacleCollider interface {
	CheckPointCollision(x, y, radius float64) bool
}

// HitFunc decides what a projectile hit does (damage, broadcasts) and returns
// the resulting events.
type HitFunc func(victimID, shooterID, projectileID string) []Event

// ProjectileManager owns live projectiles
type ProjectileManager struct {
	projectiles map[string]*Projectile
	log         *zap.Logger
}

// NewProjectileManager creates an empty ProjectileManager
func NewProjectileManager(log *zap.Logger) *ProjectileManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectileManager{
		projectiles: make(map[string]*Projectile),
		log:         log,
	}
}

// Fire spawns a projectile for ownerID. It returns nil without touching any
// state when the owner is unknown, defeated or out of ammo.
func (m *ProjectileManager) Fire(players *PlayerManager, ownerID string, dir Direction, now time.Time) (*protocol.ProjectileState, []Event) {
	owner := players.get(ownerID)
	if owner == nil || owner.Defeated || owner.Ammo <= 0 {
		return nil, nil
	}
	ux, uy := dir.Vector()
	if ux == 0 && uy == 0 {
		m.log.Debug("fire with invalid direction", zap.String("player", ownerID), zap.String("direction", string(dir)))
		return nil, nil
	}
	owner.Ammo--

	id := m.newID(ownerID, now)
	p := &Projectile{
		ID:      id,
		OwnerID: ownerID,
		X:       owner.X + ux*ProjectileSpawnOffset,
		Y:       owner.Y + uy*ProjectileSpawnOffset,
		VX:      ux * ProjectileSpeed,
		VY:      uy * ProjectileSpeed,
	}
	m.projectiles[id] = p
	state := p.ToState()
	return &state, []Event{Broadcast(protocol.MsgProjectileFired, state)}
}

// newID embeds owner and timestamp plus a random suffix
func (m *ProjectileManager) newID(ownerID string, now time.Time) string {
	for {
		id := fmt.Sprintf("%s-%d-%s", ownerID, now.UnixMilli(), GenerateID(ProjectileIDSuffixLen))
		if _, taken := m.projectiles[id]; !taken {
			return id
		}
	}
}

// Update advances every projectile and resolves, in order: leaving the world,
// striking an obstacle, striking a player. A projectile hits at most one
// player and is visited at most once per call even if onHit mutates the set.
func (m *ProjectileManager) Update(dt float64, now time.Time, players *PlayerManager, onHit HitFunc, obstacles ObstacleCollider) []Event {
	if dt > MaxDeltaTime {
		dt = MaxDeltaTime
	}
	if dt < 0 {
		dt = 0
	}

	var events []Event
	processed := make(map[string]struct{}, len(m.projectiles))
	for _, id := range m.ids() {
		if _, seen := processed[id]; seen {
			continue
		}
		processed[id] = struct{}{}
		p, ok := m.projectiles[id]
		if !ok {
			continue
		}

		p.X += p.VX * dt
		p.Y += p.VY * dt

		if p.X < -ProjectileBoundsMargin || p.X > WorldWidth+ProjectileBoundsMargin ||
			p.Y < -ProjectileBoundsMargin || p.Y > WorldHeight+ProjectileBoundsMargin {
			events = append(events, m.RemoveByID(id)...)
			continue
		}

		if obstacles != nil && obstacles.CheckPointCollision(p.X, p.Y, ProjectileRadius) {
			ix, iy := p.X, p.Y
			if speed := math.Hypot(p.VX, p.VY); speed > 0 {
				ix -= p.VX / speed * ProjectileImpactBack
				iy -= p.VY / speed * ProjectileImpactBack
			}
			events = append(events, Broadcast(protocol.MsgProjectileImpact, protocol.ProjectileImpactMsg{ID: id, X: ix, Y: iy}))
			events = append(events, m.RemoveByID(id)...)
			continue
		}

		if players == nil {
			continue
		}
		for _, target := range players.ordered() {
			if target.ID == p.OwnerID || target.Defeated || target.inHitCooldown(now) {
				continue
			}
			if !CheckCollision(p.X, p.Y, 0, target.X, target.Y, ProjectileHitRadius) {
				continue
			}
			if speed := math.Hypot(p.VX, p.VY); speed > 0 {
				target.applyKnockback(p.VX/speed*ProjectileKnockback, p.VY/speed*ProjectileKnockback, KnockbackFrames)
			}
			if onHit != nil {
				events = append(events, onHit(target.ID, p.OwnerID, id)...)
			}
			events = append(events, m.RemoveByID(id)...)
			break
		}
	}
	return events
}

// RemoveByID deletes a projectile and broadcasts it; unknown ids are a no-op
func (m *ProjectileManager) RemoveByID(id string) []Event {
	if _, ok := m.projectiles[id]; !ok {
		return nil
	}
	delete(m.projectiles, id)
	return []Event{Broadcast(protocol.MsgProjectileDestroyed, protocol.IDMsg{ID: id})}
}

// Owner reports who fired the projectile
func (m *ProjectileManager) Owner(id string) (string, bool) {
	p, ok := m.projectiles[id]
	if !ok {
		return "", false
	}
	return p.OwnerID, true
}

// Count returns the number of live projectiles
func (m *ProjectileManager) Count() int {
	return len(m.projectiles)
}

// States returns every projectile's public state, ordered by id
func (m *ProjectileManager) States() []protocol.ProjectileState {
	out := make([]protocol.ProjectileState, 0, len(m.projectiles))
	for _, id := range m.ids() {
		out = append(out, m.projectiles[id].ToState())
	}
	return out
}

func (m *ProjectileManager) ids() []string {
	ids := make([]string, 0, len(m.projectiles))
	for id := range m.projectiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package arena

import (
	"go.uber.org/zap"

	"arena-server/game"
	"arena-server/protocol"
)

func (a *Arena) handleMessage(id string, env protocol.InEnvelope) {
	if !a.players.Has(id) {
		return
	}

	switch env.T {
	case protocol.MsgJoin:
		a.handleJoin(id, env)
	case protocol.MsgPlayerInput:
		a.handleInput(id, env)
	case protocol.MsgFireProjectile:
		a.handleFire(id, env)
	case protocol.MsgReloadAmmo:
		a.players.ReloadAmmo(id)
	case protocol.MsgPlayerHit:
		a.handlePlayerHit(id, env)
	case protocol.MsgSwordHit:
		a.handleSwordHit(id, env)
	case protocol.MsgSwordUsed:
		a.handleSwordUsed(id, env)
	case protocol.MsgDestroyProjectile:
		a.handleDestroyProjectile(id, env)
	case protocol.MsgPlayerDefeated:
		a.handleDefeated(id, env)
	case protocol.MsgRespawnPlayer:
		a.handleRespawn(id, env)
	case protocol.MsgSetPlayerName:
		a.handleSetName(id, env)
	case protocol.MsgHitObstacle:
		a.handleHitObstacle(id, env)
	default:
		a.log.Debug("unknown message type", zap.String("player", id), zap.String("type", env.T))
	}
}

// decode reports malformed payloads and tells the caller to drop the message
func decode[T any](a *Arena, id string, env protocol.InEnvelope) (T, bool) {
	msg, err := protocol.DecodePayload[T](env)
	if err != nil {
		a.log.Debug("malformed payload", zap.String("player", id), zap.String("type", env.T), zap.Error(err))
		return msg, false
	}
	return msg, true
}

// self resolves a reported player id; reports about someone else are refused
func self(id, reported string) bool {
	return reported == "" || reported == id
}

func (a *Arena) handleJoin(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.JoinMsg](a, id, env)
	if !ok {
		return
	}
	if msg.Name != "" {
		a.emit(a.players.SetName(id, msg.Name))
	}
	a.sendWorld(id)
}

func (a *Arena) handleInput(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.InputMsg](a, id, env)
	if !ok {
		return
	}
	a.players.SetInput(id, game.Input{Left: msg.Left, Right: msg.Right, Up: msg.Up, Down: msg.Down})
}

func (a *Arena) handleFire(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.FireMsg](a, id, env)
	if !ok {
		return
	}
	dir, ok := game.ParseDirection(msg.Direction)
	if !ok {
		a.log.Debug("fire with unknown direction", zap.String("player", id), zap.String("direction", msg.Direction))
		return
	}
	_, events := a.projectiles.Fire(a.players, id, dir, a.now())
	a.emit(events)
}

// handlePlayerHit accepts a client's own projectile hit report. It goes
// through the same cooldown gate as server-detected hits, so a report for a
// hit the tick already applied is a no-op.
func (a *Arena) handlePlayerHit(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.PlayerHitMsg](a, id, env)
	if !ok || !self(id, msg.ShooterID) || msg.HitPlayerID == id {
		return
	}
	now := a.now()
	applied, events := a.players.ApplyHit(msg.HitPlayerID, id, game.ProjectileDamage, now)
	if !applied {
		return
	}
	victim, _ := a.players.State(msg.HitPlayerID)
	a.emit([]game.Event{game.Broadcast(protocol.MsgPlayerHit, protocol.PlayerHitEvent{
		HitPlayerID: msg.HitPlayerID,
		ShooterID:   id,
		Health:      victim.Health,
	})})
	a.emit(events)
	if len(events) > 0 {
		a.emit(a.defeated(victim, id, now))
	}
}

// handleSwordHit applies melee damage immediately rather than on the tick
func (a *Arena) handleSwordHit(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.SwordHitMsg](a, id, env)
	if !ok || !self(id, msg.AttackerID) || msg.HitPlayerID == id {
		return
	}
	if attacker, _ := a.players.State(id); attacker.Defeated {
		return
	}
	now := a.now()
	applied, events := a.players.ApplyHit(msg.HitPlayerID, id, game.SwordDamage, now)
	if !applied {
		return
	}
	victim, _ := a.players.State(msg.HitPlayerID)
	a.emit([]game.Event{game.Broadcast(protocol.MsgPlayerSwordHit, protocol.SwordHitEvent{
		HitPlayerID: msg.HitPlayerID,
		AttackerID:  id,
		Health:      victim.Health,
	})})
	a.emit(events)
	if len(events) > 0 {
		a.emit(a.defeated(victim, id, now))
	}
}

// handleSwordUsed relays the swing animation to everyone else
func (a *Arena) handleSwordUsed(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.SwordUsedMsg](a, id, env)
	if !ok {
		return
	}
	a.emit([]game.Event{game.BroadcastExcept(id, protocol.MsgSwordUsed, protocol.SwordUsedEvent{
		PlayerID:  id,
		X:         msg.X,
		Y:         msg.Y,
		Rotation:  msg.Rotation,
		Direction: msg.Direction,
	})})
}

func (a *Arena) handleDestroyProjectile(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.DestroyProjectileMsg](a, id, env)
	if !ok {
		return
	}
	if owner, ok := a.projectiles.Owner(msg.ProjectileID); !ok || owner != id {
		return
	}
	a.emit(a.projectiles.RemoveByID(msg.ProjectileID))
}

func (a *Arena) handleDefeated(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.PlayerIDMsg](a, id, env)
	if !ok || !self(id, msg.PlayerID) {
		return
	}
	events := a.players.RequestDefeat(id, "")
	if len(events) == 0 {
		return
	}
	a.emit(events)
	victim, _ := a.players.State(id)
	a.emit(a.defeated(victim, "", a.now()))
}

// handleRespawn only revives defeated players so it cannot be used as a heal
func (a *Arena) handleRespawn(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.PlayerIDMsg](a, id, env)
	if !ok || !self(id, msg.PlayerID) {
		return
	}
	if p, _ := a.players.State(id); !p.Defeated {
		return
	}
	a.emit(a.players.Respawn(id))
}

func (a *Arena) handleSetName(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.SetNameMsg](a, id, env)
	if !ok {
		return
	}
	a.emit(a.players.SetName(id, msg.Name))
}

func (a *Arena) handleHitObstacle(id string, env protocol.InEnvelope) {
	msg, ok := decode[protocol.HitObstacleMsg](a, id, env)
	if !ok || msg.ObstacleID == "" {
		return
	}
	if p, _ := a.players.State(id); p.Defeated {
		return
	}
	events := a.obstacles.TakeHit(msg.ObstacleID, id, a.now())
	for _, evt := range events {
		if evt.Name == protocol.MsgObstacleDestroyed {
			a.rec.Track(EvtObstacleDestroyed, id, map[string]any{"obstacle": msg.ObstacleID})
		}
	}
	a.emit(events)
}

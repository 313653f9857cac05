package arena

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"arena-server/game"
	"arena-server/protocol"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []game.Event
}

func (e *recordingEmitter) Emit(evt game.Event) {
	e.mu.Lock()
	e.events = append(e.events, evt)
	e.mu.Unlock()
}

func (e *recordingEmitter) named(name string) []game.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []game.Event
	for _, evt := range e.events {
		if evt.Name == name {
			out = append(out, evt)
		}
	}
	return out
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	e.events = nil
	e.mu.Unlock()
}

type recordingTracker struct {
	kinds []string
}

func (r *recordingTracker) Track(kind, playerID string, data map[string]any) {
	r.kinds = append(r.kinds, kind)
}

type testArena struct {
	*Arena
	out   *recordingEmitter
	rec   *recordingTracker
	clock time.Time
}

func newTestArena(t *testing.T, groups int) *testArena {
	t.Helper()
	out := &recordingEmitter{}
	rec := &recordingTracker{}
	opts := DefaultOptions()
	opts.InitialObstacleGroups = groups
	opts.Seed = 42
	ta := &testArena{out: out, rec: rec, clock: time.Unix(1_700_000_000, 0)}
	ta.Arena = New(opts, out, rec, nil)
	ta.now = func() time.Time { return ta.clock }
	ta.lastTick = ta.clock
	ta.seedWorld()
	return ta
}

func (ta *testArena) advance(d time.Duration) {
	ta.clock = ta.clock.Add(d)
}

func (ta *testArena) send(t *testing.T, id, typ string, payload any) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		raw = b
	}
	ta.handleCommand(command{kind: cmdMessage, playerID: id, env: protocol.InEnvelope{T: typ, D: raw}})
}

func (ta *testArena) player(t *testing.T, id string) protocol.PlayerState {
	t.Helper()
	p, ok := ta.players.State(id)
	if !ok {
		t.Fatalf("player %s not found", id)
	}
	return p
}

func TestConnectSendsWorldAndAnnounces(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("p1")
	ta.out.reset()
	ta.handleConnect("p2")

	current := ta.out.named(protocol.MsgCurrentPlayers)
	if len(current) != 1 || current[0].To != "p2" {
		t.Fatalf("expected currentPlayers to p2, got %+v", current)
	}
	if m := current[0].Data.(map[string]protocol.PlayerState); len(m) != 2 {
		t.Errorf("expected 2 players in map, got %d", len(m))
	}
	if got := ta.out.named(protocol.MsgObstaclesUpdated); len(got) != 1 || got[0].To != "p2" {
		t.Errorf("expected obstaclesUpdated to p2, got %+v", got)
	}
	if got := ta.out.named(protocol.MsgCurrentCoins); len(got) != 1 || got[0].To != "p2" {
		t.Errorf("expected currentCoins to p2, got %+v", got)
	}
	announce := ta.out.named(protocol.MsgNewPlayer)
	if len(announce) != 1 || announce[0].Except != "p2" {
		t.Errorf("expected newPlayer to everyone but p2, got %+v", announce)
	}
	if len(ta.rec.kinds) != 2 || ta.rec.kinds[1] != EvtConnect {
		t.Errorf("expected connect analytics, got %v", ta.rec.kinds)
	}
}

func TestStepEndsWithSnapshot(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("p1")
	ta.out.reset()

	ta.advance(game.TickDuration)
	ta.step(ta.clock)

	ta.out.mu.Lock()
	last := ta.out.events[len(ta.out.events)-1]
	ta.out.mu.Unlock()
	if last.Name != protocol.MsgGameState {
		t.Fatalf("expected gameState last, got %s", last.Name)
	}
	gs := last.Data.(protocol.GameState)
	if gs.Tick != 1 || len(gs.Players) != 1 {
		t.Errorf("unexpected snapshot: %+v", gs)
	}
	if gs.ServerTime != ta.clock.UnixMilli() {
		t.Errorf("expected server time %d, got %d", ta.clock.UnixMilli(), gs.ServerTime)
	}
}

func TestSwordHitRespectsCooldown(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.handleConnect("b")
	ta.out.reset()

	ta.send(t, "a", protocol.MsgSwordHit, protocol.SwordHitMsg{HitPlayerID: "b", AttackerID: "a"})
	ta.advance(500 * time.Millisecond)
	ta.send(t, "a", protocol.MsgSwordHit, protocol.SwordHitMsg{HitPlayerID: "b", AttackerID: "a"})

	if got := ta.player(t, "b").Health; got != game.PlayerMaxHealth-game.SwordDamage {
		t.Errorf("expected one hit applied, health %d", got)
	}
	if hits := ta.out.named(protocol.MsgPlayerSwordHit); len(hits) != 1 {
		t.Errorf("expected 1 playerSwordHit, got %d", len(hits))
	}

	ta.advance(600 * time.Millisecond)
	ta.send(t, "a", protocol.MsgSwordHit, protocol.SwordHitMsg{HitPlayerID: "b", AttackerID: "a"})
	if got := ta.player(t, "b").Health; got != game.PlayerMaxHealth-2*game.SwordDamage {
		t.Errorf("expected second hit after cooldown, health %d", got)
	}
}

func TestReportsForOtherPlayersRefused(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.handleConnect("b")
	ta.handleConnect("c")
	ta.out.reset()

	ta.send(t, "a", protocol.MsgSwordHit, protocol.SwordHitMsg{HitPlayerID: "b", AttackerID: "c"})
	ta.send(t, "a", protocol.MsgPlayerHit, protocol.PlayerHitMsg{HitPlayerID: "a", ShooterID: "a"})
	ta.send(t, "a", protocol.MsgPlayerDefeated, protocol.PlayerIDMsg{PlayerID: "b"})

	if ta.player(t, "b").Health != game.PlayerMaxHealth || ta.player(t, "b").Defeated {
		t.Error("expected b untouched")
	}
	if ta.player(t, "a").Health != game.PlayerMaxHealth {
		t.Error("expected self-hit ignored")
	}
	ta.out.mu.Lock()
	n := len(ta.out.events)
	ta.out.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestDefeatDropsCoinAndAwardsBonus(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.handleConnect("b")
	ta.out.reset()

	hits := game.PlayerMaxHealth / game.SwordDamage
	for i := 0; i < hits; i++ {
		ta.send(t, "a", protocol.MsgSwordHit, protocol.SwordHitMsg{HitPlayerID: "b", AttackerID: "a"})
		ta.advance(game.HitCooldown)
	}

	b := ta.player(t, "b")
	if !b.Defeated || b.Health != 0 {
		t.Fatalf("expected b defeated, got %+v", b)
	}
	if got := ta.out.named(protocol.MsgPlayerDefeated); len(got) != 1 {
		t.Errorf("expected 1 playerDefeated, got %d", len(got))
	}
	if got := ta.out.named(protocol.MsgCoinSpawned); len(got) != 1 {
		t.Errorf("expected defeat coin, got %d", len(got))
	}
	if got := ta.player(t, "a").Score; got != game.DefeatScoreBonus {
		t.Errorf("expected attacker score %d, got %d", game.DefeatScoreBonus, got)
	}

	// Hits on a defeated player do nothing
	ta.send(t, "a", protocol.MsgSwordHit, protocol.SwordHitMsg{HitPlayerID: "b", AttackerID: "a"})
	if got := ta.out.named(protocol.MsgPlayerDefeated); len(got) != 1 {
		t.Errorf("expected defeat broadcast once, got %d", len(got))
	}
}

func TestRespawnOnlyWhenDefeated(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.out.reset()

	ta.send(t, "a", protocol.MsgRespawnPlayer, protocol.PlayerIDMsg{PlayerID: "a"})
	if got := ta.out.named(protocol.MsgPlayerRespawned); len(got) != 0 {
		t.Fatalf("expected no respawn while alive, got %d", len(got))
	}

	ta.send(t, "a", protocol.MsgPlayerDefeated, nil)
	ta.send(t, "a", protocol.MsgRespawnPlayer, nil)

	got := ta.out.named(protocol.MsgPlayerRespawned)
	if len(got) != 1 {
		t.Fatalf("expected 1 respawn, got %d", len(got))
	}
	msg := got[0].Data.(protocol.RespawnedMsg)
	found := false
	for _, rp := range game.RespawnPoints {
		if rp.Name == msg.SpawnPoint && rp.X == msg.X && rp.Y == msg.Y {
			found = true
		}
	}
	if !found {
		t.Errorf("respawn at unknown point %+v", msg)
	}
	p := ta.player(t, "a")
	if p.Defeated || p.Health != game.PlayerMaxHealth || p.Ammo != game.PlayerMaxAmmo {
		t.Errorf("expected fresh stats, got %+v", p)
	}
}

func TestFireAndDestroyProjectile(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.handleConnect("b")
	ta.out.reset()

	ta.send(t, "a", protocol.MsgFireProjectile, protocol.FireMsg{Direction: "sideways"})
	if ta.projectiles.Count() != 0 {
		t.Fatal("expected invalid direction to be ignored")
	}

	ta.send(t, "a", protocol.MsgFireProjectile, protocol.FireMsg{Direction: "up"})
	fired := ta.out.named(protocol.MsgProjectileFired)
	if len(fired) != 1 {
		t.Fatalf("expected 1 projectileFired, got %d", len(fired))
	}
	if got := ta.player(t, "a").Ammo; got != game.PlayerMaxAmmo-1 {
		t.Errorf("expected ammo %d, got %d", game.PlayerMaxAmmo-1, got)
	}
	pid := fired[0].Data.(protocol.ProjectileState).ID

	ta.send(t, "b", protocol.MsgDestroyProjectile, protocol.DestroyProjectileMsg{ProjectileID: pid})
	if ta.projectiles.Count() != 1 {
		t.Error("expected non-owner destroy to be ignored")
	}
	ta.send(t, "a", protocol.MsgDestroyProjectile, protocol.DestroyProjectileMsg{ProjectileID: pid})
	if ta.projectiles.Count() != 0 {
		t.Error("expected owner destroy to remove projectile")
	}

	ta.send(t, "a", protocol.MsgReloadAmmo, nil)
	if got := ta.player(t, "a").Ammo; got != game.PlayerMaxAmmo {
		t.Errorf("expected reload to max, got %d", got)
	}
}

func TestDisconnectKeepsProjectiles(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.send(t, "a", protocol.MsgFireProjectile, protocol.FireMsg{Direction: "down"})
	ta.out.reset()

	ta.handleDisconnect("a")
	if ta.players.Has("a") {
		t.Error("expected player removed")
	}
	if ta.projectiles.Count() != 1 {
		t.Errorf("expected projectile to survive disconnect, got %d", ta.projectiles.Count())
	}
	if got := ta.out.named(protocol.MsgPlayerDisconnected); len(got) != 1 {
		t.Errorf("expected 1 playerDisconnected, got %d", len(got))
	}

	ta.handleDisconnect("a")
	if got := ta.out.named(protocol.MsgPlayerDisconnected); len(got) != 1 {
		t.Errorf("expected second disconnect to be a no-op, got %d", len(got))
	}
}

func TestCoinCollectedDuringTick(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	p := ta.player(t, "a")
	ta.coins.Spawn(p.X, p.Y, ta.clock)
	ta.out.reset()

	ta.advance(game.TickDuration)
	ta.step(ta.clock)

	if got := ta.out.named(protocol.MsgCoinCollected); len(got) != 1 {
		t.Fatalf("expected coinCollected, got %d", len(got))
	}
	if got := ta.player(t, "a").Score; got != game.CoinValue {
		t.Errorf("expected score %d, got %d", game.CoinValue, got)
	}
	if ta.coins.Count() != 0 {
		t.Errorf("expected coin gone, got %d", ta.coins.Count())
	}
}

func TestHitObstacleDestroysAfterMaxHealth(t *testing.T) {
	ta := newTestArena(t, 1)
	if ta.obstacles.ActiveCount() == 0 {
		t.Fatal("expected seeded obstacles")
	}
	ta.handleConnect("a")
	target := ta.obstacles.States()[0].ID
	ta.out.reset()

	for i := 0; i < game.ObstacleMaxHealth; i++ {
		ta.send(t, "a", protocol.MsgHitObstacle, protocol.HitObstacleMsg{ObstacleID: target})
	}
	if got := ta.out.named(protocol.MsgObstacleHit); len(got) != game.ObstacleMaxHealth-1 {
		t.Errorf("expected %d obstacleHit, got %d", game.ObstacleMaxHealth-1, len(got))
	}
	destroyed := ta.out.named(protocol.MsgObstacleDestroyed)
	if len(destroyed) != 1 {
		t.Fatalf("expected 1 obstacleDestroyed, got %d", len(destroyed))
	}
	if msg := destroyed[0].Data.(protocol.ObstacleDestroyedMsg); msg.AttackerID != "a" || msg.RespawnDelay != game.ObstacleRespawnDelay.Milliseconds() {
		t.Errorf("unexpected destroy payload %+v", msg)
	}
	if ta.rec.kinds[len(ta.rec.kinds)-1] != EvtObstacleDestroyed {
		t.Errorf("expected obstacle analytics, got %v", ta.rec.kinds)
	}
}

func TestMalformedMessagesDropped(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.out.reset()

	ta.handleCommand(command{kind: cmdMessage, playerID: "a", env: protocol.InEnvelope{T: protocol.MsgPlayerInput, D: json.RawMessage(`{"left":"yes"`)}})
	ta.handleCommand(command{kind: cmdMessage, playerID: "a", env: protocol.InEnvelope{T: "nonsense"}})
	ta.handleCommand(command{kind: cmdMessage, playerID: "ghost", env: protocol.InEnvelope{T: protocol.MsgReloadAmmo}})

	ta.out.mu.Lock()
	n := len(ta.out.events)
	ta.out.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestSetNameAndJoin(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.out.reset()

	ta.send(t, "a", protocol.MsgSetPlayerName, protocol.SetNameMsg{Name: "  a-very-long-player-name  "})
	if got := ta.player(t, "a").Name; got != "a-very-long-play" {
		t.Errorf("expected truncated name, got %q", got)
	}

	ta.send(t, "a", protocol.MsgJoin, protocol.JoinMsg{Name: "Zed"})
	if got := ta.player(t, "a").Name; got != "Zed" {
		t.Errorf("expected Zed, got %q", got)
	}
	if got := ta.out.named(protocol.MsgCurrentPlayers); len(got) != 1 || got[0].To != "a" {
		t.Errorf("expected join to resend world, got %+v", got)
	}
}

func TestSwordUsedRelayedToOthers(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.handleConnect("a")
	ta.out.reset()

	ta.send(t, "a", protocol.MsgSwordUsed, protocol.SwordUsedMsg{X: 10, Y: 20, Rotation: 1.5, Direction: "left"})
	got := ta.out.named(protocol.MsgSwordUsed)
	if len(got) != 1 || got[0].Except != "a" {
		t.Fatalf("expected relay excluding sender, got %+v", got)
	}
	if msg := got[0].Data.(protocol.SwordUsedEvent); msg.PlayerID != "a" || msg.Rotation != 1.5 {
		t.Errorf("unexpected relay payload %+v", msg)
	}
}

func TestSafelyRecoversPanics(t *testing.T) {
	ta := newTestArena(t, 0)
	ta.safely("test", func() { panic("boom") })
	if got := ta.Metrics()["recovered_panics"]; got != int64(1) {
		t.Errorf("expected 1 recovered panic, got %v", got)
	}
}

func TestRunLoop(t *testing.T) {
	out := &recordingEmitter{}
	a := New(Options{InitialObstacleGroups: 1, Seed: 7}, out, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	if err := a.Connect("p1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !a.Deliver("p1", protocol.InEnvelope{T: protocol.MsgReloadAmmo}) {
		t.Error("expected deliver to succeed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(out.named(protocol.MsgGameState)) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for snapshots")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}

	if err := a.Disconnect("p1"); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after shutdown, got %v", err)
	}
}

package arena

import (
	"context"
	"errors"
	"math/rand"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"arena-server/game"
	"arena-server/protocol"
)

// Emitter delivers events to connected clients
type Emitter interface {
	Emit(evt game.Event)
}

// Recorder receives gameplay analytics
type Recorder interface {
	Track(kind, playerID string, data map[string]any)
}

// Analytics event kinds
const (
	EvtConnect           = "connect"
	EvtDisconnect        = "disconnect"
	EvtDefeat            = "defeat"
	EvtCoinCollected     = "coin_collected"
	EvtObstacleDestroyed = "obstacle_destroyed"
)

const inboxSize = 1024

// ErrStopped is returned when a command arrives after the loop exited
var ErrStopped = errors.New("arena: loop stopped")

// Options tunes the world lifecycle timers
type Options struct {
	MaxObstacles          int
	InitialObstacleGroups int
	ObstacleSpawnInterval time.Duration
	CoinSpawnInterval     time.Duration
	Seed                  int64 // 0 picks a random seed
}

// DefaultOptions returns the stock timings
func DefaultOptions() Options {
	return Options{
		MaxObstacles:          game.MaxObstacles,
		InitialObstacleGroups: game.InitialObstacleGroups,
		ObstacleSpawnInterval: game.ObstacleSpawnInterval,
		CoinSpawnInterval:     game.CoinSpawnInterval,
	}
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdMessage
)

type command struct {
	kind     commandKind
	playerID string
	env      protocol.InEnvelope
}

type nopRecorder struct{}

func (nopRecorder) Track(string, string, map[string]any) {}

// Arena is the authoritative world. All state is owned by the goroutine
// running Run; other goroutines only talk to it through the inbox.
type Arena struct {
	opts Options
	log  *zap.Logger
	out  Emitter
	rec  Recorder
	now  func() time.Time

	players     *game.PlayerManager
	projectiles *game.ProjectileManager
	obstacles   *game.ObstacleManager
	coins       *game.CoinManager

	inbox    chan command
	done     chan struct{}
	tick     uint64
	lastTick time.Time
	metrics  Metrics
}

// New builds an Arena; call Run to start simulating
func New(opts Options, out Emitter, rec Recorder, log *zap.Logger) *Arena {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	def := DefaultOptions()
	if opts.MaxObstacles <= 0 {
		opts.MaxObstacles = def.MaxObstacles
	}
	if opts.ObstacleSpawnInterval <= 0 {
		opts.ObstacleSpawnInterval = def.ObstacleSpawnInterval
	}
	if opts.CoinSpawnInterval <= 0 {
		opts.CoinSpawnInterval = def.CoinSpawnInterval
	}
	if opts.InitialObstacleGroups < 0 {
		opts.InitialObstacleGroups = 0
	}

	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewSource(opts.Seed))
	} else {
		rng = game.NewRand()
	}

	return &Arena{
		opts:        opts,
		log:         log,
		out:         out,
		rec:         rec,
		now:         time.Now,
		players:     game.NewPlayerManager(rng, log.Named("players")),
		projectiles: game.NewProjectileManager(log.Named("projectiles")),
		obstacles:   game.NewObstacleManager(opts.MaxObstacles, rng, log.Named("obstacles")),
		coins:       game.NewCoinManager(rng, log.Named("coins")),
		inbox:       make(chan command, inboxSize),
		done:        make(chan struct{}),
	}
}

// Connect queues a new connection. It blocks until accepted or the loop stops.
func (a *Arena) Connect(playerID string) error {
	return a.enqueue(command{kind: cmdConnect, playerID: playerID})
}

// Disconnect queues a connection teardown
func (a *Arena) Disconnect(playerID string) error {
	return a.enqueue(command{kind: cmdDisconnect, playerID: playerID})
}

func (a *Arena) enqueue(cmd command) error {
	select {
	case <-a.done:
		return ErrStopped
	default:
	}
	select {
	case a.inbox <- cmd:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// Deliver queues a client message without blocking; it reports false when
// the inbox is full and the message was dropped.
func (a *Arena) Deliver(playerID string, env protocol.InEnvelope) bool {
	select {
	case a.inbox <- command{kind: cmdMessage, playerID: playerID, env: env}:
		return true
	default:
		a.metrics.incDropped()
		return false
	}
}

// Metrics returns the loop counters
func (a *Arena) Metrics() map[string]any {
	return a.metrics.Snapshot()
}

// Run drives the simulation until ctx is cancelled: fixed-rate ticks,
// inbound commands and the obstacle/coin lifecycle timers all execute here,
// one at a time.
func (a *Arena) Run(ctx context.Context) error {
	defer close(a.done)

	a.lastTick = a.now()
	a.safely("seed", a.seedWorld)

	tick := time.NewTicker(game.TickDuration)
	defer tick.Stop()
	obstacleSpawn := time.NewTicker(a.opts.ObstacleSpawnInterval)
	defer obstacleSpawn.Stop()
	respawnCheck := time.NewTicker(game.RespawnCheckInterval)
	defer respawnCheck.Stop()
	coinSpawn := time.NewTicker(a.opts.CoinSpawnInterval)
	defer coinSpawn.Stop()
	coinExpiry := time.NewTicker(game.CoinExpiryInterval)
	defer coinExpiry.Stop()

	a.log.Info("arena loop started",
		zap.Int("tick_rate", game.TickRate),
		zap.Int("max_obstacles", a.opts.MaxObstacles))

	for {
		select {
		case <-ctx.Done():
			a.log.Info("arena loop stopped", zap.Uint64("tick", a.tick))
			return ctx.Err()
		case cmd := <-a.inbox:
			a.safely("command", func() { a.handleCommand(cmd) })
			a.metrics.incHandled()
		case <-tick.C:
			start := time.Now()
			a.safely("tick", func() { a.step(a.now()) })
			a.metrics.addTick(time.Since(start).Nanoseconds())
		case <-obstacleSpawn.C:
			a.safely("obstacle spawn", func() { a.emit(a.obstacles.CreateGroup()) })
		case <-respawnCheck.C:
			a.safely("obstacle respawn", func() { a.emit(a.obstacles.ProcessRespawns(a.now())) })
		case <-coinSpawn.C:
			a.safely("coin spawn", func() { a.emit(a.coins.SpawnAmbient(a.now())) })
		case <-coinExpiry.C:
			a.safely("coin expiry", func() { a.emit(a.coins.ExpireDue(a.now())) })
		}
	}
}

// safely runs fn and turns a panic into a log line so one bad message or
// timer cannot stop the loop for everyone else
func (a *Arena) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.incPanics()
			a.log.Error("recovered panic in arena loop",
				zap.String("during", what),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn()
}

func (a *Arena) seedWorld() {
	for i := 0; i < a.opts.InitialObstacleGroups; i++ {
		a.emit(a.obstacles.CreateGroup())
	}
}

func (a *Arena) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		a.handleConnect(cmd.playerID)
	case cmdDisconnect:
		a.handleDisconnect(cmd.playerID)
	case cmdMessage:
		a.handleMessage(cmd.playerID, cmd.env)
	}
}

func (a *Arena) handleConnect(id string) {
	_, events := a.players.Create(id)
	a.emit([]game.Event{game.SendTo(id, protocol.MsgConnected, protocol.IDMsg{ID: id})})
	a.sendWorld(id)
	a.emit(events)
	a.rec.Track(EvtConnect, id, nil)
	a.log.Info("player connected", zap.String("player", id), zap.Int("players", a.players.Count()))
}

// sendWorld gives one client everything it needs to render the current world
func (a *Arena) sendWorld(id string) {
	a.emit([]game.Event{
		game.SendTo(id, protocol.MsgCurrentPlayers, a.players.StateMap()),
		game.SendTo(id, protocol.MsgObstaclesUpdated, a.obstacles.Snapshot()),
		game.SendTo(id, protocol.MsgCurrentCoins, protocol.CurrentCoinsMsg{Coins: a.coins.States()}),
	})
}

// handleDisconnect removes only the player; its in-flight projectiles keep
// flying until they hit something or leave the world.
func (a *Arena) handleDisconnect(id string) {
	if !a.players.Has(id) {
		return
	}
	a.emit(a.players.Remove(id))
	a.rec.Track(EvtDisconnect, id, nil)
	a.log.Info("player disconnected", zap.String("player", id), zap.Int("players", a.players.Count()))
}

// step is one tick: movement, player collisions, projectiles, coin pickup,
// then the snapshot.
func (a *Arena) step(now time.Time) {
	dt := now.Sub(a.lastTick).Seconds()
	if dt <= 0 {
		dt = game.TickDuration.Seconds()
	}
	a.lastTick = now
	a.tick++

	events := a.players.Advance(dt)
	a.players.ResolveCollisions()
	events = append(events, a.projectiles.Update(dt, now, a.players, a.projectileHit(now), a.obstacles)...)
	events = append(events, a.collectCoins(now)...)
	a.emit(events)

	a.emit([]game.Event{game.Broadcast(protocol.MsgGameState, a.Snapshot(now))})
}

// Snapshot builds the consolidated per-tick state
func (a *Arena) Snapshot(now time.Time) protocol.GameState {
	return protocol.GameState{
		Players:     a.players.States(),
		Projectiles: a.projectiles.States(),
		Tick:        a.tick,
		ServerTime:  now.UnixMilli(),
	}
}

// projectileHit applies authoritative projectile damage through the
// cooldown-gated hit path
func (a *Arena) projectileHit(now time.Time) game.HitFunc {
	return func(victimID, shooterID, projectileID string) []game.Event {
		applied, events := a.players.ApplyHit(victimID, shooterID, game.ProjectileDamage, now)
		if !applied {
			return nil
		}
		victim, _ := a.players.State(victimID)
		out := []game.Event{game.Broadcast(protocol.MsgPlayerHit, protocol.PlayerHitEvent{
			HitPlayerID: victimID,
			ShooterID:   shooterID,
			Health:      victim.Health,
		})}
		out = append(out, events...)
		if len(events) > 0 {
			out = append(out, a.defeated(victim, shooterID, now)...)
		}
		return out
	}
}

// defeated handles the side effects of a fresh defeat: a coin drop and the
// attacker's bonus
func (a *Arena) defeated(victim protocol.PlayerState, attackerID string, now time.Time) []game.Event {
	_, events := a.coins.DropAtDefeat(&victim, now)
	if attackerID != "" && attackerID != victim.ID {
		_, evs := a.players.IncreaseScore(attackerID, game.DefeatScoreBonus)
		events = append(events, evs...)
	}
	a.rec.Track(EvtDefeat, victim.ID, map[string]any{"attacker": attackerID})
	return events
}

func (a *Arena) collectCoins(now time.Time) []game.Event {
	if a.coins.Count() == 0 {
		return nil
	}
	var events []game.Event
	for _, p := range a.players.States() {
		if p.Defeated {
			continue
		}
		for _, id := range a.coins.Nearby(p.X, p.Y, game.CoinCollectRadius) {
			collected, evs := a.coins.Collect(id, p.ID)
			if collected == nil {
				continue
			}
			events = append(events, evs...)
			_, evs = a.players.IncreaseScore(p.ID, float64(collected.Value))
			events = append(events, evs...)
			a.rec.Track(EvtCoinCollected, p.ID, map[string]any{"coin": id, "value": collected.Value})
		}
	}
	return events
}

func (a *Arena) emit(events []game.Event) {
	if a.out == nil || len(events) == 0 {
		return
	}
	for _, evt := range events {
		a.out.Emit(evt)
	}
	a.metrics.addEmitted(len(events))
}

package game

import (
	"math"
	"time"
)

const (
	TickRate     = 60 // simulation ticks per second
	TickDuration = time.Second / TickRate
	MaxDeltaTime = 0.05 // seconds; projectile step ceiling under lag spikes
)

// World bounds
const (
	WorldWidth  = 1600.0
	WorldHeight = 1200.0
	UITopMargin = 100.0 // reserved for the HUD, no obstacles above this
)

// Players
const (
	PlayerSpeed       = 200.0 // units/s
	PlayerMaxHealth   = 100
	PlayerMaxAmmo     = 10
	MaxNameLength     = 16
	DefaultPlayerName = "Player"
	HitCooldown       = 1000 * time.Millisecond
	SpawnMargin       = 50.0
	DefeatScoreBonus  = 50
)

// Player-vs-player collision
const (
	PlayerCollisionDistance = 30.0
	PushFactorMover         = 0.2
	PushFactorIdle          = 0.8
	CollisionKnockback      = 2.0 // units per frame
	KnockbackFrames         = 3
	KnockbackDecay          = 0.8
	MovingThreshold         = 0.1
)

// Projectiles
const (
	ProjectileSpeed        = 500.0 // units/s
	ProjectileSpawnOffset  = 40.0
	ProjectileHitRadius    = 16.0
	ProjectileDamage       = 10
	ProjectileBoundsMargin = 10.0
	ProjectileImpactBack   = 5.0 // impact marker is placed this far before contact
	ProjectileKnockback    = 4.0 // units per frame applied to the victim
	ProjectileIDSuffixLen  = 3   // random bytes in projectile ids
)

// Melee
const (
	SwordDamage = 20
)

// Obstacles
const (
	ObstacleSize             = 40.0
	ObstacleMaxHealth        = 3
	ObstacleRespawnDelay     = 30 * time.Second
	ObstacleRetryDelay       = 5 * time.Second
	ObstacleSpawnInterval    = 20 * time.Second
	RespawnCheckInterval     = time.Second
	MaxObstacles             = 40
	InitialObstacleGroups    = 4
	GroupMinSize             = 3
	GroupMaxSize             = 5
	GroupSpacing             = ObstacleSize + 5
	GroupPlacementAttempts   = 50
	MinObstacleDistance      = 80.0
	RespawnPointClearanceMul = 1.5
)

// Coins
const (
	CoinSize            = 20.0
	CoinValue           = 10
	CoinLifetime        = 30 * time.Second
	CoinSpawnInterval   = 8 * time.Second
	CoinExpiryInterval  = time.Second
	CoinCollectRadius   = 30.0
	CoinDropJitter      = 20.0 // total width of the symmetric jitter window
	MaxAmbientCoins     = 25
	MaxCoinsPerSnapshot = 50
)

var cos45 = math.Cos(math.Pi / 4)

// RespawnPoint is a named fixed spawn location
type RespawnPoint struct {
	Name string
	X, Y float64
}

// RespawnPoints are the locations a defeated player can return at
var RespawnPoints = []RespawnPoint{
	{Name: "northwest", X: 200, Y: 250},
	{Name: "northeast", X: WorldWidth - 200, Y: 250},
	{Name: "southwest", X: 200, Y: WorldHeight - 150},
	{Name: "southeast", X: WorldWidth - 200, Y: WorldHeight - 150},
	{Name: "center", X: WorldWidth / 2, Y: WorldHeight / 2},
}

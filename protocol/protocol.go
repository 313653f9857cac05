package protocol

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin              = "join"
	MsgPlayerInput       = "playerInput"
	MsgFireProjectile    = "fireProjectile"
	MsgReloadAmmo        = "reloadAmmo"
	MsgPlayerHit         = "playerHit" // also Server -> Client
	MsgSwordHit          = "swordHit"
	MsgSwordUsed         = "swordUsed" // relayed back out unchanged
	MsgDestroyProjectile = "destroyProjectile"
	MsgPlayerDefeated    = "playerDefeated" // also Server -> Client
	MsgRespawnPlayer     = "respawnPlayer"
	MsgSetPlayerName     = "setPlayerName"
	MsgHitObstacle       = "hitObstacle"
)

// Server -> Client message types
const (
	MsgConnected           = "connected"
	MsgCurrentPlayers      = "currentPlayers"
	MsgNewPlayer           = "newPlayer"
	MsgPlayerDisconnected  = "playerDisconnected"
	MsgPlayerMoved         = "playerMoved"
	MsgPlayerNameUpdate    = "playerNameUpdate"
	MsgProjectileFired     = "projectileFired"
	MsgProjectileDestroyed = "projectileDestroyed"
	MsgProjectileImpact    = "projectileImpact"
	MsgPlayerSwordHit      = "playerSwordHit"
	MsgGameState           = "gameState"
	MsgPlayerRespawned     = "playerRespawned"
	MsgPlayerScoreUpdate   = "playerScoreUpdate"
	MsgObstacleDestroyed   = "obstacleDestroyed"
	MsgObstacleHit         = "obstacleHit"
	MsgObstacleRespawned   = "obstacleRespawned"
	MsgNewObstacle         = "newObstacle"
	MsgOutlineRemoved      = "outlineRemoved"
	MsgObstaclesUpdated    = "obstaclesUpdated"
	MsgCoinSpawned         = "coinSpawned"
	MsgCoinRemoved         = "coinRemoved"
	MsgCoinCollected       = "coinCollected"
	MsgCurrentCoins        = "currentCoins"
)

// Coin removal reasons
const (
	CoinExpired   = "expired"
	CoinCollected = "collected"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; the payload stays raw until dispatch
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// --- Client -> Server payloads ---

// JoinMsg asks the server to (re)send the full world to the sender
type JoinMsg struct {
	Name string `json:"name,omitempty"`
}

// InputMsg is the held-key snapshot of a client
type InputMsg struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Up    bool `json:"up"`
	Down  bool `json:"down"`
}

// FireMsg requests a projectile in one of the 8 compass directions
type FireMsg struct {
	Direction string `json:"direction"`
}

// PlayerHitMsg is a client hit report for a projectile
type PlayerHitMsg struct {
	HitPlayerID string `json:"hitPlayerId"`
	ShooterID   string `json:"shooterId"`
}

// SwordHitMsg is a client melee hit report
type SwordHitMsg struct {
	HitPlayerID string `json:"hitPlayerId"`
	AttackerID  string `json:"attackerId"`
}

// SwordUsedMsg describes a melee swing for other clients to animate
type SwordUsedMsg struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation"`
	Direction string  `json:"direction"`
}

// DestroyProjectileMsg reports a projectile the client saw end
type DestroyProjectileMsg struct {
	ProjectileID string `json:"projectileId"`
}

// PlayerIDMsg carries a player id (defeat and respawn reports)
type PlayerIDMsg struct {
	PlayerID string `json:"playerId"`
}

// SetNameMsg changes the sender's display name
type SetNameMsg struct {
	Name string `json:"name"`
}

// HitObstacleMsg is a melee hit on an obstacle
type HitObstacleMsg struct {
	ObstacleID string `json:"obstacleId"`
}

// --- Server -> Client payloads ---

// PlayerState is the public view of a player
type PlayerState struct {
	ID        string  `json:"id" msgpack:"id"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	Direction string  `json:"direction" msgpack:"direction"`
	Moving    bool    `json:"moving" msgpack:"moving"`
	Health    int     `json:"health" msgpack:"health"`
	Ammo      int     `json:"ammo" msgpack:"ammo"`
	Score     int     `json:"score" msgpack:"score"`
	Name      string  `json:"name" msgpack:"name"`
	Defeated  bool    `json:"defeated" msgpack:"defeated"`
}

// ProjectileState is the public view of a projectile (also the projectileFired payload)
type ProjectileState struct {
	ID        string  `json:"id" msgpack:"id"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	VelocityX float64 `json:"velocityX" msgpack:"velocityX"`
	VelocityY float64 `json:"velocityY" msgpack:"velocityY"`
	PlayerID  string  `json:"playerId" msgpack:"playerId"`
}

// GameState is the per-tick snapshot
type GameState struct {
	Players     []PlayerState     `json:"players" msgpack:"players"`
	Projectiles []ProjectileState `json:"projectiles" msgpack:"projectiles"`
	Tick        uint64            `json:"tick" msgpack:"tick"`
	ServerTime  int64             `json:"serverTime" msgpack:"serverTime"`
}

// IDMsg carries a single entity id
type IDMsg struct {
	ID string `json:"id"`
}

// PlayerMovedMsg announces a change in a player's movement animation state
type PlayerMovedMsg struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction string  `json:"direction"`
	Moving    bool    `json:"moving"`
}

// NameUpdateMsg announces a display name change
type NameUpdateMsg struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectileImpactMsg marks where a projectile struck an obstacle
type ProjectileImpactMsg struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PlayerHitEvent is broadcast when a projectile hit is applied
type PlayerHitEvent struct {
	HitPlayerID string `json:"hitPlayerId"`
	ShooterID   string `json:"shooterId"`
	Health      int    `json:"health"`
}

// SwordHitEvent is broadcast when a melee hit is applied
type SwordHitEvent struct {
	HitPlayerID string `json:"hitPlayerId"`
	AttackerID  string `json:"attackerId"`
	Health      int    `json:"health"`
}

// DefeatedMsg is broadcast once per defeat
type DefeatedMsg struct {
	PlayerID   string `json:"playerId"`
	AttackerID string `json:"attackerId,omitempty"`
}

// RespawnedMsg is broadcast when a player re-enters play
type RespawnedMsg struct {
	PlayerID   string  `json:"playerId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Health     int     `json:"health"`
	Ammo       int     `json:"ammo"`
	Score      int     `json:"score"`
	SpawnPoint string  `json:"spawnPoint"`
}

// SwordUsedEvent relays a swing to the other clients
type SwordUsedEvent struct {
	PlayerID  string  `json:"playerId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation"`
	Direction string  `json:"direction"`
}

// ScoreUpdateMsg carries a player's new score total
type ScoreUpdateMsg struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// ObstacleState is the public view of an active obstacle (also newObstacle)
type ObstacleState struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Size       float64 `json:"size"`
	Health     int     `json:"health"`
	MaxHealth  int     `json:"maxHealth"`
	OriginalID string  `json:"originalId,omitempty"`
}

// OutlineState is the placeholder left by a destroyed obstacle
type OutlineState struct {
	ID         string  `json:"id"`
	ObstacleID string  `json:"obstacleId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Size       float64 `json:"size"`
}

// ObstacleDestroyedMsg is broadcast when an obstacle leaves the active set
type ObstacleDestroyedMsg struct {
	ID           string  `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	AttackerID   string  `json:"attackerId,omitempty"`
	RespawnDelay int64   `json:"respawnDelay"` // milliseconds, 0 when evicted
	Evicted      bool    `json:"evicted,omitempty"`
}

// ObstacleHitMsg is broadcast when an obstacle survives a hit
type ObstacleHitMsg struct {
	ID         string `json:"id"`
	Health     int    `json:"health"`
	AttackerID string `json:"attackerId,omitempty"`
}

// OutlineRemovedMsg is broadcast right before an obstacle respawns
type OutlineRemovedMsg struct {
	ID         string `json:"id"`
	ObstacleID string `json:"obstacleId"`
}

// ObstaclesUpdatedMsg is the full obstacle world
type ObstaclesUpdatedMsg struct {
	Obstacles []ObstacleState `json:"obstacles"`
	Outlines  []OutlineState  `json:"outlines"`
}

// CoinState is the public view of a coin (also coinSpawned)
type CoinState struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Size      float64 `json:"size"`
	Value     int     `json:"value"`
	CreatedAt int64   `json:"createdAt"` // unix millis
}

// CoinRemovedMsg is broadcast for either removal path
type CoinRemovedMsg struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// CoinCollectedMsg carries the collected value
type CoinCollectedMsg struct {
	ID       string `json:"id"`
	PlayerID string `json:"playerId"`
	Value    int    `json:"value"`
}

// CurrentCoinsMsg is the live coin set sent on join
type CurrentCoinsMsg struct {
	Coins []CoinState `json:"coins"`
}

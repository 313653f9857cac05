package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"

	"arena-server/protocol"
)

// payloads lists every wire message with a structured payload, keyed by the
// envelope type that carries it
var payloads = []struct {
	name string
	v    any
}{
	{protocol.MsgJoin, protocol.JoinMsg{}},
	{protocol.MsgPlayerInput, protocol.InputMsg{}},
	{protocol.MsgFireProjectile, protocol.FireMsg{}},
	{protocol.MsgPlayerHit + " (client)", protocol.PlayerHitMsg{}},
	{protocol.MsgSwordHit, protocol.SwordHitMsg{}},
	{protocol.MsgSwordUsed + " (client)", protocol.SwordUsedMsg{}},
	{protocol.MsgDestroyProjectile, protocol.DestroyProjectileMsg{}},
	{protocol.MsgPlayerDefeated + " (client)", protocol.PlayerIDMsg{}},
	{protocol.MsgSetPlayerName, protocol.SetNameMsg{}},
	{protocol.MsgHitObstacle, protocol.HitObstacleMsg{}},

	{protocol.MsgConnected, protocol.IDMsg{}},
	{protocol.MsgNewPlayer, protocol.PlayerState{}},
	{protocol.MsgPlayerDisconnected, protocol.IDMsg{}},
	{protocol.MsgPlayerMoved, protocol.PlayerMovedMsg{}},
	{protocol.MsgPlayerNameUpdate, protocol.NameUpdateMsg{}},
	{protocol.MsgProjectileFired, protocol.ProjectileState{}},
	{protocol.MsgProjectileDestroyed, protocol.IDMsg{}},
	{protocol.MsgProjectileImpact, protocol.ProjectileImpactMsg{}},
	{protocol.MsgPlayerHit, protocol.PlayerHitEvent{}},
	{protocol.MsgPlayerSwordHit, protocol.SwordHitEvent{}},
	{protocol.MsgGameState, protocol.GameState{}},
	{protocol.MsgPlayerDefeated, protocol.DefeatedMsg{}},
	{protocol.MsgPlayerRespawned, protocol.RespawnedMsg{}},
	{protocol.MsgSwordUsed, protocol.SwordUsedEvent{}},
	{protocol.MsgPlayerScoreUpdate, protocol.ScoreUpdateMsg{}},
	{protocol.MsgNewObstacle, protocol.ObstacleState{}},
	{protocol.MsgObstacleDestroyed, protocol.ObstacleDestroyedMsg{}},
	{protocol.MsgObstacleHit, protocol.ObstacleHitMsg{}},
	{protocol.MsgOutlineRemoved, protocol.OutlineRemovedMsg{}},
	{protocol.MsgObstaclesUpdated, protocol.ObstaclesUpdatedMsg{}},
	{protocol.MsgCoinSpawned, protocol.CoinState{}},
	{protocol.MsgCoinRemoved, protocol.CoinRemovedMsg{}},
	{protocol.MsgCoinCollected, protocol.CoinCollectedMsg{}},
	{protocol.MsgCurrentCoins, protocol.CurrentCoinsMsg{}},
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}

	variants := make([]*jsonschema.Schema, 0, len(payloads))
	for _, p := range payloads {
		s := reflector.ReflectFromType(reflect.TypeOf(p.v))
		s.Version = ""
		s.Title = p.name
		variants = append(variants, s)
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Arena wire protocol",
		Description: "Payloads carried in the \"d\" field of {\"t\", \"d\"} envelopes, titled by message type.",
		OneOf:       variants,
	}
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}

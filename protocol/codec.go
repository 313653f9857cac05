package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode marshals a typed envelope to JSON
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	return json.Marshal(Envelope{T: t, Data: payload})
}

// DecodeEnvelope parses the outer envelope of an inbound message
func DecodeEnvelope(b []byte) (InEnvelope, error) {
	if len(b) == 0 {
		return InEnvelope{}, fmt.Errorf("decode envelope: empty message")
	}
	var env InEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return InEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.T == "" {
		return InEnvelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// DecodePayload unmarshals the raw payload into T. An absent payload yields
// the zero value so payload-less messages (reloadAmmo, join) decode cleanly.
func DecodePayload[T any](env InEnvelope) (T, error) {
	var out T
	if len(env.D) == 0 || string(env.D) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.D, &out); err != nil {
		return out, fmt.Errorf("decode %q payload: %w", env.T, err)
	}
	return out, nil
}

// EncodeStateBinary encodes a snapshot as msgpack for binary clients
func EncodeStateBinary(gs GameState) ([]byte, error) {
	return msgpack.Marshal(&gs)
}

// DecodeStateBinary is the inverse of EncodeStateBinary
func DecodeStateBinary(b []byte) (GameState, error) {
	var gs GameState
	err := msgpack.Unmarshal(b, &gs)
	return gs, err
}

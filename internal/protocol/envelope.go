package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // ms since epoch
}

// NewEnvelope wraps a payload, stamping the current time. A nil
// payload produces an envelope with no data, used by bare signals like
// pong and room_left.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	env := Envelope{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("protocol: marshal %s payload: %w", msgType, err)
		}
		env.Data = data
	}
	return env, nil
}

// MustEnvelope is NewEnvelope for payload types the server controls;
// their marshaling cannot fail.
func MustEnvelope(msgType string, payload any) Envelope {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Encode serializes the envelope to a single JSON frame.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a frame into an envelope. The payload stays raw until
// the dispatcher knows its type.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("protocol: envelope missing type")
	}
	return env, nil
}

// Payload unmarshals the envelope data into the given payload struct.
func Payload[T any](env Envelope) (T, error) {
	var payload T
	if len(env.Data) == 0 {
		return payload, fmt.Errorf("protocol: %s envelope has no data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("protocol: decode %s payload: %w", env.Type, err)
	}
	return payload, nil
}

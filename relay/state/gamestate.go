package state

import "encoding/json"

// Default values for a freshly created room's match state. The relay does not
// understand the card game; these are just the agreed starting blob both
// clients expect before the first GAME_STATE_UPDATE arrives.
const (
	DefaultHealth = 30
	DefaultMana   = 10
	TurnPlayer    = "player"
)

// GameState is a room's authoritative state blob: an opaque field set plus a
// version counter and the timestamp of the last accepted update. The relay
// merges patches into Fields without interpreting them.
type GameState struct {
	Version   int64
	Timestamp int64
	Fields    map[string]any
}

// NewGameState returns the default initial state at version 0.
func NewGameState(nowMillis int64) *GameState {
	return &GameState{
		Version:   0,
		Timestamp: nowMillis,
		Fields: map[string]any{
			"playerHealth":   DefaultHealth,
			"playerMana":     DefaultMana,
			"opponentHealth": DefaultHealth,
			"opponentMana":   DefaultMana,
			"currentTurn":    TurnPlayer,
		},
	}
}

// Merge applies a patch to the state: every patch field overwrites or adds to
// Fields, the version bumps by exactly 1, and the timestamp is refreshed.
// "version" and "timestamp" keys inside the patch are ignored; the relay owns
// both and a client must not be able to rewind them.
func (s *GameState) Merge(patch map[string]any, nowMillis int64) {
	for k, v := range patch {
		if k == "version" || k == "timestamp" {
			continue
		}
		s.Fields[k] = v
	}
	s.Version++
	s.Timestamp = nowMillis
}

// Clone returns an independent copy, used for snapshots handed outside the
// event loop.
func (s *GameState) Clone() *GameState {
	fields := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return &GameState{
		Version:   s.Version,
		Timestamp: s.Timestamp,
		Fields:    fields,
	}
}

// MarshalJSON flattens Fields with the managed version and timestamp into one
// object, matching the wire shape clients exchange.
func (s *GameState) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+2)
	for k, v := range s.Fields {
		out[k] = v
	}
	out["version"] = s.Version
	out["timestamp"] = s.Timestamp
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the managed fields from the flattened wire shape.
func (s *GameState) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["version"].(float64); ok {
		s.Version = int64(v)
	}
	if ts, ok := raw["timestamp"].(float64); ok {
		s.Timestamp = int64(ts)
	}
	delete(raw, "version")
	delete(raw, "timestamp")
	s.Fields = raw
	return nil
}

package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameState(t *testing.T) {
	s := NewGameState(1000)

	assert.Equal(t, int64(0), s.Version)
	assert.Equal(t, int64(1000), s.Timestamp)
	assert.Equal(t, DefaultHealth, s.Fields["playerHealth"])
	assert.Equal(t, DefaultMana, s.Fields["playerMana"])
	assert.Equal(t, DefaultHealth, s.Fields["opponentHealth"])
	assert.Equal(t, DefaultMana, s.Fields["opponentMana"])
	assert.Equal(t, TurnPlayer, s.Fields["currentTurn"])
}

func TestMerge(t *testing.T) {
	t.Run("BumpsVersionByOne", func(t *testing.T) {
		s := NewGameState(1000)
		s.Merge(map[string]any{"playerHealth": 25}, 2000)

		assert.Equal(t, int64(1), s.Version)
		assert.Equal(t, int64(2000), s.Timestamp)
		assert.Equal(t, 25, s.Fields["playerHealth"])
	})

	t.Run("AddsNewFields", func(t *testing.T) {
		s := NewGameState(1000)
		s.Merge(map[string]any{"boardCards": []string{"c1", "c2"}}, 2000)

		assert.Equal(t, []string{"c1", "c2"}, s.Fields["boardCards"])
		// Untouched fields survive.
		assert.Equal(t, DefaultHealth, s.Fields["playerHealth"])
	})

	t.Run("IgnoresManagedKeys", func(t *testing.T) {
		s := NewGameState(1000)
		s.Merge(map[string]any{"version": 99, "timestamp": 1, "playerMana": 3}, 2000)

		assert.Equal(t, int64(1), s.Version)
		assert.Equal(t, int64(2000), s.Timestamp)
		assert.Equal(t, 3, s.Fields["playerMana"])
		assert.NotContains(t, s.Fields, "version")
		assert.NotContains(t, s.Fields, "timestamp")
	})

	t.Run("VersionMonotonic", func(t *testing.T) {
		s := NewGameState(1000)
		for i := 1; i <= 5; i++ {
			s.Merge(map[string]any{"n": i}, int64(1000+i))
			assert.Equal(t, int64(i), s.Version)
		}
	})
}

func TestClone(t *testing.T) {
	s := NewGameState(1000)
	s.Merge(map[string]any{"playerHealth": 20}, 2000)

	c := s.Clone()
	c.Merge(map[string]any{"playerHealth": 5}, 3000)

	assert.Equal(t, 20, s.Fields["playerHealth"])
	assert.Equal(t, int64(1), s.Version)
	assert.Equal(t, 5, c.Fields["playerHealth"])
	assert.Equal(t, int64(2), c.Version)
}

func TestGameStateJSON(t *testing.T) {
	t.Run("MarshalFlattens", func(t *testing.T) {
		s := NewGameState(1000)
		s.Merge(map[string]any{"playerHealth": 28}, 2000)

		data, err := json.Marshal(s)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, float64(1), raw["version"])
		assert.Equal(t, float64(2000), raw["timestamp"])
		assert.Equal(t, float64(28), raw["playerHealth"])
		assert.NotContains(t, raw, "fields")
	})

	t.Run("UnmarshalRebuilds", func(t *testing.T) {
		var s GameState
		require.NoError(t, json.Unmarshal(
			[]byte(`{"version":3,"timestamp":5000,"playerHealth":12,"currentTurn":"opponent"}`), &s))

		assert.Equal(t, int64(3), s.Version)
		assert.Equal(t, int64(5000), s.Timestamp)
		assert.Equal(t, float64(12), s.Fields["playerHealth"])
		assert.Equal(t, "opponent", s.Fields["currentTurn"])
		assert.NotContains(t, s.Fields, "version")
	})
}

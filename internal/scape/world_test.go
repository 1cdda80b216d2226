package scape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorldLaysOutRoomsAndDistractors(t *testing.T) {
	w, err := NewWorld(Game{Name: "t", Rooms: 6, MaxSteps: 10, Seed: 3, Distractors: 2})
	require.NoError(t, err)
	assert.Equal(t, 8, w.Rooms())
	assert.Equal(t, 5, w.coin)

	again, err := NewWorld(Game{Name: "t", Rooms: 6, MaxSteps: 10, Seed: 3, Distractors: 2})
	require.NoError(t, err)
	assert.Equal(t, w.rooms, again.rooms)
}

func TestNewWorldRejectsBadDefinitions(t *testing.T) {
	_, err := NewWorld(Game{Name: "t", Rooms: 0})
	require.Error(t, err)
	_, err = NewWorld(Game{Name: "t", Rooms: 2, Distractors: -1})
	require.Error(t, err)
}

func TestStepFailureObservations(t *testing.T) {
	w, err := NewWorld(Game{Name: "t", Rooms: 3, MaxSteps: 10, Seed: 1})
	require.NoError(t, err)
	obs := w.Reset()
	assert.NotContains(t, obs.Admissible, CmdTakeCoin)

	obs = w.Step(CmdTakeCoin)
	assert.Equal(t, ObsNoObject, obs.Text)
	assert.False(t, obs.Won)

	for _, d := range directions {
		cmd := "go " + d.String()
		if _, ok := w.rooms[0].exits[d]; ok {
			continue
		}
		obs = w.Step(cmd)
		assert.Equal(t, ObsNoExit, obs.Text, cmd)
		assert.Equal(t, 0, w.player)
	}
}

func TestStepNormalizesCommands(t *testing.T) {
	w, err := NewWorld(Game{Name: "t", Rooms: 1, MaxSteps: 10, Seed: 1})
	require.NoError(t, err)
	w.Reset()

	obs := w.Step("  TAKE   Coin ")
	assert.True(t, obs.Won)
	assert.Equal(t, "You are carrying: a coin.", w.Step("Inventory").Text)
}

func TestCoinIsReachable(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		w, err := NewWorld(Game{Name: "t", Rooms: 8, MaxSteps: 10, Seed: seed, Distractors: 3})
		require.NoError(t, err)
		w.Reset()
		require.True(t, explore(w, map[int]bool{}), "seed %d", seed)
		assert.True(t, w.Won())
	}
}

func explore(w *World, visited map[int]bool) bool {
	visited[w.player] = true
	for _, cmd := range w.Admissible() {
		if cmd == CmdTakeCoin {
			return w.Step(cmd).Won
		}
	}
	for _, d := range directions {
		next, ok := w.rooms[w.player].exits[d]
		if !ok || visited[next] {
			continue
		}
		w.Step("go " + d.String())
		if explore(w, visited) {
			return true
		}
		w.Step("go " + d.opposite().String())
	}
	return false
}

package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domino-drop/internal/game"
)

func TestPlay_RunsToCompletion(t *testing.T) {
	for _, starter := range []game.Side{game.First, game.Second} {
		t.Run(starter.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			bots := [2]*game.Bot{
				game.NewBotWithRand(game.First, game.DifficultyEasy, rng),
				game.NewBotWithRand(game.Second, game.DifficultyMedium, rng),
			}

			m, err := play(bots, starter, 8)

			require.NoError(t, err)
			assert.Equal(t, game.StatusFinished, m.Status)
			assert.True(t, m.Outcome.Over)
			assert.LessOrEqual(t, m.Placed[0], 8)
			assert.LessOrEqual(t, m.Placed[1], 8)
			assert.Equal(t, starter, m.Blocks[0].Owner)
			if m.Outcome.Cause == game.CauseFive {
				assert.Len(t, m.Outcome.Line, game.WinLength)
			}
		})
	}
}

func TestRender(t *testing.T) {
	t.Run("empty grid", func(t *testing.T) {
		assert.Nil(t, render(game.NewGrid()))
	})

	t.Run("draws owners top row first", func(t *testing.T) {
		g, err := game.Rebuild([]game.Block{
			{X: -1, Y: 0, Orientation: game.Vertical, Owner: game.First},
			{X: 0, Y: 0, Orientation: game.Horizontal, Owner: game.Second},
		})
		require.NoError(t, err)

		rows := render(g)

		require.Len(t, rows, game.Rows)
		assert.Equal(t, "...", rows[0])
		assert.Equal(t, "x..", rows[game.Rows-2])
		assert.Equal(t, "xoo", rows[game.Rows-1])
	})
}

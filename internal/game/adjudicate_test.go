package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jammedGrid fills columns 0..8 so that neither side has a legal placement
// and neither side holds five in a row. Column 0 stops at height 8, the
// others are full, and the width is at its limit.
func jammedGrid(t *testing.T) *Grid {
	t.Helper()
	owner := func(n int) Side {
		if n%2 == 0 {
			return First
		}
		return Second
	}

	var blocks []Block
	for k := 0; k < 4; k++ {
		blocks = append(blocks, v(0, 2*k, owner(k)))
	}
	for i, x := range []int{1, 3, 5, 7} {
		blocks = append(blocks, h(x, 0, owner(i)))
	}
	for x := 1; x <= 8; x++ {
		for k := 0; k < 4; k++ {
			blocks = append(blocks, v(x, 1+2*k, owner(x+k)))
		}
	}

	g := mustRebuild(t, blocks...)
	require.False(t, HasLegalMove(g, First))
	require.False(t, HasLegalMove(g, Second))
	require.Nil(t, CheckWin(g, First))
	require.Nil(t, CheckWin(g, Second))
	return g
}

func TestAdjudicateMove(t *testing.T) {
	const budget = 20

	t.Run("five in a row wins", func(t *testing.T) {
		g := mustRebuild(t, h(0, 0, First), h(2, 0, First), v(4, 0, First))

		out := AdjudicateMove(g, First, [2]int{3, 2}, budget)

		assert.True(t, out.Over)
		assert.Equal(t, First, out.Winner)
		assert.Equal(t, CauseFive, out.Cause)
		assert.Len(t, out.Line, WinLength)
	})

	t.Run("opponent blocked with pieces left loses", func(t *testing.T) {
		g := jammedGrid(t)

		out := AdjudicateMove(g, First, [2]int{10, 10}, budget)

		assert.Equal(t, Outcome{Over: true, Winner: First, Cause: CauseBlocked}, out)
	})

	t.Run("both stuck with the opponent spent is a draw", func(t *testing.T) {
		g := jammedGrid(t)

		out := AdjudicateMove(g, First, [2]int{10, budget}, budget)

		assert.True(t, out.Draw())
		assert.Equal(t, CauseExhausted, out.Cause)
	})

	t.Run("play continues while both can place", func(t *testing.T) {
		g := mustRebuild(t, v(0, 0, First), v(1, 0, Second))

		assert.False(t, AdjudicateMove(g, Second, [2]int{1, 1}, budget).Over)
	})

	t.Run("a spent mover that can still place is not judged yet", func(t *testing.T) {
		g := mustRebuild(t, v(0, 0, First), v(1, 0, Second))

		out := AdjudicateMove(g, Second, [2]int{1, budget}, budget)

		assert.False(t, out.Over)
	})
}

func TestAdjudicatePass(t *testing.T) {
	const budget = 2
	g := mustRebuild(t, v(0, 0, First), v(1, 0, Second), v(-1, 0, Second), v(2, 0, First))

	t.Run("refused while a placement is available", func(t *testing.T) {
		_, err := AdjudicatePass(g, First, [2]int{1, 1}, budget)
		assert.ErrorIs(t, err, ErrPassNotAllowed)
	})

	t.Run("spent passer loses to an opponent that can place", func(t *testing.T) {
		out, err := AdjudicatePass(g, First, [2]int{budget, 1}, budget)

		require.NoError(t, err)
		assert.Equal(t, Second, out.Winner)
		assert.Equal(t, CauseExhausted, out.Cause)
	})

	t.Run("both spent is a draw", func(t *testing.T) {
		out, err := AdjudicatePass(g, Second, [2]int{budget, budget}, budget)

		require.NoError(t, err)
		assert.True(t, out.Draw())
	})

	t.Run("jammed grid", func(t *testing.T) {
		out, err := AdjudicatePass(jammedGrid(t), Second, [2]int{5, 5}, 20)

		require.NoError(t, err)
		assert.True(t, out.Draw())
	})
}

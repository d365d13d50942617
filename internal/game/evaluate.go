package game

// Heuristic weights
const (
	ScoreWin    = 100000
	ScoreFour   = 500
	ScoreThree  = 50
	ScoreTwo    = 5
	ScoreCenter = 2
)

// Evaluate scores the grid from owner's point of view by summing every
// WinLength window that starts one column either side of the occupied range.
func Evaluate(g *Grid, owner Side) int {
	minX, maxX, ok := g.Bounds()
	if !ok {
		return 0
	}

	score := 0
	for x := minX - 1; x <= maxX+1; x++ {
		for y := 0; y <= Rows; y++ {
			for _, d := range directions {
				score += scoreWindow(g, x, y, d, owner)
			}
			if c, ok := g.At(x, y); ok && c.Owner == owner {
				score += centerBonus(x)
			}
		}
	}
	return score
}

func centerBonus(x int) int {
	if x < 0 {
		x = -x
	}
	if x >= 5 {
		return 0
	}
	return (5 - x) * ScoreCenter
}

// scoreWindow evaluates one window of WinLength cells
func scoreWindow(g *Grid, x, y int, d Coord, owner Side) int {
	own, opp := 0, 0
	for i := 0; i < WinLength; i++ {
		c, ok := g.At(x+d.X*i, y+d.Y*i)
		if !ok {
			continue
		}
		if c.Owner == owner {
			own++
		} else {
			opp++
		}
	}

	switch {
	case own > 0 && opp == 0:
		return runScore(own)
	case opp > 0 && own == 0:
		if opp == 4 {
			// weight blocking an open four above building one
			return -ScoreFour * 3 / 2
		}
		return -runScore(opp)
	}
	return 0
}

func runScore(n int) int {
	switch n {
	case 5:
		return ScoreWin
	case 4:
		return ScoreFour
	case 3:
		return ScoreThree
	case 2:
		return ScoreTwo
	}
	return 0
}

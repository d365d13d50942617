package game

var directions = [4]Coord{
	{1, 0},  // horizontal
	{0, 1},  // vertical
	{1, 1},  // rising diagonal
	{1, -1}, // falling diagonal
}

// CheckWin returns the first run of WinLength cells owned by owner, or nil.
// Cells are scanned in x-then-y order and each direction is followed forward
// only, so a run is reported from its lowest-x end.
func CheckWin(g *Grid, owner Side) []Coord {
	for _, start := range g.CellsOf(owner) {
		for _, d := range directions {
			run := []Coord{start}
			for step := 1; step < WinLength; step++ {
				nx, ny := start.X+d.X*step, start.Y+d.Y*step
				c, ok := g.At(nx, ny)
				if !ok || c.Owner != owner {
					break
				}
				run = append(run, Coord{nx, ny})
			}
			if len(run) >= WinLength {
				return run
			}
		}
	}
	return nil
}

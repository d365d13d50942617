package game

// DropY returns the landing row for a block dropped at column x, or NoRow.
// A vertical block lands on top of the column stack if its upper half still
// fits under the ceiling. A horizontal block needs both columns at the same
// height; uneven stacks cannot be bridged.
func DropY(g *Grid, x int, o Orientation) int {
	if o == Vertical {
		y := g.Height(x)
		if y+1 < Rows {
			return y
		}
		return NoRow
	}

	left := g.Height(x)
	right := g.Height(x + 1)
	if left == right && left < Rows {
		return left
	}
	return NoRow
}

// Validate reports whether a block for owner may be placed at (x, y)
func Validate(g *Grid, x, y int, o Orientation, owner Side) bool {
	return CheckPlacement(g, Block{X: x, Y: y, Orientation: o, Owner: owner}) == nil
}

// CheckPlacement returns the reason a block may not be placed, or nil.
// It does not check that y is the gravity landing row; see CheckDrop.
func CheckPlacement(g *Grid, b Block) error {
	if b.Y == NoRow {
		return ErrNoLandingRow
	}
	for _, c := range b.Cells() {
		if c.Y < 0 || c.Y >= Rows {
			return ErrOutOfBounds
		}
		if g.Occupied(c.X, c.Y) {
			return ErrCellOccupied
		}
	}

	if !g.Empty() {
		if exceedsWidth(g, b) {
			return ErrTooWide
		}
		if !touchesExisting(g, b) {
			return ErrNotConnected
		}
	}

	if shortSideContact(g, b) {
		return ErrShortSideContact
	}
	return nil
}

// CheckDrop validates a block including the gravity landing row
func CheckDrop(g *Grid, b Block) error {
	if y := DropY(g, b.X, b.Orientation); y == NoRow {
		return ErrNoLandingRow
	} else if y != b.Y {
		return ErrWrongRow
	}
	return CheckPlacement(g, b)
}

func exceedsWidth(g *Grid, b Block) bool {
	minX, maxX, _ := g.Bounds()
	cells := b.Cells()
	lo, hi := cells[0].X, cells[1].X
	if lo < minX {
		minX = lo
	}
	if hi > maxX {
		maxX = hi
	}
	return maxX-minX+1 > MaxWidth
}

// touchesExisting checks the orthogonal neighbours of both halves
func touchesExisting(g *Grid, b Block) bool {
	x, y := b.X, b.Y
	var around [6]Coord
	if b.Orientation == Vertical {
		around = [6]Coord{
			{x - 1, y}, {x + 1, y}, {x, y - 1},
			{x - 1, y + 1}, {x + 1, y + 1}, {x, y + 2},
		}
	} else {
		around = [6]Coord{
			{x - 1, y}, {x, y - 1}, {x, y + 1},
			{x + 1, y - 1}, {x + 1, y + 1}, {x + 2, y},
		}
	}
	for _, c := range around {
		if c.Y >= 0 && c.Y < Rows && g.Occupied(c.X, c.Y) {
			return true
		}
	}
	return false
}

// shortSideContact applies the same-owner short end rule. Only the side a
// block can arrive against under gravity is inspected: below for vertical
// blocks, left and right for horizontal ones. The cell above a vertical
// block is never checked.
func shortSideContact(g *Grid, b Block) bool {
	sameEnd := func(x, y int) bool {
		c, ok := g.At(x, y)
		return ok && c.Owner == b.Owner && c.Orientation == b.Orientation
	}

	if b.Orientation == Vertical {
		return b.Y > 0 && sameEnd(b.X, b.Y-1)
	}
	return sameEnd(b.X-1, b.Y) || sameEnd(b.X+2, b.Y)
}

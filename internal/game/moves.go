package game

// LegalMoves enumerates every legal block for owner, column by column from
// minX-1 to maxX+1, vertical before horizontal. On an empty grid only
// column 0 is offered.
func LegalMoves(g *Grid, owner Side) []Block {
	from, to := 0, 0
	if minX, maxX, ok := g.Bounds(); ok {
		from, to = minX-1, maxX+1
	}

	var moves []Block
	for x := from; x <= to; x++ {
		for _, o := range Orientations {
			y := DropY(g, x, o)
			if Validate(g, x, y, o, owner) {
				moves = append(moves, Block{X: x, Y: y, Orientation: o, Owner: owner})
			}
		}
	}
	return moves
}

// HasLegalMove reports whether owner has any legal placement
func HasLegalMove(g *Grid, owner Side) bool {
	from, to := 0, 0
	if minX, maxX, ok := g.Bounds(); ok {
		from, to = minX-1, maxX+1
	}
	for x := from; x <= to; x++ {
		for _, o := range Orientations {
			if y := DropY(g, x, o); Validate(g, x, y, o, owner) {
				return true
			}
		}
	}
	return false
}

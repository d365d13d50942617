package game

// Cause explains how a match ended
type Cause string

const (
	CauseFive       Cause = "five"
	CauseBlocked    Cause = "blocked"
	CauseExhausted  Cause = "exhausted"
	CauseTimeout    Cause = "timeout"
	CauseDisconnect Cause = "disconnect"
)

// Outcome is the result of adjudicating a turn. Winner is NoSide on a draw.
type Outcome struct {
	Over   bool
	Winner Side
	Cause  Cause
	Line   []Coord
}

// Draw reports whether the outcome ended the match without a winner
func (o Outcome) Draw() bool {
	return o.Over && o.Winner == NoSide
}

// CanPlace reports whether side still has budget and a legal placement
func CanPlace(g *Grid, side Side, placed [2]int, budget int) bool {
	return placed[side.Index()] < budget && HasLegalMove(g, side)
}

// AdjudicateMove decides whether the block just placed by mover ends the match.
//
// A side that spends its whole budget while the opponent can still place is
// not judged here; the match continues and the exhausted side resolves it on
// its own turn with a pass (see AdjudicatePass).
func AdjudicateMove(g *Grid, mover Side, placed [2]int, budget int) Outcome {
	if line := CheckWin(g, mover); line != nil {
		return Outcome{Over: true, Winner: mover, Cause: CauseFive, Line: line}
	}

	next := mover.Opponent()
	moverSpent := placed[mover.Index()] >= budget
	nextSpent := placed[next.Index()] >= budget

	if !HasLegalMove(g, next) {
		if !nextSpent {
			return Outcome{Over: true, Winner: mover, Cause: CauseBlocked}
		}
		if moverSpent || !HasLegalMove(g, mover) {
			return Outcome{Over: true, Cause: CauseExhausted}
		}
		return Outcome{}
	}

	if moverSpent && !HasLegalMove(g, mover) {
		return Outcome{Over: true, Winner: next, Cause: CauseExhausted}
	}
	return Outcome{}
}

// AdjudicatePass ends the match for a side to move that cannot place.
// The opponent wins unless it cannot place either, which is a draw.
func AdjudicatePass(g *Grid, passer Side, placed [2]int, budget int) (Outcome, error) {
	if CanPlace(g, passer, placed, budget) {
		return Outcome{}, ErrPassNotAllowed
	}
	other := passer.Opponent()
	if !CanPlace(g, other, placed, budget) {
		return Outcome{Over: true, Cause: CauseExhausted}, nil
	}
	return Outcome{Over: true, Winner: other, Cause: CauseExhausted}, nil
}

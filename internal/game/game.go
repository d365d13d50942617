package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MatchStatus represents the current state of a match
type MatchStatus string

const (
	StatusPlaying  MatchStatus = "playing"
	StatusFinished MatchStatus = "finished"
)

// ClockConfig holds per-match clock settings in seconds
type ClockConfig struct {
	Timed     bool `json:"timed"`
	Initial   int  `json:"initialTime"`
	Increment int  `json:"increment"`
}

// Move represents a single accepted placement
type Move struct {
	Block     Block     `json:"block"`
	Clocks    [2]int    `json:"clocks"`
	Timestamp time.Time `json:"timestamp"`
}

// Match is one cycle of play between two seats. The block log is the
// authoritative state; the grid is rebuilt from it whenever in doubt.
// A Match is not safe for concurrent use: it belongs to exactly one session.
type Match struct {
	ID        string
	Starter   Side
	Active    Side
	Status    MatchStatus
	Blocks    []Block
	Moves     []Move
	Clock     ClockConfig
	Clocks    [2]int
	Budget    int
	Placed    [2]int
	Outcome   Outcome
	StartTime time.Time
	BeganAt   time.Time
	EndTime   time.Time

	grid *Grid
	now  func() time.Time
}

// NewMatch creates a match with starter to move
func NewMatch(starter Side, clock ClockConfig, budget int) *Match {
	m := &Match{
		ID:      uuid.New().String(),
		Starter: starter,
		Active:  starter,
		Status:  StatusPlaying,
		Blocks:  make([]Block, 0, 2*budget),
		Moves:   make([]Move, 0, 2*budget),
		Clock:   clock,
		Budget:  budget,
		grid:    NewGrid(),
		now:     time.Now,
	}
	m.Clocks = [2]int{clock.Initial, clock.Initial}
	m.StartTime = m.now()
	return m
}

// Grid returns the cached grid for the block log
func (m *Match) Grid() *Grid {
	return m.grid
}

// Begun reports whether at least one block has been placed
func (m *Match) Begun() bool {
	return len(m.Blocks) > 0
}

// Place applies a block for side. reported carries the mover's view of
// both clocks, which replaces the stored values when the match is timed.
// A mover whose own clock has already run out loses without placing.
func (m *Match) Place(side Side, b Block, reported *[2]int) (Outcome, error) {
	if m.Status != StatusPlaying {
		return Outcome{}, ErrMatchNotInProgress
	}
	if side != m.Active {
		return Outcome{}, ErrNotYourTurn
	}
	if m.Placed[side.Index()] >= m.Budget {
		return Outcome{}, ErrBudgetExhausted
	}

	b.Owner = side
	if err := CheckDrop(m.grid, b); err != nil {
		return Outcome{}, err
	}

	if m.Clock.Timed && reported != nil {
		m.Clocks = *reported
		if m.Clocks[side.Index()] <= 0 {
			return m.finish(Outcome{Over: true, Winner: side.Opponent(), Cause: CauseTimeout}), nil
		}
	}

	next, err := m.grid.Apply(b)
	if err != nil {
		// the cache disagrees with validation; trust the log
		if rebuilt, rerr := Rebuild(m.Blocks); rerr == nil {
			m.grid = rebuilt
		}
		return Outcome{}, fmt.Errorf("replay divergence: %w", err)
	}
	m.grid = next

	now := m.now()
	if len(m.Blocks) == 0 {
		m.BeganAt = now
	}
	if m.Clock.Timed {
		m.Clocks[side.Index()] += m.Clock.Increment
	}
	m.Blocks = append(m.Blocks, b)
	m.Placed[side.Index()]++
	m.Moves = append(m.Moves, Move{Block: b, Clocks: m.Clocks, Timestamp: now})

	outcome := AdjudicateMove(m.grid, side, m.Placed, m.Budget)
	if outcome.Over {
		return m.finish(outcome), nil
	}
	m.Active = side.Opponent()
	return outcome, nil
}

// Pass resolves a turn for a side to move that cannot place
func (m *Match) Pass(side Side) (Outcome, error) {
	if m.Status != StatusPlaying {
		return Outcome{}, ErrMatchNotInProgress
	}
	if side != m.Active {
		return Outcome{}, ErrNotYourTurn
	}
	outcome, err := AdjudicatePass(m.grid, side, m.Placed, m.Budget)
	if err != nil {
		return Outcome{}, err
	}
	return m.finish(outcome), nil
}

// ExpireClock ends a timed match because side ran out of time.
// Only the clock of the side to move can be running.
func (m *Match) ExpireClock(side Side) (Outcome, error) {
	if m.Status != StatusPlaying {
		return Outcome{}, ErrMatchNotInProgress
	}
	if !m.Clock.Timed || side != m.Active {
		return Outcome{}, ErrClockNotRunning
	}
	m.Clocks[side.Index()] = 0
	return m.finish(Outcome{Over: true, Winner: side.Opponent(), Cause: CauseTimeout}), nil
}

// Forfeit ends the match with loser's opponent as winner
func (m *Match) Forfeit(loser Side, cause Cause) Outcome {
	if m.Status == StatusFinished {
		return m.Outcome
	}
	return m.finish(Outcome{Over: true, Winner: loser.Opponent(), Cause: cause})
}

func (m *Match) finish(o Outcome) Outcome {
	m.Status = StatusFinished
	m.Outcome = o
	m.EndTime = m.now()
	return o
}

// Duration returns whole seconds since the first placement
func (m *Match) Duration() int {
	if m.BeganAt.IsZero() {
		return 0
	}
	end := m.EndTime
	if end.IsZero() {
		end = m.now()
	}
	return int(end.Sub(m.BeganAt).Seconds())
}

// State returns the current match state for serialization
func (m *Match) State() *MatchState {
	blocks := make([]Block, len(m.Blocks))
	copy(blocks, m.Blocks)

	state := &MatchState{
		ID:        m.ID,
		Starter:   m.Starter,
		Active:    m.Active,
		Status:    m.Status,
		Blocks:    blocks,
		Clock:     m.Clock,
		Clocks:    m.Clocks,
		Placed:    m.Placed,
		Budget:    m.Budget,
		MoveCount: len(m.Blocks),
	}
	if m.Status == StatusFinished {
		state.Winner = m.Outcome.Winner
		state.Cause = m.Outcome.Cause
		state.Draw = m.Outcome.Draw()
		state.Line = m.Outcome.Line
	}
	return state
}

// MatchState represents the serializable match state
type MatchState struct {
	ID        string      `json:"id"`
	Starter   Side        `json:"starter"`
	Active    Side        `json:"active"`
	Status    MatchStatus `json:"status"`
	Blocks    []Block     `json:"blocks"`
	Clock     ClockConfig `json:"clock"`
	Clocks    [2]int      `json:"clocks"`
	Placed    [2]int      `json:"placed"`
	Budget    int         `json:"budget"`
	MoveCount int         `json:"moveCount"`
	Winner    Side        `json:"winner,omitempty"`
	Draw      bool        `json:"draw,omitempty"`
	Cause     Cause       `json:"cause,omitempty"`
	Line      []Coord     `json:"line,omitempty"`
}

// Errors
var (
	ErrMatchNotInProgress = &GameError{"match is not in progress"}
	ErrNotYourTurn        = &GameError{"not your turn"}
	ErrBudgetExhausted    = &GameError{"no blocks left to place"}
	ErrPassNotAllowed     = &GameError{"a legal placement is still available"}
	ErrClockNotRunning    = &GameError{"that clock is not running"}
	ErrNoLandingRow       = &GameError{"no landing row for that column"}
	ErrWrongRow           = &GameError{"block does not land at that row"}
	ErrOutOfBounds        = &GameError{"block is outside the grid"}
	ErrCellOccupied       = &GameError{"cell is already occupied"}
	ErrTooWide            = &GameError{"grid would exceed the maximum width"}
	ErrNotConnected       = &GameError{"block must touch an existing block"}
	ErrShortSideContact   = &GameError{"short sides of your own blocks may not touch"}
)

type GameError struct {
	msg string
}

func (e *GameError) Error() string {
	return e.msg
}

// OverlapError reports a block landing on an occupied cell during replay
type OverlapError struct {
	X, Y int
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("cell (%d,%d) is already occupied", e.X, e.Y)
}

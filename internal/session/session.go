package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/domino-drop/internal/game"
)

// State is the lifecycle state of a session
type State string

const (
	StateAwaitingOpponent State = "awaiting_opponent"
	StateActive           State = "active"
	StateEnded            State = "ended"
	StateRematchPending   State = "rematch_pending"
	StateClosed           State = "closed"
)

type seat struct {
	name   string
	connID string
}

// JoinRequest asks to fill the open seat or to watch
type JoinRequest struct {
	ConnID      string
	Name        string
	AccessCode  string
	AsSpectator bool
}

// MoveRequest carries a block and optionally the mover's view of both clocks
type MoveRequest struct {
	ConnID string
	Block  game.Block
	Clocks *[2]int
}

// Session is the authoritative record of one room. All state is owned by
// the run goroutine; the exported methods post closures to its inbox and
// wait for the result, so commands from one connection apply in order.
type Session struct {
	ID         string
	AccessCode string
	Private    bool
	Clock      game.ClockConfig
	Budget     int
	CreatedAt  time.Time

	seats      [2]*seat
	spectators map[string]string // connID -> name
	state      State
	match      *game.Match
	last       game.Outcome
	votes      [2]bool
	scores     [2]int
	recorded   bool

	manager *Manager
	logger  *zap.Logger
	inbox   chan func()
	done    chan struct{}
}

func newSession(m *Manager, id, code string, req CreateRequest, clock game.ClockConfig) *Session {
	s := &Session{
		ID:         id,
		AccessCode: code,
		Private:    req.Private,
		Clock:      clock,
		Budget:     m.budget,
		CreatedAt:  time.Now(),
		seats:      [2]*seat{{name: req.HostName, connID: req.ConnID}},
		spectators: make(map[string]string),
		state:      StateAwaitingOpponent,
		manager:    m,
		logger:     m.logger.With(zap.String("session", id)),
		inbox:      make(chan func()),
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.done)
	for fn := range s.inbox {
		fn()
		if s.state == StateClosed {
			return
		}
	}
}

// do runs fn on the session goroutine and waits for its result
func (s *Session) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case s.inbox <- func() { errCh <- fn() }:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session has shut down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Join fills the second seat, or attaches a spectator once the match has
// begun. It returns the seat taken, game.NoSide for spectators.
func (s *Session) Join(ctx context.Context, req JoinRequest) (game.Side, error) {
	var side game.Side
	err := s.do(ctx, func() error {
		var err error
		side, err = s.join(req)
		return err
	})
	return side, err
}

func (s *Session) join(req JoinRequest) (game.Side, error) {
	if s.Private && req.AccessCode != s.AccessCode {
		return game.NoSide, ErrAccessCodeMismatch
	}

	if s.seats[1] != nil {
		if s.match == nil || !s.match.Begun() {
			return game.NoSide, ErrSessionFull
		}
		s.spectators[req.ConnID] = req.Name
		s.logger.Info("spectator attached", zap.String("name", req.Name))
		s.send(req.ConnID, Event{Type: EventSnapshot, SessionID: s.ID, Snapshot: s.snapshot()})
		return game.NoSide, nil
	}
	if req.AsSpectator {
		return game.NoSide, ErrSpectateUnavailable
	}
	if strings.EqualFold(strings.TrimSpace(req.Name), strings.TrimSpace(s.seats[0].name)) {
		return game.NoSide, ErrDuplicateIdentity
	}

	s.seats[1] = &seat{name: req.Name, connID: req.ConnID}
	s.manager.roomFilled(s.ID)
	s.startMatch(game.First, false)
	return game.Second, nil
}

// Move applies a placement from the seat behind connID
func (s *Session) Move(ctx context.Context, req MoveRequest) error {
	return s.do(ctx, func() error { return s.move(req) })
}

func (s *Session) move(req MoveRequest) error {
	side, err := s.actor(req.ConnID, "move")
	if err != nil {
		return err
	}
	if s.state != StateActive {
		return game.ErrMatchNotInProgress
	}

	before := len(s.match.Blocks)
	out, err := s.match.Place(side, req.Block, req.Clocks)
	if err != nil {
		var overlap *game.OverlapError
		if errors.As(err, &overlap) {
			s.logger.Error("replay divergence", zap.Int("x", overlap.X), zap.Int("y", overlap.Y))
			s.send(req.ConnID, Event{Type: EventSnapshot, SessionID: s.ID, Snapshot: s.snapshot()})
		}
		return err
	}

	if len(s.match.Blocks) > before {
		placed := s.match.Blocks[len(s.match.Blocks)-1]
		clocks := s.match.Clocks
		ev := Event{
			Type:      EventMoveApplied,
			SessionID: s.ID,
			Side:      side,
			Block:     &placed,
			Clocks:    &clocks,
		}
		if out.Over {
			ev.Winner = out.Winner
			ev.Draw = out.Draw()
			ev.Line = out.Line
		} else {
			ev.NextMover = s.match.Active
		}
		s.broadcast(ev)
		s.manager.moveApplied(MoveInfo{
			SessionID: s.ID,
			MatchID:   s.match.ID,
			Player:    s.seats[side.Index()].name,
			Block:     placed,
			MoveNum:   len(s.match.Blocks),
			Clocks:    clocks,
		})
	}

	if out.Over {
		s.endMatch(out)
	}
	return nil
}

// Pass gives up the turn of a side that has nothing left to place
func (s *Session) Pass(ctx context.Context, connID string) error {
	return s.do(ctx, func() error {
		side, err := s.actor(connID, "pass")
		if err != nil {
			return err
		}
		if s.state != StateActive {
			return game.ErrMatchNotInProgress
		}
		out, err := s.match.Pass(side)
		if err != nil {
			return err
		}
		s.endMatch(out)
		return nil
	})
}

// ExpireClock reports that side ran out of time
func (s *Session) ExpireClock(ctx context.Context, connID string, side game.Side) error {
	return s.do(ctx, func() error {
		if _, err := s.actor(connID, "clock expiry"); err != nil {
			return err
		}
		if s.state != StateActive {
			return game.ErrMatchNotInProgress
		}
		out, err := s.match.ExpireClock(side)
		if err != nil {
			return err
		}
		s.endMatch(out)
		return nil
	})
}

// Rematch records a vote; the second vote starts a new match
func (s *Session) Rematch(ctx context.Context, connID string) error {
	return s.do(ctx, func() error {
		side, err := s.actor(connID, "rematch")
		if err != nil {
			return err
		}
		if s.state != StateEnded && s.state != StateRematchPending {
			return ErrRematchUnavailable
		}

		s.votes[side.Index()] = true
		if !s.votes[0] || !s.votes[1] {
			s.state = StateRematchPending
			s.broadcastExcept(connID, Event{Type: EventRematchPending, SessionID: s.ID, Side: side})
			return nil
		}

		// loser of the previous match starts, a draw keeps First
		starter := game.First
		if s.last.Winner == game.First {
			starter = game.Second
		}
		s.startMatch(starter, true)
		return nil
	})
}

// Leave removes connID from the session. A seated player leaving closes
// the session, forfeiting a begun match that has not been recorded yet.
func (s *Session) Leave(ctx context.Context, connID string) error {
	return s.do(ctx, func() error { return s.leave(connID) })
}

func (s *Session) leave(connID string) error {
	if _, ok := s.spectators[connID]; ok {
		delete(s.spectators, connID)
		return nil
	}
	side, ok := s.seatOf(connID)
	if !ok {
		return ErrNotParticipant
	}

	if s.seats[1] != nil && s.match != nil && s.match.Begun() && !s.recorded {
		out := s.match.Forfeit(side, game.CauseDisconnect)
		s.logger.Info("player forfeited on leave", zap.String("side", side.String()))
		s.endMatch(out)
	}

	s.broadcastExcept(connID, Event{Type: EventOpponentLeft, SessionID: s.ID, Side: side})
	s.close()
	return nil
}

// Resync sends a full snapshot to connID
func (s *Session) Resync(ctx context.Context, connID string) error {
	return s.do(ctx, func() error {
		_, seated := s.seatOf(connID)
		_, watching := s.spectators[connID]
		if !seated && !watching {
			return ErrNotParticipant
		}
		s.send(connID, Event{Type: EventSnapshot, SessionID: s.ID, Snapshot: s.snapshot()})
		return nil
	})
}

// Snapshot returns a copy of the current session state
func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// shutdown closes the session without recording anything
func (s *Session) shutdown(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.close()
		return nil
	})
}

// actor resolves the seat behind connID for a write command
func (s *Session) actor(connID, what string) (game.Side, error) {
	if side, ok := s.seatOf(connID); ok {
		return side, nil
	}
	if name, ok := s.spectators[connID]; ok {
		s.logger.Warn("dropped spectator write",
			zap.String("conn", connID),
			zap.String("name", name),
			zap.String("command", what),
		)
		return game.NoSide, ErrSpectatorWrite
	}
	return game.NoSide, ErrNotParticipant
}

func (s *Session) seatOf(connID string) (game.Side, bool) {
	for i, st := range s.seats {
		if st != nil && st.connID == connID {
			if i == 0 {
				return game.First, true
			}
			return game.Second, true
		}
	}
	return game.NoSide, false
}

func (s *Session) players() Players {
	p := Players{First: s.seats[0].name}
	if s.seats[1] != nil {
		p.Second = s.seats[1].name
	}
	return p
}

func (s *Session) startMatch(starter game.Side, rematch bool) {
	s.match = game.NewMatch(starter, s.Clock, s.Budget)
	s.votes = [2]bool{}
	s.recorded = false
	s.state = StateActive

	players := s.players()
	clock := s.Clock
	for i, st := range s.seats {
		s.send(st.connID, Event{
			Type:       EventMatchStarted,
			SessionID:  s.ID,
			Side:       sideAt(i),
			Players:    &players,
			Clock:      &clock,
			FirstMover: starter,
		})
	}
	for connID := range s.spectators {
		s.send(connID, Event{
			Type:       EventMatchStarted,
			SessionID:  s.ID,
			Players:    &players,
			Clock:      &clock,
			FirstMover: starter,
		})
	}

	s.logger.Info("match started",
		zap.String("match", s.match.ID),
		zap.String("starter", starter.String()),
		zap.Bool("rematch", rematch),
	)
	s.manager.matchStarted(MatchStart{
		SessionID: s.ID,
		MatchID:   s.match.ID,
		Players:   players,
		Starter:   starter,
		Clock:     s.Clock,
		Rematch:   rematch,
	})
}

func (s *Session) endMatch(out game.Outcome) {
	s.state = StateEnded
	s.last = out
	if !out.Draw() {
		s.scores[out.Winner.Index()]++
	}

	scores := s.scores
	s.broadcast(Event{
		Type:      EventMatchEnded,
		SessionID: s.ID,
		Winner:    out.Winner,
		Draw:      out.Draw(),
		Cause:     out.Cause,
		Line:      out.Line,
		Scores:    &scores,
	})
	s.record()
}

// record hands the finished match to the history hook once
func (s *Session) record() {
	if s.recorded {
		return
	}
	s.recorded = true

	m := s.match
	winner := "draw"
	if !m.Outcome.Draw() {
		winner = m.Outcome.Winner.String()
	}
	end := m.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	rec := Record{
		ID:           m.ID,
		SessionID:    s.ID,
		FirstName:    s.seats[0].name,
		SecondName:   s.seats[1].name,
		Winner:       winner,
		Cause:        m.Outcome.Cause,
		Starter:      m.Starter,
		DurationSecs: m.Duration(),
		FirstBlocks:  m.Placed[0],
		SecondBlocks: m.Placed[1],
		EndedAt:      end.UTC(),
	}
	s.logger.Info("match ended",
		zap.String("match", m.ID),
		zap.String("winner", winner),
		zap.String("cause", string(rec.Cause)),
		zap.Int("duration", rec.DurationSecs),
	)
	s.manager.matchEnded(rec)
}

func (s *Session) close() {
	wasOpen := s.state == StateAwaitingOpponent
	s.state = StateClosed
	s.manager.remove(s.ID, wasOpen)
	s.logger.Info("session closed")
}

func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		SessionID:  s.ID,
		State:      s.state,
		Private:    s.Private,
		Players:    s.players(),
		Clock:      s.Clock,
		Scores:     s.scores,
		Spectators: len(s.spectators),
	}
	if s.match != nil {
		snap.Match = s.match.State()
	}
	return snap
}

func (s *Session) send(connID string, ev Event) {
	if s.manager.sink != nil {
		s.manager.sink.Deliver(connID, ev)
	}
}

func (s *Session) broadcast(ev Event) {
	s.broadcastExcept("", ev)
}

func (s *Session) broadcastExcept(skip string, ev Event) {
	for _, st := range s.seats {
		if st != nil && st.connID != skip {
			s.send(st.connID, ev)
		}
	}
	for connID := range s.spectators {
		if connID != skip {
			s.send(connID, ev)
		}
	}
}

func sideAt(i int) game.Side {
	if i == 0 {
		return game.First
	}
	return game.Second
}

package session

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/domino-drop/internal/game"
)

type recordingSink struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(map[string][]Event)}
}

func (r *recordingSink) Deliver(connID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[connID] = append(r.events[connID], ev)
}

func (r *recordingSink) ofType(connID, typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events[connID] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type recorder struct {
	mu      sync.Mutex
	records []Record
	starts  []MatchStart
	moves   []MoveInfo
	opened  []string
	closed  []string
}

func (r *recorder) wire(m *Manager) {
	m.SetOnMatchEnd(func(rec Record) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.records = append(r.records, rec)
	})
	m.SetOnMatchStart(func(ms MatchStart) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.starts = append(r.starts, ms)
	})
	m.SetOnMove(func(mi MoveInfo) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.moves = append(r.moves, mi)
	})
	m.SetOnRoomChange(func(ri RoomInfo) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.opened = append(r.opened, ri.ID)
	}, func(id string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.closed = append(r.closed, id)
	})
}

var defaults = Defaults{
	Clock:  game.ClockConfig{Timed: true, Initial: 300, Increment: 5},
	Budget: 20,
}

func setup(t *testing.T) (*Manager, *recordingSink, *recorder) {
	t.Helper()
	return setupWith(t, defaults)
}

func setupWith(t *testing.T, d Defaults) (*Manager, *recordingSink, *recorder) {
	t.Helper()
	sink := newRecordingSink()
	rec := &recorder{}
	m := NewManager(d, sink, zaptest.NewLogger(t))
	rec.wire(m)
	t.Cleanup(func() { m.CloseAll(context.Background()) })
	return m, sink, rec
}

// started returns a session with host and guest seated and the match active
func started(t *testing.T, m *Manager) *Session {
	t.Helper()
	s := m.Create(CreateRequest{ConnID: "host", HostName: "Ada"})
	_, side, err := m.Join(context.Background(), s.ID, JoinRequest{ConnID: "guest", Name: "Bo"})
	require.NoError(t, err)
	require.Equal(t, game.Second, side)
	return s
}

func vertical(x, y int) game.Block {
	return game.Block{X: x, Y: y, Orientation: game.Vertical}
}

func horizontal(x, y int) game.Block {
	return game.Block{X: x, Y: y, Orientation: game.Horizontal}
}

func TestSession_CreateAndJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("join starts the match with the host moving first", func(t *testing.T) {
		m, sink, rec := setup(t)

		s := started(t, m)

		created := sink.ofType("host", EventSessionCreated)
		require.Len(t, created, 1)
		assert.Equal(t, s.ID, created[0].SessionID)
		assert.Empty(t, created[0].AccessCode)

		for conn, side := range map[string]game.Side{"host": game.First, "guest": game.Second} {
			evs := sink.ofType(conn, EventMatchStarted)
			require.Len(t, evs, 1, conn)
			assert.Equal(t, side, evs[0].Side)
			assert.Equal(t, game.First, evs[0].FirstMover)
			assert.Equal(t, Players{First: "Ada", Second: "Bo"}, *evs[0].Players)
			assert.Equal(t, 300, evs[0].Clock.Initial)
		}
		assert.Equal(t, []string{s.ID}, rec.opened)
		assert.Equal(t, []string{s.ID}, rec.closed)
		require.Len(t, rec.starts, 1)
		assert.False(t, rec.starts[0].Rematch)
	})

	t.Run("unknown session", func(t *testing.T) {
		m, _, _ := setup(t)

		_, _, err := m.Join(ctx, "ZZZZ", JoinRequest{ConnID: "guest", Name: "Bo"})

		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("host name collision ignores case", func(t *testing.T) {
		m, _, _ := setup(t)
		s := m.Create(CreateRequest{ConnID: "host", HostName: "Ada"})

		_, _, err := m.Join(ctx, s.ID, JoinRequest{ConnID: "guest", Name: " ada"})

		assert.ErrorIs(t, err, ErrDuplicateIdentity)
	})

	t.Run("private sessions check the access code", func(t *testing.T) {
		m, sink, _ := setup(t)
		s := m.Create(CreateRequest{ConnID: "host", HostName: "Ada", Private: true})
		code := sink.ofType("host", EventSessionCreated)[0].AccessCode
		require.Len(t, code, codeLength)

		_, _, err := m.Join(ctx, s.ID, JoinRequest{ConnID: "guest", Name: "Bo", AccessCode: "NOPE"})
		assert.ErrorIs(t, err, ErrAccessCodeMismatch)

		_, _, err = m.Join(ctx, s.ID, JoinRequest{ConnID: "guest", Name: "Bo", AccessCode: code})
		assert.NoError(t, err)
	})

	t.Run("full before the first move", func(t *testing.T) {
		m, _, _ := setup(t)
		s := started(t, m)

		_, _, err := m.Join(ctx, s.ID, JoinRequest{ConnID: "third", Name: "Cy"})

		assert.ErrorIs(t, err, ErrSessionFull)
	})

	t.Run("nothing to watch in an open room", func(t *testing.T) {
		m, _, _ := setup(t)
		s := m.Create(CreateRequest{ConnID: "host", HostName: "Ada"})

		_, _, err := m.Join(ctx, s.ID, JoinRequest{ConnID: "third", Name: "Cy", AsSpectator: true})

		assert.ErrorIs(t, err, ErrSpectateUnavailable)
	})

	t.Run("explicit clock settings", func(t *testing.T) {
		m, _, _ := setup(t)

		s := m.Create(CreateRequest{ConnID: "host", HostName: "Ada", Clock: &game.ClockConfig{Initial: 60, Increment: -1}})

		assert.Equal(t, game.ClockConfig{Timed: false, Initial: 60, Increment: 0}, s.Clock)
	})
}

func TestSession_Move(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted moves reach every participant", func(t *testing.T) {
		m, sink, rec := setup(t)
		s := started(t, m)

		err := s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0), Clocks: &[2]int{290, 300}})
		require.NoError(t, err)

		for _, conn := range []string{"host", "guest"} {
			evs := sink.ofType(conn, EventMoveApplied)
			require.Len(t, evs, 1)
			assert.Equal(t, game.Block{X: 0, Y: 0, Orientation: game.Vertical, Owner: game.First}, *evs[0].Block)
			assert.Equal(t, game.Second, evs[0].NextMover)
			assert.Equal(t, [2]int{295, 300}, *evs[0].Clocks)
		}
		require.Len(t, rec.moves, 1)
		assert.Equal(t, "Ada", rec.moves[0].Player)
		assert.Equal(t, 1, rec.moves[0].MoveNum)
	})

	t.Run("out of turn", func(t *testing.T) {
		m, sink, _ := setup(t)
		s := started(t, m)

		err := s.Move(ctx, MoveRequest{ConnID: "guest", Block: vertical(0, 0)})

		assert.ErrorIs(t, err, game.ErrNotYourTurn)
		assert.Empty(t, sink.ofType("host", EventMoveApplied))
	})

	t.Run("illegal placement is not relayed", func(t *testing.T) {
		m, sink, _ := setup(t)
		s := started(t, m)
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0)}))

		err := s.Move(ctx, MoveRequest{ConnID: "guest", Block: vertical(5, 0)})

		assert.ErrorIs(t, err, game.ErrNotConnected)
		assert.Len(t, sink.ofType("host", EventMoveApplied), 1)
		snap, err := s.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, snap.Match.MoveCount)
		assert.Equal(t, game.Second, snap.Match.Active)
	})

	t.Run("strangers cannot move", func(t *testing.T) {
		m, _, _ := setup(t)
		s := started(t, m)

		err := s.Move(ctx, MoveRequest{ConnID: "nobody", Block: vertical(0, 0)})

		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("five in a row ends and records the match", func(t *testing.T) {
		m, sink, rec := setup(t)
		s := started(t, m)
		moves := []struct {
			conn  string
			block game.Block
		}{
			{"host", horizontal(0, 0)}, {"guest", horizontal(0, 1)},
			{"host", vertical(2, 0)}, {"guest", horizontal(-2, 0)},
			{"host", vertical(3, 0)}, {"guest", vertical(3, 2)},
			{"host", vertical(4, 0)},
		}
		for _, mv := range moves {
			require.NoError(t, s.Move(ctx, MoveRequest{ConnID: mv.conn, Block: mv.block}))
		}

		ended := sink.ofType("guest", EventMatchEnded)
		require.Len(t, ended, 1)
		assert.Equal(t, game.First, ended[0].Winner)
		assert.Equal(t, game.CauseFive, ended[0].Cause)
		assert.Equal(t, [2]int{1, 0}, *ended[0].Scores)

		require.Len(t, rec.records, 1)
		assert.Equal(t, "first", rec.records[0].Winner)
		assert.Equal(t, 4, rec.records[0].FirstBlocks)
		assert.Equal(t, 3, rec.records[0].SecondBlocks)

		// Then: leaving afterwards does not record the match again
		require.NoError(t, s.Leave(ctx, "guest"))
		assert.Len(t, rec.records, 1)
	})
}

func TestSession_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("forfeit after one move is recorded exactly once", func(t *testing.T) {
		// Given: a match with one block on the grid
		m, sink, rec := setup(t)
		s := started(t, m)
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0)}))

		// When: the host disconnects, then the guest's disconnect follows
		require.NoError(t, s.Leave(ctx, "host"))
		err := s.Leave(ctx, "guest")

		// Then: one record names the host as loser and the session is gone
		assert.ErrorIs(t, err, ErrSessionClosed)
		require.Len(t, rec.records, 1)
		assert.Equal(t, "second", rec.records[0].Winner)
		assert.Equal(t, game.CauseDisconnect, rec.records[0].Cause)
		assert.Equal(t, 1, rec.records[0].FirstBlocks)
		assert.Equal(t, 0, rec.records[0].SecondBlocks)
		assert.Equal(t, "Ada", rec.records[0].FirstName)
		assert.Equal(t, "Bo", rec.records[0].SecondName)
		assert.Len(t, sink.ofType("guest", EventOpponentLeft), 1)
		assert.Equal(t, 0, m.Count())
		_, err = m.Get(s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("no record before the first move", func(t *testing.T) {
		m, sink, rec := setup(t)
		s := started(t, m)

		require.NoError(t, s.Leave(ctx, "guest"))

		assert.Empty(t, rec.records)
		assert.Len(t, sink.ofType("host", EventOpponentLeft), 1)
	})

	t.Run("host leaving an open room removes the listing", func(t *testing.T) {
		m, _, rec := setup(t)
		s := m.Create(CreateRequest{ConnID: "host", HostName: "Ada"})

		require.NoError(t, s.Leave(ctx, "host"))

		<-s.Done()
		assert.Equal(t, []string{s.ID}, rec.closed)
		assert.Empty(t, rec.records)
	})
}

func TestSession_Rematch(t *testing.T) {
	ctx := context.Background()

	t.Run("loser moves first", func(t *testing.T) {
		// Given: First lost on time
		m, sink, rec := setup(t)
		s := started(t, m)
		require.NoError(t, s.ExpireClock(ctx, "guest", game.First))
		require.Len(t, rec.records, 1)
		assert.Equal(t, "second", rec.records[0].Winner)

		// When: both seats vote
		require.NoError(t, s.Rematch(ctx, "guest"))
		pending := sink.ofType("host", EventRematchPending)
		require.Len(t, pending, 1)
		assert.Equal(t, game.Second, pending[0].Side)
		assert.Empty(t, sink.ofType("guest", EventRematchPending))
		require.NoError(t, s.Rematch(ctx, "host"))

		// Then: the new match opens with First to move
		starts := sink.ofType("guest", EventMatchStarted)
		require.Len(t, starts, 2)
		assert.Equal(t, game.First, starts[1].FirstMover)
		assert.ErrorIs(t, s.Move(ctx, MoveRequest{ConnID: "guest", Block: vertical(0, 0)}), game.ErrNotYourTurn)
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0)}))
		assert.True(t, rec.starts[1].Rematch)
	})

	t.Run("winner of the last match moves second", func(t *testing.T) {
		m, sink, _ := setup(t)
		s := started(t, m)
		require.NoError(t, s.ExpireClock(ctx, "host", game.First))
		require.NoError(t, s.Rematch(ctx, "host"))
		require.NoError(t, s.Rematch(ctx, "guest"))

		// When: First wins the rematch on time
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0)}))
		require.NoError(t, s.ExpireClock(ctx, "host", game.Second))
		require.NoError(t, s.Rematch(ctx, "host"))
		require.NoError(t, s.Rematch(ctx, "guest"))

		// Then: Second opens the third match
		starts := sink.ofType("host", EventMatchStarted)
		require.Len(t, starts, 3)
		assert.Equal(t, game.First, starts[1].FirstMover)
		assert.Equal(t, game.Second, starts[2].FirstMover)
	})

	t.Run("refused while a match is running", func(t *testing.T) {
		m, _, _ := setup(t)
		s := started(t, m)

		assert.ErrorIs(t, s.Rematch(ctx, "host"), ErrRematchUnavailable)
	})

	t.Run("a finished match disconnect adds no record", func(t *testing.T) {
		m, _, rec := setup(t)
		s := started(t, m)
		require.NoError(t, s.ExpireClock(ctx, "host", game.First))
		require.NoError(t, s.Rematch(ctx, "host"))

		require.NoError(t, s.Leave(ctx, "host"))

		assert.Len(t, rec.records, 1)
	})
}

func TestSession_Spectators(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	sink := newRecordingSink()
	m := NewManager(defaults, sink, zap.New(core))
	t.Cleanup(func() { m.CloseAll(ctx) })

	s := started(t, m)
	require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0)}))

	t.Run("attach receives a snapshot", func(t *testing.T) {
		_, side, err := m.Join(ctx, s.ID, JoinRequest{ConnID: "watcher", Name: "Cy"})
		require.NoError(t, err)
		assert.Equal(t, game.NoSide, side)

		snaps := sink.ofType("watcher", EventSnapshot)
		require.Len(t, snaps, 1)
		snap := snaps[0].Snapshot
		assert.Equal(t, StateActive, snap.State)
		assert.Equal(t, game.Second, snap.Match.Active)
		assert.Equal(t, [2]int{305, 300}, snap.Match.Clocks)
		assert.Len(t, snap.Match.Blocks, 1)
		assert.Equal(t, 1, snap.Spectators)
	})

	t.Run("writes are dropped and logged", func(t *testing.T) {
		err := s.Move(ctx, MoveRequest{ConnID: "watcher", Block: vertical(1, 0)})

		assert.ErrorIs(t, err, ErrSpectatorWrite)
		assert.Equal(t, 1, logs.FilterMessage("dropped spectator write").Len())
		snap, err := s.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, snap.Match.MoveCount)
	})

	t.Run("moves are relayed to spectators", func(t *testing.T) {
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "guest", Block: vertical(1, 0)}))

		assert.Len(t, sink.ofType("watcher", EventMoveApplied), 1)
	})

	t.Run("resync", func(t *testing.T) {
		require.NoError(t, s.Resync(ctx, "watcher"))
		assert.Len(t, sink.ofType("watcher", EventSnapshot), 2)

		assert.ErrorIs(t, s.Resync(ctx, "nobody"), ErrNotParticipant)
	})

	t.Run("a leaving spectator does not end the session", func(t *testing.T) {
		require.NoError(t, s.Leave(ctx, "watcher"))

		snap, err := s.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, snap.Spectators)
		assert.Equal(t, StateActive, snap.State)
	})
}

func TestSession_Pass(t *testing.T) {
	ctx := context.Background()

	t.Run("refused while a placement is available", func(t *testing.T) {
		m, sink, rec := setup(t)
		s := started(t, m)

		assert.ErrorIs(t, s.Pass(ctx, "host"), game.ErrPassNotAllowed)
		assert.Empty(t, sink.ofType("host", EventMatchEnded))
		assert.Empty(t, rec.records)
	})

	t.Run("spent sides draw and the rematch opens with First", func(t *testing.T) {
		// Given: a one-block budget and First winning the opening match on time,
		// so Second opens the next one
		m, sink, rec := setupWith(t, Defaults{Clock: defaults.Clock, Budget: 1})
		s := started(t, m)
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0)}))
		require.NoError(t, s.ExpireClock(ctx, "host", game.Second))
		require.NoError(t, s.Rematch(ctx, "host"))
		require.NoError(t, s.Rematch(ctx, "guest"))
		require.Equal(t, game.Second, sink.ofType("host", EventMatchStarted)[1].FirstMover)

		// When: both spend their block and Second, left with nothing, passes
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "guest", Block: vertical(0, 0)}))
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(1, 0)}))
		require.Len(t, sink.ofType("host", EventMatchEnded), 1)
		require.NoError(t, s.Pass(ctx, "guest"))

		// Then
		ended := sink.ofType("host", EventMatchEnded)
		require.Len(t, ended, 2)
		assert.True(t, ended[1].Draw)
		assert.Equal(t, game.NoSide, ended[1].Winner)
		assert.Equal(t, game.CauseExhausted, ended[1].Cause)
		assert.Len(t, sink.ofType("guest", EventMatchEnded), 2)

		require.Len(t, rec.records, 2)
		assert.Equal(t, "draw", rec.records[1].Winner)
		assert.Equal(t, game.CauseExhausted, rec.records[1].Cause)
		assert.Equal(t, game.Second, rec.records[1].Starter)
		assert.Equal(t, 1, rec.records[1].FirstBlocks)
		assert.Equal(t, 1, rec.records[1].SecondBlocks)

		// And: a draw hands the opening move back to First
		require.NoError(t, s.Rematch(ctx, "guest"))
		require.NoError(t, s.Rematch(ctx, "host"))
		starts := sink.ofType("guest", EventMatchStarted)
		require.Len(t, starts, 3)
		assert.Equal(t, game.First, starts[2].FirstMover)
		assert.ErrorIs(t, s.Move(ctx, MoveRequest{ConnID: "guest", Block: vertical(0, 0)}), game.ErrNotYourTurn)
	})
}

// jammingMoves fills columns 0..8 in turn order, First first. After the last
// block First has no legal placement and neither side holds five in a row.
func jammingMoves() []game.Block {
	blocks := []game.Block{
		vertical(0, 0), vertical(0, 2),
		horizontal(1, 0), horizontal(3, 0), horizontal(5, 0), horizontal(7, 0),
	}
	// each layer alternates owners up the columns, so whoever owns the even
	// column in a layer moves first in it
	for k := 0; k < 4; k++ {
		evenFirst := k%2 == 0
		for pair := 0; pair < 4; pair++ {
			odd, even := 2*pair+1, 2*pair+2
			if evenFirst {
				blocks = append(blocks, vertical(even, 1+2*k), vertical(odd, 1+2*k))
			} else {
				blocks = append(blocks, vertical(odd, 1+2*k), vertical(even, 1+2*k))
			}
		}
	}
	return append(blocks, vertical(0, 4), vertical(0, 6))
}

func TestSession_BlockedEnding(t *testing.T) {
	ctx := context.Background()

	// Given: budget to spare for both sides
	m, sink, rec := setupWith(t, Defaults{Clock: defaults.Clock, Budget: 25})
	s := started(t, m)
	moves := jammingMoves()
	require.Len(t, moves, 40)

	// When: the board is played shut with Second placing last
	for i, b := range moves {
		conn := "host"
		if i%2 == 1 {
			conn = "guest"
		}
		require.NoError(t, s.Move(ctx, MoveRequest{ConnID: conn, Block: b}), "move %d %+v", i+1, b)
		if i < len(moves)-1 {
			require.Empty(t, sink.ofType("host", EventMatchEnded), "ended early at move %d", i+1)
		}
	}

	// Then: First still has pieces but nowhere to put them
	ended := sink.ofType("guest", EventMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, game.Second, ended[0].Winner)
	assert.Equal(t, game.CauseBlocked, ended[0].Cause)
	assert.False(t, ended[0].Draw)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "second", rec.records[0].Winner)
	assert.Equal(t, game.CauseBlocked, rec.records[0].Cause)
	assert.Equal(t, 20, rec.records[0].FirstBlocks)
	assert.Equal(t, 20, rec.records[0].SecondBlocks)
	assert.ErrorIs(t, s.Pass(ctx, "host"), game.ErrMatchNotInProgress)
}

func TestManager_NameLength(t *testing.T) {
	ctx := context.Background()
	m, _, rec := setup(t)

	// Given: names well past the history column width, with multi-byte runes
	host := strings.Repeat("é", 200)
	guest := "  " + strings.Repeat("b", MaxNameLength) + "overflow"

	s := m.Create(CreateRequest{ConnID: "host", HostName: host})
	_, _, err := m.Join(ctx, s.ID, JoinRequest{ConnID: "guest", Name: guest})
	require.NoError(t, err)

	// When: the match ends and is recorded
	require.NoError(t, s.Move(ctx, MoveRequest{ConnID: "host", Block: vertical(0, 0)}))
	require.NoError(t, s.Leave(ctx, "guest"))

	// Then: both names arrive cut to the column width
	require.Len(t, rec.records, 1)
	assert.Equal(t, strings.Repeat("é", MaxNameLength), rec.records[0].FirstName)
	assert.Equal(t, strings.Repeat("b", MaxNameLength), rec.records[0].SecondName)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Host", cleanName("   ", "Host"))
	assert.Equal(t, "Ada", cleanName(" Ada ", "Host"))
	assert.Equal(t, strings.Repeat("x", 49), cleanName(strings.Repeat("x", 49)+" tail", "Host"))
}

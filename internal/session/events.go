package session

import (
	"time"

	"github.com/domino-drop/internal/game"
)

// Outbound event types
const (
	EventSessionCreated  = "session_created"
	EventMatchStarted    = "match_started"
	EventMoveApplied     = "move_applied"
	EventMatchEnded      = "match_ended"
	EventRematchPending  = "rematch_pending"
	EventOpponentLeft    = "opponent_left"
	EventValidationError = "validation_error"
	EventSnapshot        = "snapshot"
	EventError           = "error"
)

// Sink delivers events to connections. Delivery is fire-and-forget.
type Sink interface {
	Deliver(connID string, ev Event)
}

// Players holds the seat names
type Players struct {
	First  string `json:"first"`
	Second string `json:"second,omitempty"`
}

// Event is an outbound message addressed to one connection
type Event struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"sessionId,omitempty"`
	AccessCode string            `json:"accessCode,omitempty"`
	Side       game.Side         `json:"side,omitempty"`
	Players    *Players          `json:"players,omitempty"`
	Clock      *game.ClockConfig `json:"clock,omitempty"`
	FirstMover game.Side         `json:"firstMover,omitempty"`
	Block      *game.Block       `json:"block,omitempty"`
	NextMover  game.Side         `json:"nextMover,omitempty"`
	Clocks     *[2]int           `json:"clocks,omitempty"`
	Winner     game.Side         `json:"winner,omitempty"`
	Draw       bool              `json:"draw,omitempty"`
	Cause      game.Cause        `json:"cause,omitempty"`
	Line       []game.Coord      `json:"line,omitempty"`
	Scores     *[2]int           `json:"scores,omitempty"`
	Snapshot   *Snapshot         `json:"snapshot,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// Snapshot is the full state a participant needs to rebuild its view
type Snapshot struct {
	SessionID  string           `json:"sessionId"`
	State      State            `json:"state"`
	Private    bool             `json:"private"`
	Players    Players          `json:"players"`
	Clock      game.ClockConfig `json:"clock"`
	Match      *game.MatchState `json:"match,omitempty"`
	Scores     [2]int           `json:"scores"`
	Spectators int              `json:"spectators"`
}

// Record is the durable summary written once per completed match
type Record struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"sessionId"`
	FirstName    string     `json:"firstName"`
	SecondName   string     `json:"secondName"`
	Winner       string     `json:"winner"` // first, second or draw
	Cause        game.Cause `json:"cause"`
	Starter      game.Side  `json:"starter"`
	DurationSecs int        `json:"durationSecs"`
	FirstBlocks  int        `json:"firstBlocks"`
	SecondBlocks int        `json:"secondBlocks"`
	EndedAt      time.Time  `json:"endedAt"`
}

// MatchStart describes a match cycle beginning
type MatchStart struct {
	SessionID string
	MatchID   string
	Players   Players
	Starter   game.Side
	Clock     game.ClockConfig
	Rematch   bool
}

// MoveInfo describes an accepted placement
type MoveInfo struct {
	SessionID string
	MatchID   string
	Player    string
	Block     game.Block
	MoveNum   int
	Clocks    [2]int
}

// RoomInfo is the public listing of a session waiting for an opponent
type RoomInfo struct {
	ID        string           `json:"roomId"`
	HostName  string           `json:"hostName"`
	Private   bool             `json:"isPrivate"`
	Clock     game.ClockConfig `json:"timeSettings"`
	CreatedAt time.Time        `json:"createdAt"`
}

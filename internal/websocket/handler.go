package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/domino-drop/internal/game"
	"github.com/domino-drop/internal/session"
)

// Inbound message types
const (
	TypeCreate       = "create"
	TypeJoin         = "join"
	TypeMove         = "move"
	TypePass         = "pass"
	TypeClockExpired = "clock_expired"
	TypeRematch      = "rematch"
	TypeLeave        = "leave"
	TypeResync       = "resync"
)

const commandTimeout = 5 * time.Second

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"sessionId,omitempty"`
	Name       string            `json:"name,omitempty"`
	AccessCode string            `json:"accessCode,omitempty"`
	Private    bool              `json:"isPrivate,omitempty"`
	Spectate   bool              `json:"spectate,omitempty"`
	Clock      *game.ClockConfig `json:"timeSettings,omitempty"`
	Block      *game.Block       `json:"block,omitempty"`
	Clocks     *[2]int           `json:"clocks,omitempty"`
	Side       game.Side         `json:"side,omitempty"`
}

// Handler processes WebSocket messages
type Handler struct {
	hub      *Hub
	sessions *session.Manager
	logger   *zap.Logger
}

// NewHandler creates a new message handler
func NewHandler(hub *Hub, sessions *session.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		sessions: sessions,
		logger:   logger.With(zap.String("component", "handler")),
	}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.logger.Debug("invalid message", zap.Error(err))
		client.sendMessage(session.Event{Type: session.EventError, Message: "Invalid message format"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case TypeCreate:
		err = h.handleCreate(client, msg)
	case TypeJoin:
		err = h.handleJoin(ctx, client, msg)
	case TypeMove:
		err = h.handleMove(ctx, client, msg)
	case TypePass:
		err = h.withSession(client, func(s *session.Session) error { return s.Pass(ctx, client.id) })
	case TypeClockExpired:
		err = h.withSession(client, func(s *session.Session) error { return s.ExpireClock(ctx, client.id, msg.Side) })
	case TypeRematch:
		err = h.withSession(client, func(s *session.Session) error { return s.Rematch(ctx, client.id) })
	case TypeResync:
		err = h.withSession(client, func(s *session.Session) error { return s.Resync(ctx, client.id) })
	case TypeLeave:
		err = h.leave(ctx, client)
	default:
		client.sendMessage(session.Event{Type: session.EventError, Message: "Unknown message type"})
		return
	}
	h.reply(client, msg.Type, err)
}

// Disconnect releases whatever session the client was part of
func (h *Handler) Disconnect(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.leave(ctx, client); err != nil && !isGone(err) {
		client.logger.Warn("leave on disconnect failed", zap.Error(err))
	}
}

func (h *Handler) handleCreate(client *Client, msg IncomingMessage) error {
	if h.current(client) != nil {
		return errAlreadySeated
	}
	name := msg.Name
	if name == "" {
		name = client.name
	}
	s := h.sessions.Create(session.CreateRequest{
		ConnID:   client.id,
		HostName: name,
		Private:  msg.Private,
		Clock:    msg.Clock,
	})
	client.sessionID = s.ID
	return nil
}

func (h *Handler) handleJoin(ctx context.Context, client *Client, msg IncomingMessage) error {
	if h.current(client) != nil {
		return errAlreadySeated
	}
	name := msg.Name
	if name == "" {
		name = client.name
	}
	s, _, err := h.sessions.Join(ctx, msg.SessionID, session.JoinRequest{
		ConnID:      client.id,
		Name:        name,
		AccessCode:  msg.AccessCode,
		AsSpectator: msg.Spectate,
	})
	if err != nil {
		return err
	}
	client.sessionID = s.ID
	return nil
}

func (h *Handler) handleMove(ctx context.Context, client *Client, msg IncomingMessage) error {
	if msg.Block == nil {
		return errMissingBlock
	}
	return h.withSession(client, func(s *session.Session) error {
		return s.Move(ctx, session.MoveRequest{ConnID: client.id, Block: *msg.Block, Clocks: msg.Clocks})
	})
}

func (h *Handler) leave(ctx context.Context, client *Client) error {
	s := h.current(client)
	if s == nil {
		return nil
	}
	client.sessionID = ""
	return s.Leave(ctx, client.id)
}

func (h *Handler) withSession(client *Client, fn func(s *session.Session) error) error {
	s := h.current(client)
	if s == nil {
		return errNotInSession
	}
	return fn(s)
}

// current returns the live session of client, forgetting one that has closed
func (h *Handler) current(client *Client) *session.Session {
	if client.sessionID == "" {
		return nil
	}
	s, err := h.sessions.Get(client.sessionID)
	if err != nil {
		client.sessionID = ""
		return nil
	}
	return s
}

// reply reports a failed command to the sender only
func (h *Handler) reply(client *Client, cmd string, err error) {
	if err == nil || errors.Is(err, session.ErrSpectatorWrite) {
		return
	}
	if isGone(err) {
		client.sessionID = ""
	}

	var gameErr *game.GameError
	if errors.As(err, &gameErr) {
		client.sendMessage(session.Event{Type: session.EventValidationError, Message: gameErr.Error()})
		return
	}
	var overlap *game.OverlapError
	if errors.As(err, &overlap) {
		// the session already sent a snapshot to resync from
		client.sendMessage(session.Event{Type: session.EventValidationError, Message: "board out of sync"})
		return
	}

	client.logger.Debug("command failed", zap.String("command", cmd), zap.Error(err))
	client.sendMessage(session.Event{Type: session.EventError, Message: errorMessage(err)})
}

func isGone(err error) bool {
	return errors.Is(err, session.ErrSessionClosed) || errors.Is(err, session.ErrSessionNotFound)
}

var (
	errAlreadySeated = errors.New("leave your current session first")
	errNotInSession  = errors.New("not in a session")
	errMissingBlock  = errors.New("move has no block")
)

func errorMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "server busy, try again"
	default:
		return err.Error()
	}
}

package session

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/domino-drop/internal/game"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 4

	// MaxNameLength matches the width of the name columns in match history
	MaxNameLength = 50
)

// Defaults used when a create request leaves fields empty
type Defaults struct {
	Clock  game.ClockConfig
	Budget int
}

// CreateRequest opens a new session with the caller as host
type CreateRequest struct {
	ConnID   string
	HostName string
	Private  bool
	Clock    *game.ClockConfig // nil uses the defaults
}

// Manager owns every live session
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	rng      *rand.Rand
	rngMu    sync.Mutex

	defaults Defaults
	budget   int
	sink     Sink
	logger   *zap.Logger

	onMatchStart func(MatchStart)
	onMove       func(MoveInfo)
	onMatchEnd   func(Record)
	onRoomOpen   func(RoomInfo)
	onRoomClose  func(id string)
}

// NewManager creates a session manager delivering events through sink
func NewManager(defaults Defaults, sink Sink, logger *zap.Logger) *Manager {
	if defaults.Budget <= 0 {
		defaults.Budget = 20
	}
	return &Manager{
		sessions: make(map[string]*Session),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		defaults: defaults,
		budget:   defaults.Budget,
		sink:     sink,
		logger:   logger.With(zap.String("component", "session")),
	}
}

// SetOnMatchStart sets the callback for when a match cycle starts
func (m *Manager) SetOnMatchStart(callback func(MatchStart)) {
	m.onMatchStart = callback
}

// SetOnMove sets the callback for accepted placements
func (m *Manager) SetOnMove(callback func(MoveInfo)) {
	m.onMove = callback
}

// SetOnMatchEnd sets the callback receiving the durable record of a match
func (m *Manager) SetOnMatchEnd(callback func(Record)) {
	m.onMatchEnd = callback
}

// SetOnRoomChange sets the callbacks for rooms opening and leaving the listing
func (m *Manager) SetOnRoomChange(open func(RoomInfo), closed func(id string)) {
	m.onRoomOpen = open
	m.onRoomClose = closed
}

// Create opens a session hosted by req.ConnID
func (m *Manager) Create(req CreateRequest) *Session {
	req.HostName = cleanName(req.HostName, "Host")
	clock := m.clock(req.Clock)

	m.mu.Lock()
	id := m.newCode()
	for m.sessions[id] != nil {
		id = m.newCode()
	}
	var code string
	if req.Private {
		code = m.newCode()
	}
	s := newSession(m, id, code, req, clock)
	m.sessions[id] = s
	m.mu.Unlock()

	s.logger.Info("session created", zap.String("host", req.HostName), zap.Bool("private", req.Private))
	if m.sink != nil {
		m.sink.Deliver(req.ConnID, Event{
			Type:       EventSessionCreated,
			SessionID:  id,
			AccessCode: code,
			Side:       game.First,
		})
	}
	if m.onRoomOpen != nil {
		m.onRoomOpen(RoomInfo{
			ID:        id,
			HostName:  req.HostName,
			Private:   req.Private,
			Clock:     clock,
			CreatedAt: s.CreatedAt.UTC(),
		})
	}
	return s
}

// Get returns a live session by id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[strings.ToUpper(id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Join looks up a session and joins it
func (m *Manager) Join(ctx context.Context, id string, req JoinRequest) (*Session, game.Side, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, game.NoSide, err
	}
	req.Name = cleanName(req.Name, "Guest")
	side, err := s.Join(ctx, req)
	if err != nil {
		return nil, game.NoSide, err
	}
	return s, side, nil
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll shuts every session down without recording unfinished matches
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		if err := s.shutdown(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
			m.logger.Warn("failed to close session", zap.String("session", s.ID), zap.Error(err))
		}
	}
}

// cleanName trims name and cuts it to MaxNameLength runes
func cleanName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	if name == "" {
		return fallback
	}
	return name
}

func (m *Manager) clock(req *game.ClockConfig) game.ClockConfig {
	if req == nil {
		return m.defaults.Clock
	}
	c := *req
	if c.Initial <= 0 {
		c.Initial = m.defaults.Clock.Initial
	}
	if c.Increment < 0 {
		c.Increment = 0
	}
	return c
}

func (m *Manager) newCode() string {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()

	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[m.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// The methods below run on session goroutines

func (m *Manager) remove(id string, wasOpen bool) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if wasOpen {
		m.roomFilled(id)
	}
}

func (m *Manager) roomFilled(id string) {
	if m.onRoomClose != nil {
		m.onRoomClose(id)
	}
}

func (m *Manager) matchStarted(ms MatchStart) {
	if m.onMatchStart != nil {
		m.onMatchStart(ms)
	}
}

func (m *Manager) moveApplied(mi MoveInfo) {
	if m.onMove != nil {
		m.onMove(mi)
	}
}

func (m *Manager) matchEnded(rec Record) {
	if m.onMatchEnd != nil {
		m.onMatchEnd(rec)
	}
}

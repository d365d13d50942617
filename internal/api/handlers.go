package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/domino-drop/internal/kafka"
	"github.com/domino-drop/internal/lobby"
	"github.com/domino-drop/internal/storage"
)

// Store is the match history the handlers read from
type Store interface {
	GetLeaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
	GetPlayerStats(ctx context.Context, name string) (*storage.PlayerStats, error)
	GetMatches(ctx context.Context, player string, limit int) ([]storage.MatchSummary, error)
	GetAnalytics(ctx context.Context) (*storage.MatchAnalytics, error)
}

// Counter reports live sessions
type Counter interface {
	Count() int
}

// Analytics is the live view kept by the event consumer
type Analytics interface {
	GetMetrics() *kafka.AnalyticsMetrics
	GetAverageMatchDuration() float64
	GetMostFrequentWinner() string
	GetMatchesPerHour(now time.Time) map[string]int
}

// Handlers holds API handler dependencies
type Handlers struct {
	store        Store
	rooms        lobby.Directory
	sessions     Counter
	analytics    Analytics
	kafkaEnabled bool
	logger       *zap.Logger
}

// Options wires the optional collaborators. A nil Store answers 503 on
// history routes and a nil Analytics omits the live section.
type Options struct {
	Store        Store
	Rooms        lobby.Directory
	Sessions     Counter
	Analytics    Analytics
	KafkaEnabled bool
}

// NewHandlers creates a new API handlers instance
func NewHandlers(opts Options, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:        opts.Store,
		rooms:        opts.Rooms,
		sessions:     opts.Sessions,
		analytics:    opts.Analytics,
		kafkaEnabled: opts.KafkaEnabled,
		logger:       logger.With(zap.String("component", "api")),
	}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/stats/{name}", h.GetPlayerStats)
	r.Get("/matches", h.GetMatches)
	r.Get("/rooms", h.GetRooms)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)
}

// GetLeaderboard returns the top players
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	entries, err := h.store.GetLeaderboard(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		h.fail(w, "Failed to get leaderboard", err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// GetPlayerStats returns statistics for a specific player
func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "Player name required")
		return
	}
	if !h.requireStore(w) {
		return
	}

	stats, err := h.store.GetPlayerStats(r.Context(), name)
	if err != nil {
		h.fail(w, "Failed to get player stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetMatches returns recent match records
func (h *Handlers) GetMatches(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	matches, err := h.store.GetMatches(r.Context(), r.URL.Query().Get("player"), queryInt(r, "limit", 20))
	if err != nil {
		h.fail(w, "Failed to get matches", err)
		return
	}
	respondJSON(w, http.StatusOK, matches)
}

// GetRooms lists sessions waiting for an opponent
func (h *Handlers) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		h.fail(w, "Failed to list rooms", err)
		return
	}
	respondJSON(w, http.StatusOK, rooms)
}

// GetAnalytics returns stored aggregates and, when consuming, the live metrics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	stored, err := h.store.GetAnalytics(r.Context())
	if err != nil {
		h.fail(w, "Failed to get analytics", err)
		return
	}

	response := map[string]any{
		"database": stored,
		"realtime": map[string]any{
			"activeSessions": h.sessions.Count(),
			"kafkaEnabled":   h.kafkaEnabled,
		},
	}
	if h.analytics != nil {
		response["kafka"] = map[string]any{
			"avgMatchDuration":   h.analytics.GetAverageMatchDuration(),
			"mostFrequentWinner": h.analytics.GetMostFrequentWinner(),
			"matchesPerHour":     h.analytics.GetMatchesPerHour(time.Now()),
			"metrics":            h.analytics.GetMetrics(),
		}
	}
	respondJSON(w, http.StatusOK, response)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	waiting := 0
	if rooms, err := h.rooms.List(r.Context()); err == nil {
		waiting = len(rooms)
	} else {
		h.logger.Warn("room listing failed", zap.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeSessions": h.sessions.Count(),
		"waitingRooms":   waiting,
		"historyEnabled": h.store != nil,
		"kafkaEnabled":   h.kafkaEnabled,
	})
}

func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, storage.ErrUnavailable.Error())
		return false
	}
	return true
}

func (h *Handlers) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	respondError(w, http.StatusInternalServerError, msg)
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

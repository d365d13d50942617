package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/domino-drop/internal/session"
)

// ErrUnavailable is returned by a store that never connected
var ErrUnavailable = errors.New("match history is unavailable")

// Config holds the database connection settings
type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// PostgresStore handles database operations
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects, pings and prepares the schema
func NewPostgresStore(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		config.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool, logger: logger.With(zap.String("component", "storage"))}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	store.logger.Info("connected to PostgreSQL")
	return store, nil
}

// initSchema creates the necessary tables
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS matches (
			id UUID PRIMARY KEY,
			session_id VARCHAR(8) NOT NULL,
			first_name VARCHAR(50) NOT NULL,
			second_name VARCHAR(50) NOT NULL,
			winner VARCHAR(6) NOT NULL CHECK (winner IN ('first', 'second', 'draw')),
			cause VARCHAR(16) NOT NULL,
			starter VARCHAR(6) NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			first_blocks INTEGER NOT NULL DEFAULT 0,
			second_blocks INTEGER NOT NULL DEFAULT 0,
			ended_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_matches_first_name ON matches(first_name);
		CREATE INDEX IF NOT EXISTS idx_matches_second_name ON matches(second_name);
		CREATE INDEX IF NOT EXISTS idx_matches_ended_at ON matches(ended_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// SaveMatch stores a completed match. Saving the same record twice is a no-op.
func (s *PostgresStore) SaveMatch(ctx context.Context, rec session.Record) error {
	query := `
		INSERT INTO matches (id, session_id, first_name, second_name, winner, cause, starter,
		                     duration_seconds, first_blocks, second_blocks, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.FirstName,
		rec.SecondName,
		rec.Winner,
		string(rec.Cause),
		rec.Starter.String(),
		rec.DurationSecs,
		rec.FirstBlocks,
		rec.SecondBlocks,
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("save match %s: %w", rec.ID, err)
	}
	return nil
}

// participations flattens matches into one row per player with a result
const participations = `
	SELECT first_name AS name,
	       CASE winner WHEN 'first' THEN 'win' WHEN 'draw' THEN 'draw' ELSE 'loss' END AS result,
	       cause, duration_seconds, first_blocks AS blocks
	FROM matches
	UNION ALL
	SELECT second_name AS name,
	       CASE winner WHEN 'second' THEN 'win' WHEN 'draw' THEN 'draw' ELSE 'loss' END AS result,
	       cause, duration_seconds, second_blocks AS blocks
	FROM matches
`

// GetLeaderboard returns the top players by wins
func (s *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT name,
		       COUNT(*) FILTER (WHERE result = 'win') AS wins,
		       COUNT(*) FILTER (WHERE result = 'loss') AS losses,
		       COUNT(*) FILTER (WHERE result = 'draw') AS draws,
		       COUNT(*) AS games
		FROM (` + participations + `) p
		GROUP BY name
		ORDER BY wins DESC, games ASC, name ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.Name, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games); err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		entry.Rank = len(entries) + 1
		entry.WinRate = winRate(entry.Wins, entry.Games)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetPlayerStats returns detailed statistics for a player
func (s *PostgresStore) GetPlayerStats(ctx context.Context, name string) (*PlayerStats, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE result = 'win'),
		       COUNT(*) FILTER (WHERE result = 'loss'),
		       COUNT(*) FILTER (WHERE result = 'draw'),
		       COUNT(*),
		       COUNT(*) FILTER (WHERE result = 'win' AND cause = 'five'),
		       COUNT(*) FILTER (WHERE result = 'win' AND cause = 'disconnect'),
		       COALESCE(AVG(duration_seconds), 0)::float8,
		       COALESCE(SUM(blocks), 0)
		FROM (` + participations + `) p
		WHERE name = $1
	`

	stats := PlayerStats{Name: name}
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&stats.Wins,
		&stats.Losses,
		&stats.Draws,
		&stats.TotalGames,
		&stats.FiveWins,
		&stats.ForfeitWins,
		&stats.AvgMatchLength,
		&stats.BlocksPlaced,
	)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	stats.WinRate = winRate(stats.Wins, stats.TotalGames)
	return &stats, nil
}

// GetMatches returns recent matches, optionally only those involving player
func (s *PostgresStore) GetMatches(ctx context.Context, player string, limit int) ([]MatchSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id::text, session_id, first_name, second_name, winner, cause, starter,
		       duration_seconds, first_blocks, second_blocks, ended_at
		FROM matches
		WHERE $1 = '' OR first_name = $1 OR second_name = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, player, limit)
	if err != nil {
		return nil, fmt.Errorf("matches: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchSummary, error) {
		var m MatchSummary
		err := row.Scan(&m.ID, &m.SessionID, &m.FirstName, &m.SecondName, &m.Winner, &m.Cause,
			&m.Starter, &m.DurationSeconds, &m.FirstBlocks, &m.SecondBlocks, &m.EndedAt)
		switch m.Winner {
		case "first":
			m.WinnerName = m.FirstName
		case "second":
			m.WinnerName = m.SecondName
		}
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("matches: %w", err)
	}
	return matches, nil
}

// GetAnalytics returns aggregated match analytics
func (s *PostgresStore) GetAnalytics(ctx context.Context) (*MatchAnalytics, error) {
	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	thisHour := now.Truncate(time.Hour)

	query := `
		SELECT COUNT(*),
		       (SELECT COUNT(DISTINCT name) FROM (` + participations + `) p),
		       COALESCE(AVG(duration_seconds), 0)::float8,
		       COUNT(*) FILTER (WHERE winner = 'draw'),
		       COUNT(*) FILTER (WHERE ended_at >= $1),
		       COUNT(*) FILTER (WHERE ended_at >= $2),
		       (SELECT name FROM (` + participations + `) p WHERE result = 'win'
		        GROUP BY name ORDER BY COUNT(*) DESC, name LIMIT 1)
		FROM matches
	`

	var analytics MatchAnalytics
	var mostFrequentWinner *string
	err := s.pool.QueryRow(ctx, query, today, thisHour).Scan(
		&analytics.TotalMatches,
		&analytics.TotalPlayers,
		&analytics.AvgMatchDuration,
		&analytics.Draws,
		&analytics.MatchesToday,
		&analytics.MatchesThisHour,
		&mostFrequentWinner,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	if mostFrequentWinner != nil {
		analytics.MostFrequentWinner = *mostFrequentWinner
	}

	rows, err := s.pool.Query(ctx, `SELECT cause, COUNT(*) FROM matches GROUP BY cause`)
	if err != nil {
		return nil, fmt.Errorf("analytics causes: %w", err)
	}
	defer rows.Close()

	analytics.Causes = make(map[string]int)
	for rows.Next() {
		var cause string
		var n int
		if err := rows.Scan(&cause, &n); err != nil {
			return nil, fmt.Errorf("analytics causes: %w", err)
		}
		analytics.Causes[cause] = n
	}
	return &analytics, rows.Err()
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

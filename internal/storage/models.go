package storage

import (
	"time"
)

// MatchSummary represents a finished match stored in the database
type MatchSummary struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	FirstName       string    `json:"firstName"`
	SecondName      string    `json:"secondName"`
	Winner          string    `json:"winner"` // first, second or draw
	WinnerName      string    `json:"winnerName,omitempty"`
	Cause           string    `json:"cause"`
	Starter         string    `json:"starter"`
	DurationSeconds int       `json:"durationSeconds"`
	FirstBlocks     int       `json:"firstBlocks"`
	SecondBlocks    int       `json:"secondBlocks"`
	EndedAt         time.Time `json:"endedAt"`
}

// LeaderboardEntry represents a player's ranking
type LeaderboardEntry struct {
	Rank    int     `json:"rank"`
	Name    string  `json:"name"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Draws   int     `json:"draws"`
	Games   int     `json:"games"`
	WinRate float64 `json:"winRate"`
}

// PlayerStats represents detailed player statistics
type PlayerStats struct {
	Name           string  `json:"name"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	Draws          int     `json:"draws"`
	TotalGames     int     `json:"totalGames"`
	WinRate        float64 `json:"winRate"`
	FiveWins       int     `json:"fiveWins"`
	ForfeitWins    int     `json:"forfeitWins"`
	AvgMatchLength float64 `json:"avgMatchLength"`
	BlocksPlaced   int     `json:"blocksPlaced"`
}

// MatchAnalytics represents aggregated match analytics
type MatchAnalytics struct {
	TotalMatches       int            `json:"totalMatches"`
	TotalPlayers       int            `json:"totalPlayers"`
	AvgMatchDuration   float64        `json:"avgMatchDuration"`
	Draws              int            `json:"draws"`
	MatchesToday       int            `json:"matchesToday"`
	MatchesThisHour    int            `json:"matchesThisHour"`
	MostFrequentWinner string         `json:"mostFrequentWinner"`
	Causes             map[string]int `json:"causes"`
}

func winRate(wins, games int) float64 {
	if games == 0 {
		return 0
	}
	return float64(wins) / float64(games) * 100
}

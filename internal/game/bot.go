package game

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Difficulty selects the bot's search depth
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty validates a difficulty name
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Depth returns the plies searched below each candidate move
func (d Difficulty) Depth() int {
	switch d {
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	}
	return 0
}

// Bot represents the AI player. It only reads grids and has no network
// awareness; it runs on the side of whoever asks it for a move.
type Bot struct {
	player     Side
	opponent   Side
	difficulty Difficulty
	rng        *rand.Rand
}

// NewBot creates a new bot instance
func NewBot(player Side, difficulty Difficulty) *Bot {
	return NewBotWithRand(player, difficulty, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBotWithRand creates a bot with a caller-supplied random source
func NewBotWithRand(player Side, difficulty Difficulty, rng *rand.Rand) *Bot {
	return &Bot{
		player:     player,
		opponent:   player.Opponent(),
		difficulty: difficulty,
		rng:        rng,
	}
}

// Side returns the side the bot plays
func (bot *Bot) Side() Side {
	return bot.player
}

// GetBestMove returns the bot's move. ok is false when no legal move exists.
// Ties keep the first move in enumeration order.
func (bot *Bot) GetBestMove(g *Grid) (Block, bool) {
	moves := LegalMoves(g, bot.player)
	if len(moves) == 0 {
		return Block{}, false
	}

	if bot.difficulty == DifficultyEasy {
		return moves[bot.rng.Intn(len(moves))], true
	}

	depth := bot.difficulty.Depth()
	bestScore := math.MinInt32
	best := moves[0]

	for _, move := range moves {
		next, err := g.Apply(move)
		if err != nil {
			continue
		}
		score := bot.minimax(next, depth, math.MinInt32, math.MaxInt32, false)
		if score > bestScore {
			bestScore = score
			best = move
		}
	}

	return best, true
}

// minimax implements the minimax algorithm with alpha-beta pruning.
// A win by the side that just moved is terminal and scored so that
// earlier wins (more remaining depth) weigh more.
func (bot *Bot) minimax(g *Grid, depth, alpha, beta int, isMaximizing bool) int {
	if isMaximizing {
		if CheckWin(g, bot.opponent) != nil {
			return -(ScoreWin + depth)
		}
	} else if CheckWin(g, bot.player) != nil {
		return ScoreWin + depth
	}

	if depth == 0 {
		return Evaluate(g, bot.player)
	}

	toMove := bot.opponent
	if isMaximizing {
		toMove = bot.player
	}
	moves := LegalMoves(g, toMove)
	if len(moves) == 0 {
		return 0
	}

	if isMaximizing {
		maxEval := math.MinInt32
		for _, move := range moves {
			next, err := g.Apply(move)
			if err != nil {
				continue
			}
			eval := bot.minimax(next, depth-1, alpha, beta, false)
			maxEval = max(maxEval, eval)
			alpha = max(alpha, eval)
			if beta <= alpha {
				break
			}
		}
		return maxEval
	}

	minEval := math.MaxInt32
	for _, move := range moves {
		next, err := g.Apply(move)
		if err != nil {
			continue
		}
		eval := bot.minimax(next, depth-1, alpha, beta, true)
		minEval = min(minEval, eval)
		beta = min(beta, eval)
		if beta <= alpha {
			break
		}
	}
	return minEval
}

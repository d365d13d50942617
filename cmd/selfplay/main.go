package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/domino-drop/internal/game"
)

var (
	games  = flag.Int("games", 10, "number of matches to play")
	first  = flag.String("first", "medium", "difficulty of the first bot (easy, medium, hard)")
	second = flag.String("second", "easy", "difficulty of the second bot (easy, medium, hard)")
	budget = flag.Int("budget", 20, "blocks per player")
	seed   = flag.Int64("seed", 0, "random seed, 0 for time based")
)

// tally counts results by side index, with draws last
type tally [3]int

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	d1, err := game.ParseDifficulty(*first)
	if err != nil {
		logger.Fatal("bad -first", zap.Error(err))
	}
	d2, err := game.ParseDifficulty(*second)
	if err != nil {
		logger.Fatal("bad -second", zap.Error(err))
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	var results tally
	for i := 0; i < *games; i++ {
		// alternate who opens so neither difficulty keeps the first move
		starter := game.First
		if i%2 == 1 {
			starter = game.Second
		}
		bots := [2]*game.Bot{
			game.NewBotWithRand(game.First, d1, rng),
			game.NewBotWithRand(game.Second, d2, rng),
		}

		m, err := play(bots, starter, *budget)
		if err != nil {
			logger.Fatal("match aborted", zap.Int("game", i+1), zap.Error(err))
		}

		o := m.Outcome
		if o.Draw() {
			results[2]++
		} else {
			results[o.Winner.Index()]++
		}
		logger.Info("match finished",
			zap.Int("game", i+1),
			zap.Stringer("starter", starter),
			zap.Stringer("winner", o.Winner),
			zap.String("cause", string(o.Cause)),
			zap.Int("blocks", len(m.Blocks)))
		logger.Debug("final board", zap.Strings("rows", render(m.Grid())))
	}

	logger.Info("selfplay complete",
		zap.Int64("seed", *seed),
		zap.String("first", string(d1)),
		zap.String("second", string(d2)),
		zap.Int("first_wins", results[0]),
		zap.Int("second_wins", results[1]),
		zap.Int("draws", results[2]))
}

// play runs one untimed match to completion. A bot with nothing to place
// passes, which ends the match the same way a client pass does.
func play(bots [2]*game.Bot, starter game.Side, budget int) (*game.Match, error) {
	m := game.NewMatch(starter, game.ClockConfig{}, budget)
	for m.Status == game.StatusPlaying {
		side := m.Active
		if !game.CanPlace(m.Grid(), side, m.Placed, m.Budget) {
			if _, err := m.Pass(side); err != nil {
				return m, err
			}
			continue
		}

		move, ok := bots[side.Index()].GetBestMove(m.Grid())
		if !ok {
			return m, fmt.Errorf("%s has a legal move but the bot found none", side)
		}
		if _, err := m.Place(side, move, nil); err != nil {
			return m, fmt.Errorf("%s played %+v: %w", side, move, err)
		}
	}
	return m, nil
}

// render draws the grid top row first: x for First, o for Second
func render(g *game.Grid) []string {
	cols := g.Matrix()
	if cols == nil {
		return nil
	}
	rows := make([]string, game.Rows)
	for y := game.Rows - 1; y >= 0; y-- {
		var b strings.Builder
		for _, col := range cols {
			switch col[y] {
			case game.First:
				b.WriteByte('x')
			case game.Second:
				b.WriteByte('o')
			default:
				b.WriteByte('.')
			}
		}
		rows[game.Rows-1-y] = b.String()
	}
	return rows
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const hourKeyLayout = "2006-01-02-15"

// AnalyticsMetrics holds aggregated analytics data
type AnalyticsMetrics struct {
	TotalMatches   int64                     `json:"totalMatches"`
	FinishedMatch  int64                     `json:"finishedMatches"`
	TotalMoves     int64                     `json:"totalMoves"`
	TotalDuration  int64                     `json:"totalDuration"`
	Draws          int64                     `json:"draws"`
	WinCounts      map[string]int            `json:"winCounts"`
	Causes         map[string]int            `json:"causes"`
	MatchesPerHour map[string]int            `json:"matchesPerHour"`
	PlayerStats    map[string]*PlayerMetrics `json:"playerStats"`
}

// PlayerMetrics holds per-player analytics
type PlayerMetrics struct {
	Wins       int   `json:"wins"`
	Losses     int   `json:"losses"`
	Draws      int   `json:"draws"`
	TotalGames int   `json:"totalGames"`
	TotalMoves int64 `json:"totalMoves"`
}

// consumedEvent defers decoding of the payload until the type is known
type consumedEvent struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Consumer handles Kafka event consumption for analytics
type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	metrics  *AnalyticsMetrics
	mu       sync.RWMutex
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	done     chan struct{}
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg Config, group string, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, group, config)
	if err != nil {
		return nil, err
	}

	c := newConsumer(cfg.Topic, logger)
	c.consumer = consumer
	return c, nil
}

func newConsumer(topic string, logger *zap.Logger) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		topic:   topic,
		metrics: newMetrics(),
		logger:  logger.With(zap.String("component", "kafka-consumer")),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func newMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		WinCounts:      make(map[string]int),
		Causes:         make(map[string]int),
		MatchesPerHour: make(map[string]int),
		PlayerStats:    make(map[string]*PlayerMetrics),
	}
}

// Start begins consuming events
func (c *Consumer) Start() {
	c.started = true
	go func() {
		defer close(c.done)
		for {
			if err := c.consumer.Consume(c.ctx, []string{c.topic}, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Warn("consume failed", zap.Error(err))
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	c.logger.Info("kafka consumer started", zap.String("topic", c.topic))
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg)
		sess.MarkMessage(msg, "")
	}
	return nil
}

// processMessage handles a single event message
func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) {
	var event consumedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Warn("undecodable event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch event.Type {
	case EventMatchStarted:
		err = c.handleMatchStart(event)
	case EventMoveApplied:
		err = c.handleMove(event)
	case EventMatchEnded:
		err = c.handleMatchEnd(event)
	}
	if err != nil {
		c.logger.Warn("bad event payload", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func (c *Consumer) player(name string) *PlayerMetrics {
	p := c.metrics.PlayerStats[name]
	if p == nil {
		p = &PlayerMetrics{}
		c.metrics.PlayerStats[name] = p
	}
	return p
}

func (c *Consumer) handleMatchStart(event consumedEvent) error {
	var data MatchStartData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return err
	}

	c.metrics.TotalMatches++
	c.metrics.MatchesPerHour[event.Timestamp.UTC().Format(hourKeyLayout)]++
	c.player(data.First).TotalGames++
	c.player(data.Second).TotalGames++
	return nil
}

func (c *Consumer) handleMove(event consumedEvent) error {
	var data MoveData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return err
	}

	c.metrics.TotalMoves++
	c.player(data.Player).TotalMoves++
	return nil
}

func (c *Consumer) handleMatchEnd(event consumedEvent) error {
	var data MatchEndData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return err
	}

	c.metrics.FinishedMatch++
	c.metrics.TotalDuration += int64(data.DurationSeconds)
	c.metrics.Causes[data.Cause]++

	switch data.Winner {
	case "draw":
		c.metrics.Draws++
		c.player(data.First).Draws++
		c.player(data.Second).Draws++
	case "first":
		c.metrics.WinCounts[data.First]++
		c.player(data.First).Wins++
		c.player(data.Second).Losses++
	case "second":
		c.metrics.WinCounts[data.Second]++
		c.player(data.Second).Wins++
		c.player(data.First).Losses++
	}
	return nil
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := &AnalyticsMetrics{
		TotalMatches:   c.metrics.TotalMatches,
		FinishedMatch:  c.metrics.FinishedMatch,
		TotalMoves:     c.metrics.TotalMoves,
		TotalDuration:  c.metrics.TotalDuration,
		Draws:          c.metrics.Draws,
		WinCounts:      make(map[string]int, len(c.metrics.WinCounts)),
		Causes:         make(map[string]int, len(c.metrics.Causes)),
		MatchesPerHour: make(map[string]int, len(c.metrics.MatchesPerHour)),
		PlayerStats:    make(map[string]*PlayerMetrics, len(c.metrics.PlayerStats)),
	}
	for k, v := range c.metrics.WinCounts {
		out.WinCounts[k] = v
	}
	for k, v := range c.metrics.Causes {
		out.Causes[k] = v
	}
	for k, v := range c.metrics.MatchesPerHour {
		out.MatchesPerHour[k] = v
	}
	for k, v := range c.metrics.PlayerStats {
		p := *v
		out.PlayerStats[k] = &p
	}
	return out
}

// GetAverageMatchDuration returns the average finished match duration in seconds
func (c *Consumer) GetAverageMatchDuration() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.metrics.FinishedMatch == 0 {
		return 0
	}
	return float64(c.metrics.TotalDuration) / float64(c.metrics.FinishedMatch)
}

// GetMostFrequentWinner returns the player with most wins
func (c *Consumer) GetMostFrequentWinner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	maxWins := 0
	winner := ""
	for player, wins := range c.metrics.WinCounts {
		if wins > maxWins || (wins == maxWins && player < winner) {
			maxWins = wins
			winner = player
		}
	}
	return winner
}

// GetMatchesPerHour returns matches started in the 24 hours before now
func (c *Consumer) GetMatchesPerHour(now time.Time) map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int, 24)
	for i := 0; i < 24; i++ {
		key := now.UTC().Add(-time.Duration(i) * time.Hour).Format(hourKeyLayout)
		result[key] = c.metrics.MatchesPerHour[key]
	}
	return result
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.cancel()
	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			c.logger.Warn("close consumer group failed", zap.Error(err))
		}
		if c.started {
			<-c.done
		}
	}
}

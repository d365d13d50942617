package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/domino-drop/internal/session"
)

const (
	DefaultTopic = "match-events"
)

// EventType represents the type of match event
type EventType string

const (
	EventMatchStarted EventType = "match_started"
	EventMoveApplied  EventType = "move_applied"
	EventMatchEnded   EventType = "match_ended"
)

// MatchEvent represents a match event for analytics
type MatchEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	MatchID   string    `json:"matchId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// MatchStartData contains data for match start events
type MatchStartData struct {
	First   string `json:"first"`
	Second  string `json:"second"`
	Starter string `json:"starter"`
	Timed   bool   `json:"timed"`
	Rematch bool   `json:"rematch"`
}

// MoveData contains data for move events
type MoveData struct {
	Player      string `json:"player"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Orientation string `json:"orientation"`
	MoveNum     int    `json:"moveNum"`
}

// MatchEndData contains data for match end events
type MatchEndData struct {
	First           string `json:"first"`
	Second          string `json:"second"`
	Winner          string `json:"winner"` // first, second or draw
	WinnerName      string `json:"winnerName,omitempty"`
	Cause           string `json:"cause"`
	DurationSeconds int    `json:"durationSeconds"`
	TotalBlocks     int    `json:"totalBlocks"`
}

// Config holds the broker settings
type Config struct {
	Brokers []string
	Topic   string
}

// Producer handles Kafka event production
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
	logger   *zap.Logger
}

// NewProducer creates a new Kafka producer. An unreachable broker yields a
// disabled producer.
func NewProducer(cfg Config, logger *zap.Logger) *Producer {
	logger = logger.With(zap.String("component", "kafka-producer"))

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		logger.Warn("kafka producer not available, analytics disabled", zap.Error(err))
		return &Producer{logger: logger}
	}

	logger.Info("kafka producer connected", zap.Strings("brokers", cfg.Brokers))
	return NewProducerFrom(producer, cfg.Topic, logger)
}

// NewDisabledProducer returns a producer that drops every event
func NewDisabledProducer(logger *zap.Logger) *Producer {
	return &Producer{logger: logger.With(zap.String("component", "kafka-producer"))}
}

// NewProducerFrom wraps an existing sarama producer
func NewProducerFrom(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{producer: producer, topic: topic, enabled: true, logger: logger}
}

// EmitMatchStart emits a match start event
func (p *Producer) EmitMatchStart(ms session.MatchStart) {
	if !p.enabled {
		return
	}

	p.send(MatchEvent{
		Type:      EventMatchStarted,
		SessionID: ms.SessionID,
		MatchID:   ms.MatchID,
		Timestamp: time.Now().UTC(),
		Data: MatchStartData{
			First:   ms.Players.First,
			Second:  ms.Players.Second,
			Starter: ms.Starter.String(),
			Timed:   ms.Clock.Timed,
			Rematch: ms.Rematch,
		},
	})
}

// EmitMove emits a move event
func (p *Producer) EmitMove(mi session.MoveInfo) {
	if !p.enabled {
		return
	}

	p.send(MatchEvent{
		Type:      EventMoveApplied,
		SessionID: mi.SessionID,
		MatchID:   mi.MatchID,
		Timestamp: time.Now().UTC(),
		Data: MoveData{
			Player:      mi.Player,
			X:           mi.Block.X,
			Y:           mi.Block.Y,
			Orientation: mi.Block.Orientation.String(),
			MoveNum:     mi.MoveNum,
		},
	})
}

// EmitMatchEnd emits a match end event
func (p *Producer) EmitMatchEnd(rec session.Record) {
	if !p.enabled {
		return
	}

	data := MatchEndData{
		First:           rec.FirstName,
		Second:          rec.SecondName,
		Winner:          rec.Winner,
		Cause:           string(rec.Cause),
		DurationSeconds: rec.DurationSecs,
		TotalBlocks:     rec.FirstBlocks + rec.SecondBlocks,
	}
	switch rec.Winner {
	case "first":
		data.WinnerName = rec.FirstName
	case "second":
		data.WinnerName = rec.SecondName
	}

	p.send(MatchEvent{
		Type:      EventMatchEnded,
		SessionID: rec.SessionID,
		MatchID:   rec.ID,
		Timestamp: rec.EndedAt,
		Data:      data,
	})
}

// send sends an event to Kafka
func (p *Producer) send(event MatchEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event failed", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.SessionID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err = p.producer.SendMessage(msg); err != nil {
		p.logger.Warn("send event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether Kafka is enabled
func (p *Producer) IsEnabled() bool {
	return p.enabled
}

package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/domino-drop/internal/session"
)

const (
	updateQueueSize = 256
	updateTimeout   = 3 * time.Second
)

type update struct {
	room *session.RoomInfo // nil removes id
	id   string
}

// Publisher applies listing changes to a Directory from a single goroutine,
// so a room's removal can never overtake its listing.
type Publisher struct {
	dir     Directory
	updates chan update
	done    chan struct{}
	logger  *zap.Logger
}

func NewPublisher(dir Directory, logger *zap.Logger) *Publisher {
	return &Publisher{
		dir:     dir,
		updates: make(chan update, updateQueueSize),
		done:    make(chan struct{}),
		logger:  logger.With(zap.String("component", "lobby")),
	}
}

// Open queues room for listing
func (p *Publisher) Open(room session.RoomInfo) {
	p.enqueue(update{room: &room, id: room.ID})
}

// Close queues the removal of id
func (p *Publisher) Close(id string) {
	p.enqueue(update{id: id})
}

// enqueue drops the update once Run has returned
func (p *Publisher) enqueue(u update) {
	select {
	case p.updates <- u:
	case <-p.done:
	}
}

// Run applies updates in arrival order until ctx is done, then drains
// whatever is already queued.
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case u := <-p.updates:
			p.apply(u)
		case <-ctx.Done():
			for {
				select {
				case u := <-p.updates:
					p.apply(u)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}

func (p *Publisher) apply(u update) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if u.room != nil {
		if err := p.dir.Put(ctx, *u.room); err != nil {
			p.logger.Warn("failed to list room", zap.String("room", u.id), zap.Error(err))
		}
		return
	}
	if err := p.dir.Remove(ctx, u.id); err != nil {
		p.logger.Warn("failed to unlist room", zap.String("room", u.id), zap.Error(err))
	}
}

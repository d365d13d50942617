package lobby

import (
	"context"
	"sort"
	"sync"

	"github.com/domino-drop/internal/session"
)

// Directory lists sessions that are waiting for an opponent
type Directory interface {
	Put(ctx context.Context, room session.RoomInfo) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]session.RoomInfo, error)
}

// MemoryDirectory keeps the listing in process
type MemoryDirectory struct {
	rooms map[string]session.RoomInfo
	mu    sync.RWMutex
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{rooms: make(map[string]session.RoomInfo)}
}

func (d *MemoryDirectory) Put(_ context.Context, room session.RoomInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[room.ID] = room
	return nil
}

func (d *MemoryDirectory) Remove(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rooms, id)
	return nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]session.RoomInfo, error) {
	d.mu.RLock()
	rooms := make([]session.RoomInfo, 0, len(d.rooms))
	for _, room := range d.rooms {
		rooms = append(rooms, room)
	}
	d.mu.RUnlock()

	sortRooms(rooms)
	return rooms, nil
}

// sortRooms orders rooms oldest first
func sortRooms(rooms []session.RoomInfo) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
}

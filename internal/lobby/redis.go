package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/domino-drop/internal/session"
)

const (
	indexKey   = "lobby:rooms"
	roomPrefix = "lobby:room:"
)

// RedisDirectory shares the listing between server instances. Each room
// expires after ttl so a crashed instance cannot leave rooms behind.
type RedisDirectory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDirectory(client *redis.Client, ttl time.Duration) *RedisDirectory {
	return &RedisDirectory{client: client, ttl: ttl}
}

func (d *RedisDirectory) Put(ctx context.Context, room session.RoomInfo) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	pipe := d.client.TxPipeline()
	pipe.Set(ctx, roomPrefix+room.ID, roomJSON, d.ttl)
	pipe.SAdd(ctx, indexKey, room.ID)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put room: %w", err)
	}
	return nil
}

func (d *RedisDirectory) Remove(ctx context.Context, id string) error {
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, roomPrefix+id)
	pipe.SRem(ctx, indexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}
	return nil
}

func (d *RedisDirectory) List(ctx context.Context) ([]session.RoomInfo, error) {
	ids, err := d.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	if len(ids) == 0 {
		return []session.RoomInfo{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomPrefix + id
	}
	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}

	rooms := make([]session.RoomInfo, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var room session.RoomInfo
		if err := json.Unmarshal([]byte(raw), &room); err != nil {
			return nil, fmt.Errorf("could not unmarshal room %s: %w", ids[i], err)
		}
		rooms = append(rooms, room)
	}
	if len(expired) > 0 {
		d.client.SRem(ctx, indexKey, expired...)
	}

	sortRooms(rooms)
	return rooms, nil
}

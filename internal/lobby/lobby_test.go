package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domino-drop/internal/game"
	"github.com/domino-drop/internal/session"
	"github.com/domino-drop/testing/suite"
)

func room(id string, age time.Duration) session.RoomInfo {
	return session.RoomInfo{
		ID:        id,
		HostName:  "host-" + id,
		Clock:     game.ClockConfig{Timed: true, Initial: 300, Increment: 5},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

// exercise runs the same contract against any directory
func exercise(t *testing.T, ctx context.Context, d Directory) {
	t.Helper()

	// Given: two rooms, the newer one put first
	require.NoError(t, d.Put(ctx, room("BBBB", time.Minute)))
	require.NoError(t, d.Put(ctx, room("AAAA", time.Hour)))

	// When: listing
	rooms, err := d.List(ctx)

	// Then: oldest first
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "AAAA", rooms[0].ID)
	assert.Equal(t, room("BBBB", time.Minute), rooms[1])

	// When: a room fills
	require.NoError(t, d.Remove(ctx, "AAAA"))

	rooms, err = d.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "BBBB", rooms[0].ID)

	// Then: removing an unknown room is harmless
	assert.NoError(t, d.Remove(ctx, "ZZZZ"))
}

func TestMemoryDirectory(t *testing.T) {
	exercise(t, context.Background(), NewMemoryDirectory())
}

func TestMemoryDirectory_Empty(t *testing.T) {
	rooms, err := NewMemoryDirectory().List(context.Background())

	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestRedisDirectory(t *testing.T) {
	t.Run("contract", func(t *testing.T) {
		ctx, st := suite.New(t)

		exercise(t, ctx, NewRedisDirectory(st.Redis, time.Minute))
	})

	t.Run("expired rooms drop out of the index", func(t *testing.T) {
		ctx, st := suite.New(t)
		d := NewRedisDirectory(st.Redis, time.Minute)
		require.NoError(t, d.Put(ctx, room("CCCC", 0)))

		// Given: the room key vanished as if its ttl elapsed
		require.NoError(t, st.Redis.Del(ctx, roomPrefix+"CCCC").Err())

		rooms, err := d.List(ctx)

		require.NoError(t, err)
		assert.Empty(t, rooms)
		members, err := st.Redis.SMembers(ctx, indexKey).Result()
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}

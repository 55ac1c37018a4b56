package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestUnread(t *testing.T) (*RedisUnread, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	u, err := DialRedisUnread(context.Background(), RedisOptions{Addr: mr.Addr(), KeyPrefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })
	return u, mr
}

func TestRedisUnread_IncrementAndReset(t *testing.T) {
	req := require.New(t)
	u, mr := newTestUnread(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := u.Increment(ctx, "bob", "alice")
		req.NoError(err)
		req.Equal(want, n)
	}
	_, err := u.Increment(ctx, "bob", "carol")
	req.NoError(err)

	n, err := u.Count(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal(3, n)
	req.Equal("3", mr.HGet("test:unread:bob", "alice"))

	counts, err := u.Counts(ctx, "bob")
	req.NoError(err)
	req.Equal(map[string]int{"alice": 3, "carol": 1}, counts)

	req.NoError(u.Reset(ctx, "bob", "alice"))
	n, err = u.Count(ctx, "bob", "alice")
	req.NoError(err)
	req.Zero(n)

	counts, err = u.Counts(ctx, "bob")
	req.NoError(err)
	req.Equal(map[string]int{"carol": 1}, counts)
}

func TestRedisUnread_UnknownRecipient(t *testing.T) {
	req := require.New(t)
	u, _ := newTestUnread(t)
	ctx := context.Background()

	n, err := u.Count(ctx, "nobody", "alice")
	req.NoError(err)
	req.Zero(n)

	counts, err := u.Counts(ctx, "nobody")
	req.NoError(err)
	req.Empty(counts)

	req.NoError(u.Reset(ctx, "nobody", "alice"))
}

func TestRedisUnread_BackendDown(t *testing.T) {
	req := require.New(t)
	u, mr := newTestUnread(t)
	mr.Close()

	_, err := u.Increment(context.Background(), "bob", "alice")
	req.Error(err)
}

func TestDialRedisUnread_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := DialRedisUnread(context.Background(), RedisOptions{Addr: addr})
	require.ErrorIs(t, err, ErrRedisConnection)
}

func TestNewRedisUnread_SharedClient(t *testing.T) {
	req := require.New(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	u := NewRedisUnread(client, "")
	defer u.Close()

	_, err := u.Increment(context.Background(), "bob", "alice")
	req.NoError(err)
	req.True(mr.Exists("unread:bob"))
}

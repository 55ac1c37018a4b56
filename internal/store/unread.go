package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omochice/roomcast/internal/chat"
)

// ErrRedisConnection is returned when the unread backend cannot be reached.
var ErrRedisConnection = errors.New("redis connection failed")

// RedisOptions selects the Redis instance holding unread counters.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisUnread keeps unread counters in one hash per recipient, keyed by sender.
// HINCRBY is atomic so concurrent increments for a recipient never get lost.
type RedisUnread struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ chat.UnreadStore = (*RedisUnread)(nil)

// DialRedisUnread connects to Redis and checks the connection.
func DialRedisUnread(ctx context.Context, opts RedisOptions) (*RedisUnread, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrRedisConnection, err)
	}
	return NewRedisUnread(client, opts.KeyPrefix), nil
}

func NewRedisUnread(client redis.UniversalClient, keyPrefix string) *RedisUnread {
	return &RedisUnread{client: client, keyPrefix: keyPrefix}
}

func (r *RedisUnread) Close() error {
	return r.client.Close()
}

func (r *RedisUnread) key(recipientID string) string {
	return r.keyPrefix + "unread:" + recipientID
}

func (r *RedisUnread) Increment(ctx context.Context, recipientID, senderID string) (int, error) {
	n, err := r.client.HIncrBy(ctx, r.key(recipientID), senderID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment unread %s/%s: %w", recipientID, senderID, err)
	}
	return int(n), nil
}

func (r *RedisUnread) Count(ctx context.Context, recipientID, senderID string) (int, error) {
	n, err := r.client.HGet(ctx, r.key(recipientID), senderID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read unread %s/%s: %w", recipientID, senderID, err)
	}
	return n, nil
}

func (r *RedisUnread) Counts(ctx context.Context, recipientID string) (map[string]int, error) {
	raw, err := r.client.HGetAll(ctx, r.key(recipientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read unread counts of %s: %w", recipientID, err)
	}
	counts := make(map[string]int, len(raw))
	for senderID, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("unread counter %s/%s: %w", recipientID, senderID, err)
		}
		if n > 0 {
			counts[senderID] = n
		}
	}
	return counts, nil
}

func (r *RedisUnread) Reset(ctx context.Context, recipientID, senderID string) error {
	if err := r.client.HDel(ctx, r.key(recipientID), senderID).Err(); err != nil {
		return fmt.Errorf("reset unread %s/%s: %w", recipientID, senderID, err)
	}
	return nil
}

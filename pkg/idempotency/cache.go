package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache remembers processed message ids in Redis. It only short-circuits
// redeliveries; the inbox table stays the authority.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewCache(rdb redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Key(messageID uuid.UUID) string {
	return fmt.Sprintf("inbox:processed:%s", messageID)
}

func (c *Cache) Seen(ctx context.Context, messageID uuid.UUID) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.Key(messageID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Cache) Mark(ctx context.Context, messageID uuid.UUID) error {
	return c.rdb.Set(ctx, c.Key(messageID), "1", c.ttl).Err()
}

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

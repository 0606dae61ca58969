package store

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultDedupTTL is how long Redis remembers an inbound message ID.
const DefaultDedupTTL = 48 * time.Hour

// RedisDeduper records message IDs with SET NX and lets Redis expire them.
type RedisDeduper struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper whose keys are prefix + "inbound:" + messageID.
func NewRedisDeduper(client *backend.Client, prefix string, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) key(messageID string) string {
	return d.prefix + "inbound:" + messageID
}

func (d *RedisDeduper) RecordInbound(ctx context.Context, messageID, sender string) (bool, error) {
	fresh, err := d.client.SetNX(ctx, d.key(messageID), sender, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return fresh, nil
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, messageID string) error {
	if err := d.client.Set(ctx, d.key(messageID), "processed", backend.KeepTTL).Err(); err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// streamMaxLen is the approximate maximum length of the signal stream,
// enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// RedisBus publishes each signal to a Pub/Sub channel for live consumers and
// appends it to a stream for consumers that need replay.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	stream  string
}

// NewRedisBus connects to addr.
func NewRedisBus(addr, password string, db int, channel, stream string) *RedisBus {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisBusClient(rdb, channel, stream)
}

// NewRedisBusClient wraps an existing client. An empty channel or stream
// disables that half.
func NewRedisBusClient(rdb *redis.Client, channel, stream string) *RedisBus {
	return &RedisBus{rdb: rdb, channel: channel, stream: stream}
}

// Ping checks connectivity.
func (b *RedisBus) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("notify.RedisBus: ping: %w", err)
	}
	return nil
}

// Notify publishes the event as JSON.
func (b *RedisBus) Notify(ctx context.Context, ev domain.SignalEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify.RedisBus: marshal: %w", err)
	}

	if b.channel != "" {
		if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
			return fmt.Errorf("notify.RedisBus: publish %s: %w", b.channel, err)
		}
	}

	if b.stream != "" {
		args := &redis.XAddArgs{
			Stream: b.stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]any{
				"signal_id":   ev.SignalID,
				"disposition": string(ev.Disposition),
				"payload":     payload,
			},
		}
		if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("notify.RedisBus: stream append %s: %w", b.stream, err)
		}
	}
	return nil
}

// Close closes the underlying client.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

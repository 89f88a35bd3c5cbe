package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

type wireSignal struct {
	Origin string `json:"origin"`
	Kind   string `json:"kind"`
}

const kindAuthChanged = "auth-changed"

// RedisBridge publishes local signals to a Redis channel and re-emits
// signals from other gateway instances on the local hub.
type RedisBridge struct {
	hub     *Hub
	rdb     *goredis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRedisBridge connects to addr and verifies the connection.
func NewRedisBridge(ctx context.Context, hub *Hub, addr, password string, db int, channel string, logger *slog.Logger) (*RedisBridge, error) {
	if channel == "" {
		channel = "movekind:auth-changed"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBridge{
		hub:     hub,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}, nil
}

// Publish signals local subscribers, then other instances. Redis failures
// are logged; local delivery never depends on them.
func (b *RedisBridge) Publish() {
	b.hub.Publish()

	raw, err := json.Marshal(wireSignal{Origin: b.origin, Kind: kindAuthChanged})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.logger.Warn("redis publish failed", "channel", b.channel, "error", err)
	}
}

// Start subscribes to the channel and forwards remote signals until ctx is
// cancelled.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				b.handle(m.Payload)
			}
		}
	}()
	return nil
}

// handle re-emits a remote signal locally, skipping this instance's own.
func (b *RedisBridge) handle(payload string) bool {
	var sig wireSignal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		b.logger.Warn("bad redis signal payload", "error", err)
		return false
	}
	if sig.Origin == b.origin || sig.Kind != kindAuthChanged {
		return false
	}
	b.hub.Publish()
	return true
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	return b.rdb.Close()
}

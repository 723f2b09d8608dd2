package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventChannel = "quill:page_events"

// RedisBridge relays page events between API nodes over Redis pub/sub so
// viewers connected to any node see every publish.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
}

// NewRedisBridge connects to Redis and attaches itself to the hub.
func NewRedisBridge(redisURL string, hub *Hub, logger zerolog.Logger) (*RedisBridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	bridge := &RedisBridge{client: client, hub: hub, logger: logger}
	hub.SetBridge(bridge)
	return bridge, nil
}

// NewRedisBridgeWithClient builds a bridge from an existing client. Used by
// tests running against miniredis.
func NewRedisBridgeWithClient(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisBridge {
	bridge := &RedisBridge{client: client, hub: hub, logger: logger}
	hub.SetBridge(bridge)
	return bridge
}

// Forward publishes a locally produced event to the shared channel.
func (b *RedisBridge) Forward(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(context.Background(), eventChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run consumes the shared channel until ctx is cancelled, delivering remote
// events to the local hub. Echoes of this node's own publishes are dropped.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn().Err(err).Msg("notify: bad bridge payload")
				continue
			}
			if ev.Origin == b.hub.NodeID() {
				continue
			}
			b.hub.Deliver(ev)
		}
	}
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	return b.client.Close()
}

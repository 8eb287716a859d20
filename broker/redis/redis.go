// Package redis implements broker.Broker on Redis Streams so that peers in
// different processes can share a namespace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/mcp-protocol-go/broker"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Broker is a Redis Streams-based implementation of the broker.Broker interface.
// It provides namespace-based message isolation and ordered delivery guarantees
// using Redis Streams for horizontal scalability.
type Broker struct {
	client    redis.UniversalClient
	keyPrefix string
	block     time.Duration
}

// Config contains configuration options for the Redis broker.
type Config struct {
	// Client is the Redis client to use. If nil, one is created for Addr.
	Client redis.UniversalClient
	// Addr is the address dialed when Client is nil.
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix is prepended to all Redis keys used by the broker.
	KeyPrefix string `env:"BROKER_KEY_PREFIX,default=mcp:broker:"`
	// Block bounds each XREAD so that cancellation is noticed promptly.
	Block time.Duration `env:"BROKER_BLOCK,default=1s"`
}

// ConfigFromEnv reads a Config from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("redis broker config: %w", err)
	}
	return cfg, nil
}

// New creates a new Redis-based broker instance.
func New(config Config) *Broker {
	client := config.Client
	if client == nil {
		addr := config.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "mcp:broker:"
	}

	block := config.Block
	if block <= 0 {
		block = time.Second
	}

	return &Broker{
		client:    client,
		keyPrefix: keyPrefix,
		block:     block,
	}
}

// Ping checks connectivity to the Redis server.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Publish appends message to the namespace stream. The Redis-generated
// stream ID is the event ID.
func (b *Broker) Publish(ctx context.Context, namespace string, message jsonrpc.Message) (string, error) {
	streamKey := b.streamKey(namespace)

	eventID, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{"data": []byte(message)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish message to stream %s: %w", streamKey, err)
	}

	return eventID, nil
}

// Subscribe implements broker.Broker.
func (b *Broker) Subscribe(ctx context.Context, namespace string, lastEventID string, handler broker.MessageHandler) error {
	streamKey := b.streamKey(namespace)

	startID, err := b.startID(ctx, streamKey, lastEventID)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// No consumer group: every subscriber sees every message.
		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, startID},
			Count:   100,
			Block:   b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to read from stream %s: %w", streamKey, err)
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				startID = message.ID

				data, ok := message.Values["data"].(string)
				if !ok {
					continue
				}

				envelope := broker.MessageEnvelope{
					ID:   message.ID,
					Data: []byte(data),
				}
				if err := handler(ctx, envelope); err != nil {
					return err
				}
			}
		}
	}
}

// startID resolves lastEventID to an explicit stream ID. Resolving "" to the
// current tail up front keeps messages published between two XREAD calls from
// being skipped, which a literal "$" would do.
func (b *Broker) startID(ctx context.Context, streamKey, lastEventID string) (string, error) {
	switch lastEventID {
	case broker.FromBeginning:
		return "0-0", nil
	case "":
		tail, err := b.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("failed to read tail of stream %s: %w", streamKey, err)
		}
		if len(tail) == 0 {
			return "0-0", nil
		}
		return tail[0].ID, nil
	}

	found, err := b.client.XRange(ctx, streamKey, lastEventID, lastEventID).Result()
	if err != nil {
		// Redis rejects malformed stream IDs outright.
		return "", fmt.Errorf("subscribe to %q from %q: %w: %v", streamKey, lastEventID, broker.ErrEventNotFound, err)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("subscribe to %q from %q: %w", streamKey, lastEventID, broker.ErrEventNotFound)
	}
	return lastEventID, nil
}

// Cleanup removes all resources associated with a namespace.
func (b *Broker) Cleanup(ctx context.Context, namespace string) error {
	streamKey := b.streamKey(namespace)

	err := b.client.Del(ctx, streamKey).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to cleanup namespace %s: %w", namespace, err)
	}

	return nil
}

func (b *Broker) streamKey(namespace string) string {
	return b.keyPrefix + "stream:" + namespace
}

var _ broker.Broker = (*Broker)(nil)

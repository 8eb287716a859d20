package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ggoodman/mcp-protocol-go/broker"
	"github.com/ggoodman/mcp-protocol-go/broker/brokertest"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.KeyPrefix = fmt.Sprintf("mcp:test:%d:", time.Now().UnixNano())
	cfg.Block = 100 * time.Millisecond

	b := New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := b.Ping(ctx); err != nil {
		_ = b.Close()
		t.Skipf("redis not reachable at %s: %v", cfg.Addr, err)
	}
	return b
}

func TestRedisBroker(t *testing.T) {
	brokertest.RunBrokerTests(t, func(t *testing.T) broker.Broker {
		return newTestBroker(t)
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("BROKER_KEY_PREFIX", "custom:")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Addr != "redis.internal:6380" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.KeyPrefix != "custom:" {
		t.Fatalf("KeyPrefix = %q", cfg.KeyPrefix)
	}
	if cfg.Block != time.Second {
		t.Fatalf("Block = %v", cfg.Block)
	}
}

func TestStreamKey(t *testing.T) {
	b := New(Config{KeyPrefix: "p:"})
	defer b.Close()
	if got := b.streamKey("ns"); got != "p:stream:ns" {
		t.Fatalf("streamKey = %q", got)
	}
}

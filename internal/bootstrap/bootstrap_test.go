package bootstrap

import (
	"context"
	"testing"

	"github.com/hilthontt/tourchat/internal/infrastructure/configs"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
)

func memoryConfig() *configs.Config {
	cfg := &configs.Config{}
	cfg.Store.Driver = "memory"
	cfg.Messaging.Driver = "local"
	cfg.RateLimiter.Backend = "memory"
	return cfg
}

func TestOpenMemoryStack(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	logger := logging.NewNop()

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("stores: %v", err)
	}
	defer stores.Close()
	if stores.Rooms == nil || stores.Messages == nil || stores.Audit == nil {
		t.Fatalf("expected every repository, got %+v", stores)
	}
	if len(stores.Checks) != 0 {
		t.Fatalf("memory store needs no readiness check, got %v", stores.Checks)
	}

	broker, err := OpenBroker(cfg, logger)
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	defer broker.Close()
	if _, ok := broker.(*messaging.LocalBus); !ok {
		t.Fatalf("expected a local bus, got %T", broker)
	}

	caches, err := OpenLimiterCaches(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("caches: %v", err)
	}
	defer caches.Close()
	if caches.Check() != nil {
		t.Fatal("memory limiter needs no readiness check")
	}

	a, b := caches.Cache("http"), caches.Cache("messages")
	if err := a.Set("u", 3); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := b.Get("u"); err == nil {
		t.Fatal("limiters must not share buckets")
	}
}

func TestOpenRejectsUnknownDrivers(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Driver = "cassandra"
	if _, err := OpenStores(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatal("expected an unknown store driver to fail")
	}

	cfg = memoryConfig()
	cfg.Messaging.Driver = "kafka"
	if _, err := OpenBroker(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected an unknown broker to fail")
	}
}

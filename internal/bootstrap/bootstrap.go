// Package bootstrap opens the stores, broker and caches selected by configuration. It is
// shared by the binaries under cmd/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/configs"
	"github.com/hilthontt/tourchat/internal/infrastructure/events"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
	"github.com/hilthontt/tourchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/tourchat/internal/persistence/db"
	"github.com/hilthontt/tourchat/internal/persistence/memory"
	"github.com/hilthontt/tourchat/internal/persistence/repository"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const shutdownTimeout = 5 * time.Second

// Check probes one dependency for readiness.
type Check = func(ctx context.Context) error

type Stores struct {
	Rooms    domain.RoomRepository
	Messages domain.MessageRepository
	Audit    domain.RoomAuditRepository
	Checks   map[string]Check

	mongo  *mongo.Client
	logger logging.Logger
}

func OpenStores(ctx context.Context, cfg *configs.Config, logger logging.Logger) (*Stores, error) {
	s := &Stores{
		Checks: make(map[string]Check),
		logger: logger,
	}

	switch cfg.Store.Driver {
	case "memory":
		s.Rooms = memory.NewRoomRepository()
		s.Messages = memory.NewMessageRepository()
		s.Audit = memory.NewRoomAuditLogRepository()
		logger.Warn(logging.General, logging.Startup, "using in-memory store; data is lost on restart", nil)

	case "mongo":
		client, err := db.NewMongoClient(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		database := db.GetDatabase(client, cfg.Mongo)
		if err := repository.EnsureIndexes(ctx, database); err != nil {
			_ = db.DisconnectMongo(context.Background(), client, logger)
			return nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}

		s.mongo = client
		s.Rooms = repository.NewRoomRepository(database)
		s.Messages = repository.NewMessageRepository(database, logger)
		s.Audit = repository.NewRoomAuditLogRepository(database)
		s.Checks["mongo"] = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	return s, nil
}

func (s *Stores) Close() {
	if s.mongo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = db.DisconnectMongo(ctx, s.mongo, s.logger)
}

// Broker is a message broker that can be closed.
type Broker interface {
	events.Broker
	Close()
}

func OpenBroker(cfg *configs.Config, logger logging.Logger) (Broker, error) {
	switch cfg.Messaging.Driver {
	case "local":
		return messaging.NewLocalBus(0), nil
	case "rabbitmq":
		rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI)
		if err != nil {
			return nil, err
		}
		logger.Info(logging.RabbitMQ, logging.Startup, "connected to rabbitmq", nil)
		return rmq, nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver %q", cfg.Messaging.Driver)
	}
}

// LimiterCaches hands out one bucket store per limiter so that limiters keyed by the
// same identity do not share buckets.
type LimiterCaches struct {
	client *redis.Client
	caches []ratelimiter.GetterSetter
}

func OpenLimiterCaches(ctx context.Context, cfg *configs.Config, logger logging.Logger) (*LimiterCaches, error) {
	switch cfg.RateLimiter.Backend {
	case "memory":
		return &LimiterCaches{}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Info(logging.Redis, logging.Startup, "connected to redis", map[logging.ExtraKey]any{
			"Addr": cfg.Redis.Addr,
		})
		return &LimiterCaches{client: client}, nil
	default:
		return nil, errors.New("unsupported rate limiter backend " + cfg.RateLimiter.Backend)
	}
}

// Cache returns the bucket store of one limiter.
func (l *LimiterCaches) Cache(namespace string) ratelimiter.GetterSetter {
	var c ratelimiter.GetterSetter
	if l.client != nil {
		c = ratelimiter.NewRedis(l.client, namespace+":")
	} else {
		c = ratelimiter.NewInMemory()
	}
	l.caches = append(l.caches, c)
	return c
}

// Check is nil for the in-memory backend.
func (l *LimiterCaches) Check() Check {
	if l.client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return l.client.Ping(ctx).Err()
	}
}

func (l *LimiterCaches) Close() {
	for _, c := range l.caches {
		_ = c.Close()
	}
}

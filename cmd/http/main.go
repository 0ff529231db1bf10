package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/hilthontt/tourchat/internal/bootstrap"
	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/gate"
	"github.com/hilthontt/tourchat/internal/infrastructure/configs"
	"github.com/hilthontt/tourchat/internal/infrastructure/env"
	"github.com/hilthontt/tourchat/internal/infrastructure/events"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/profanity"
	"github.com/hilthontt/tourchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/tourchat/internal/infrastructure/tracing"
	"github.com/hilthontt/tourchat/internal/infrastructure/ws"
	"github.com/hilthontt/tourchat/internal/presentation/api"
	feedsHandler "github.com/hilthontt/tourchat/internal/presentation/handler/feeds"
	healthHandler "github.com/hilthontt/tourchat/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/tourchat/internal/presentation/handler/messages"
	moderationHandler "github.com/hilthontt/tourchat/internal/presentation/handler/moderation"
	roomHandler "github.com/hilthontt/tourchat/internal/presentation/handler/rooms"
	toursHandler "github.com/hilthontt/tourchat/internal/presentation/handler/tours"
	"github.com/hilthontt/tourchat/internal/sweeper"
	"github.com/hilthontt/tourchat/internal/tour"
)

func main() {
	configs.LoadDotEnv()
	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&cfg.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName: "tourchat-http",
		Environment: env.GetString("ENVIRONMENT", "development"),
		Endpoint:    cfg.Tracing.Endpoint,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to open stores", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer stores.Close()

	broker, err := bootstrap.OpenBroker(cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to open broker", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer broker.Close()

	caches, err := bootstrap.OpenLimiterCaches(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to open rate limiter cache", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer caches.Close()

	publisher := events.NewRoomPublisher(broker)

	chatOpts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithEvents(publisher),
		chat.WithAuditLog(stores.Audit),
		chat.WithMessageLimiter(ratelimiter.New(ratelimiter.Options{
			MaxRatePerSecond: cfg.Chat.MessagesPerSecond,
			MaxBurst:         cfg.Chat.MessageBurst,
			Cache:            caches.Cache("messages"),
			CacheTTL:         cfg.RateLimiter.CacheTTL,
		})),
	}
	if cfg.Chat.ProfanityFilter {
		filter, err := profanity.Default()
		if err != nil {
			logger.Fatal(logging.General, logging.Startup, "failed to load profanity filter", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		chatOpts = append(chatOpts, chat.WithProfanityFilter(filter))
	}

	chatService := chat.NewService(stores.Rooms, stores.Messages, chat.Config{
		RoomQuota:       cfg.Chat.RoomQuota,
		RoomQuotaWindow: cfg.Chat.RoomQuotaWindow,
		MessageTTL:      cfg.Chat.MessageTTL,
		KickDuration:    cfg.Chat.KickDuration,
		FeedLimit:       cfg.Chat.FeedLimit,
	}, chatOpts...)

	go listen(logger, "room_audit", events.NewAuditConsumer(broker, stores.Audit, logger).Listen)

	var scheduler *sweeper.Scheduler
	if cfg.Sweeper.Embedded {
		sw := sweeper.NewSweeper(stores.Rooms, stores.Messages, sweeper.Config{
			InactivityThreshold: cfg.Sweeper.InactivityThreshold,
			RoomsPerSecond:      cfg.Sweeper.RoomsPerSecond,
		}, sweeper.WithLogger(logger), sweeper.WithEvents(publisher))

		g := gate.New(stores.Rooms, stores.Messages, gate.Config{
			MaxRooms: cfg.Sweeper.GateMaxRooms,
			Window:   cfg.Sweeper.GateWindow,
		}, gate.WithLogger(logger), gate.WithEvents(publisher), gate.WithPruner(sw))
		go listen(logger, "room_validation", events.NewRoomConsumer(broker, g, logger).Listen)

		scheduler = sweeper.NewScheduler(logger, sw.Jobs(sweeper.Intervals{
			ExpireMessages: cfg.Sweeper.ExpireInterval,
			ReinstateKicks: cfg.Sweeper.KickInterval,
			PruneRooms:     cfg.Sweeper.PruneInterval,
		})...)
		scheduler.Start(ctx)
	}

	var provider tour.ContentProvider
	if cfg.Tour.ProviderURL != "" {
		p, err := tour.NewHTTPProvider(cfg.Tour.ProviderURL, cfg.Tour.Timeout)
		if err != nil {
			logger.Fatal(logging.Tour, logging.Startup, "invalid tour provider", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		provider = p
	}

	checks := make(map[string]healthHandler.Check, len(stores.Checks)+1)
	for name, check := range stores.Checks {
		checks[name] = check
	}
	if check := caches.Check(); check != nil {
		checks["redis"] = check
	}

	hub := ws.NewHub()
	health := healthHandler.NewHandler(checks)
	handlers := api.Handlers{
		Rooms:      roomHandler.NewHandler(chatService, nil),
		Messages:   messagesHandler.NewHandler(chatService),
		Moderation: moderationHandler.NewHandler(chatService, hub),
		Feeds:      feedsHandler.NewHandler(chatService, hub, cfg.HTTP.AllowedOrigins, ws.DefaultConfig(), logger),
		Tours:      toursHandler.NewHandler(tour.NewOrchestrator(provider, chatService, logger)),
		Health:     health,
	}

	limiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Cache:            caches.Cache("http"),
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	roomCreates := ratelimiter.NewFixedWindow(cfg.RateLimiter.RoomCreatesPerIP, cfg.RateLimiter.RoomCreateWindow)
	defer roomCreates.Close()

	app := api.NewApplication(*cfg, handlers, logger, limiter, roomCreates)
	app.OnShutdown(health.MarkUnhealthy)
	app.OnShutdown(hub.CloseAll)
	if scheduler != nil {
		app.OnShutdown(scheduler.Stop)
	}

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Error(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func listen(logger logging.Logger, queue string, fn func() error) {
	if err := fn(); err != nil {
		logger.Error(logging.RabbitMQ, logging.Consume, "consumer stopped", map[logging.ExtraKey]any{
			"Queue":              queue,
			logging.ErrorMessage: err.Error(),
		})
	}
}

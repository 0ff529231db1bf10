package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hilthontt/tourchat/internal/bootstrap"
	"github.com/hilthontt/tourchat/internal/gate"
	"github.com/hilthontt/tourchat/internal/infrastructure/configs"
	"github.com/hilthontt/tourchat/internal/infrastructure/env"
	"github.com/hilthontt/tourchat/internal/infrastructure/events"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/tracing"
	"github.com/hilthontt/tourchat/internal/sweeper"
)

// The standalone sweeper runs the expiry jobs and the room validation gate for API
// processes started with sweeper.embedded=false.
func main() {
	configs.LoadDotEnv()
	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&cfg.Logger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName: "tourchat-sweeper",
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

	publisher := events.NewRoomPublisher(broker)
	sw := sweeper.NewSweeper(stores.Rooms, stores.Messages, sweeper.Config{
		InactivityThreshold: cfg.Sweeper.InactivityThreshold,
		RoomsPerSecond:      cfg.Sweeper.RoomsPerSecond,
	}, sweeper.WithLogger(logger), sweeper.WithEvents(publisher))

	g := gate.New(stores.Rooms, stores.Messages, gate.Config{
		MaxRooms: cfg.Sweeper.GateMaxRooms,
		Window:   cfg.Sweeper.GateWindow,
	}, gate.WithLogger(logger), gate.WithEvents(publisher), gate.WithPruner(sw))

	go func() {
		if err := events.NewRoomConsumer(broker, g, logger).Listen(); err != nil {
			logger.Error(logging.RabbitMQ, logging.Consume, "room validation consumer stopped", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			stop()
		}
	}()

	scheduler := sweeper.NewScheduler(logger, sw.Jobs(sweeper.Intervals{
		ExpireMessages: cfg.Sweeper.ExpireInterval,
		ReinstateKicks: cfg.Sweeper.KickInterval,
		PruneRooms:     cfg.Sweeper.PruneInterval,
	})...)
	scheduler.Start(ctx)

	logger.Info(logging.Sweeper, logging.Startup, "sweeper started", nil)
	<-ctx.Done()

	scheduler.Stop()
	logger.Info(logging.Sweeper, logging.Shutdown, "sweeper stopped", nil)
}

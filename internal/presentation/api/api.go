package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/tourchat/internal/infrastructure/configs"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/ratelimiter"
	feedsHandler "github.com/hilthontt/tourchat/internal/presentation/handler/feeds"
	healthHandler "github.com/hilthontt/tourchat/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/tourchat/internal/presentation/handler/messages"
	moderationHandler "github.com/hilthontt/tourchat/internal/presentation/handler/moderation"
	roomHandler "github.com/hilthontt/tourchat/internal/presentation/handler/rooms"
	toursHandler "github.com/hilthontt/tourchat/internal/presentation/handler/tours"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const requestTimeout = 60 * time.Second

type Handlers struct {
	Rooms      *roomHandler.Handler
	Messages   *messagesHandler.Handler
	Moderation *moderationHandler.Handler
	Feeds      *feedsHandler.Handler
	Tours      *toursHandler.Handler
	Health     *healthHandler.Handler
}

type Application struct {
	config      configs.Config
	handlers    Handlers
	logger      logging.Logger
	ratelimiter ratelimiter.Limiter
	roomCreates *ratelimiter.FixedWindow
	onShutdown  []func()
}

func NewApplication(
	config configs.Config,
	handlers Handlers,
	logger logging.Logger,
	limiter ratelimiter.Limiter,
	roomCreates *ratelimiter.FixedWindow,
) *Application {
	return &Application{
		config:      config,
		handlers:    handlers,
		logger:      logger,
		ratelimiter: limiter,
		roomCreates: roomCreates,
	}
}

// OnShutdown registers fn to run once a stop signal arrives, before the server drains.
func (app *Application) OnShutdown(fn func()) {
	app.onShutdown = append(app.onShutdown, fn)
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.enableCors)
	r.Use(app.prometheusMiddleware)
	r.Use(app.loggerMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.handlers.Health.GetHealth)
		r.Get("/healthz", app.handlers.Health.GetHealth)
		r.Get("/live", app.handlers.Health.GetHealth)
		r.Get("/ready", app.handlers.Health.GetReady)

		r.Group(func(r chi.Router) {
			r.Use(app.identityMiddleware)
			r.Use(app.rateLimiterMiddleware)

			// Feeds are long lived and stay outside the request timeout.
			r.Get("/rooms/{areaId}/ws", app.handlers.Feeds.ServeFeed)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))

				r.With(app.roomCreateLimiterMiddleware).Post("/rooms", app.handlers.Rooms.CreateRoomHandler)
				r.Get("/rooms/{areaId}", app.handlers.Rooms.GetRoomHandler)
				r.Get("/rooms/{areaId}/audit", app.handlers.Rooms.GetAuditHandler)

				r.Post("/rooms/{areaId}/messages", app.handlers.Messages.CreateNewMessageHandler)
				r.Delete("/rooms/{areaId}/messages/{messageId}", app.handlers.Messages.DeleteMessageHandler)

				r.Post("/rooms/{areaId}/moderation/{action}", app.handlers.Moderation.ModerateHandler)

				r.Post("/tours", app.handlers.Tours.CreateTourHandler)
			})
		})
	})

	return otelhttp.NewHandler(r, "tourchat-http")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"Signal": s.String(),
		})

		for _, fn := range app.onShutdown {
			fn()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		logging.HostIp: srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		logging.HostIp: srv.Addr,
	})

	return nil
}

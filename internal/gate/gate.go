// Package gate runs the trusted setup step for freshly created rooms.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/clock"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/metrics"
	"github.com/hilthontt/tourchat/internal/sweeper"
)

// Events receives rejected rooms. Publishing is best-effort.
type Events interface {
	PublishRoomRejected(ctx context.Context, room domain.Room, reason string) error
}

type Pruner interface {
	PruneInactiveRooms(ctx context.Context) (sweeper.Report, error)
}

type Config struct {
	// MaxRooms is the number of rooms a creator may create within Window before the
	// next one is rejected.
	MaxRooms int
	Window   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRooms: 5,
		Window:   24 * time.Hour,
	}
}

type Option func(*Gate)

func WithClock(c clock.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

func WithEvents(e Events) Option {
	return func(g *Gate) { g.events = e }
}

func WithPruner(p Pruner) Option {
	return func(g *Gate) { g.pruner = p }
}

type Gate struct {
	rooms    domain.RoomRepository
	messages domain.MessageRepository
	events   Events
	pruner   Pruner
	clock    clock.Clock
	logger   logging.Logger
	cfg      Config
}

func New(rooms domain.RoomRepository, messages domain.MessageRepository, cfg Config, opts ...Option) *Gate {
	def := DefaultConfig()
	if cfg.MaxRooms <= 0 {
		cfg.MaxRooms = def.MaxRooms
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}

	g := &Gate{
		rooms:    rooms,
		messages: messages,
		clock:    clock.Real(),
		logger:   logging.NewNop(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate re-reads the room named by a room.created event and either deletes it or grants
// its creator master admin. A room that no longer exists is not an error.
func (g *Gate) Validate(ctx context.Context, event domain.Room) error {
	room, err := g.rooms.Get(ctx, event.AreaID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		metrics.GateOutcomes.WithLabelValues("gone").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	reason, err := g.rejection(ctx, room)
	if err != nil {
		return err
	}

	if reason != "" {
		if err := g.reject(ctx, room, reason); err != nil {
			return err
		}
	} else if err := g.accept(ctx, room); err != nil {
		return err
	}

	if g.pruner != nil {
		if _, err := g.pruner.PruneInactiveRooms(ctx); err != nil {
			g.logger.Warn(logging.Sweeper, logging.Gate, "post-validation prune failed", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}
	return nil
}

// rejection returns why the room must be deleted, or "" when it passes.
func (g *Gate) rejection(ctx context.Context, room *domain.Room) (string, error) {
	if missing := room.MissingFields(); len(missing) > 0 {
		return "missing fields: " + strings.Join(missing, ", "), nil
	}
	if err := domain.ValidateAreaID(room.AreaID); err != nil {
		return "invalid area id", nil
	}

	// The window ends at the room's own creation; later rooms never count against earlier ones.
	created, err := g.rooms.CountByCreator(ctx, room.CreatedBy, room.CreatedAt.Add(-g.cfg.Window), room.CreatedAt)
	if err != nil {
		return "", err
	}
	if created > int64(g.cfg.MaxRooms) {
		return fmt.Sprintf("creator created %d rooms within %s", created, g.cfg.Window), nil
	}
	return "", nil
}

func (g *Gate) reject(ctx context.Context, room *domain.Room, reason string) error {
	deleted, err := g.messages.DeleteByRoom(ctx, room.AreaID)
	if err != nil {
		return err
	}
	if err := g.rooms.Delete(ctx, room.AreaID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}
	metrics.GateOutcomes.WithLabelValues("rejected").Inc()

	g.logger.Warn(logging.Sweeper, logging.Gate, "room rejected", map[logging.ExtraKey]any{
		logging.AreaID: room.AreaID,
		logging.Actor:  room.CreatedBy,
		logging.Reason: reason,
		logging.Count:  deleted,
	})

	if g.events != nil {
		if err := g.events.PublishRoomRejected(ctx, *room, reason); err != nil {
			g.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish room.rejected", map[logging.ExtraKey]any{
				logging.AreaID:       room.AreaID,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
	return nil
}

func (g *Gate) accept(ctx context.Context, room *domain.Room) error {
	// A creator banned before the gate ran keeps the ban and gets no roles.
	if room.IsBanned(room.CreatedBy) {
		metrics.GateOutcomes.WithLabelValues("validated").Inc()
		return nil
	}
	patch := domain.Patch{}.
		AddToSet(domain.FieldMasterAdmins, room.CreatedBy).
		AddToSet(domain.FieldAdmins, room.CreatedBy)
	if err := g.rooms.Patch(ctx, room.AreaID, patch); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil
		}
		return err
	}
	metrics.GateOutcomes.WithLabelValues("validated").Inc()

	g.logger.Info(logging.Sweeper, logging.Gate, "room validated", map[logging.ExtraKey]any{
		logging.AreaID: room.AreaID,
		logging.Actor:  room.CreatedBy,
	})
	return nil
}

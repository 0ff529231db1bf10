// Package sweeper enforces the time-to-live policies of messages, kicks and rooms.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/clock"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/metrics"
	"golang.org/x/time/rate"
)

const (
	JobExpireMessages = "expire_messages"
	JobReinstateKicks = "reinstate_kicks"
	JobPruneRooms     = "prune_inactive_rooms"

	ReasonInactive = "inactive"
)

// Events receives room deletions. Publishing is best-effort.
type Events interface {
	PublishRoomDeleted(ctx context.Context, roomID, reason string, messagesDeleted int64, at time.Time) error
}

type Config struct {
	InactivityThreshold time.Duration
	// RoomsPerSecond paces room processing. Zero or less disables pacing.
	RoomsPerSecond float64
}

func DefaultConfig() Config {
	return Config{
		InactivityThreshold: domain.InactivityThreshold,
		RoomsPerSecond:      50,
	}
}

type Option func(*Sweeper)

func WithClock(c clock.Clock) Option {
	return func(s *Sweeper) { s.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

func WithEvents(e Events) Option {
	return func(s *Sweeper) { s.events = e }
}

// Report summarizes one run.
type Report struct {
	Rooms    int
	Changed  int
	Deleted  int64
	Failures int
}

type Sweeper struct {
	rooms    domain.RoomRepository
	messages domain.MessageRepository
	events   Events
	clock    clock.Clock
	logger   logging.Logger
	cfg      Config
	limiter  *rate.Limiter
}

func NewSweeper(rooms domain.RoomRepository, messages domain.MessageRepository, cfg Config, opts ...Option) *Sweeper {
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = domain.InactivityThreshold
	}

	limit := rate.Inf
	if cfg.RoomsPerSecond > 0 {
		limit = rate.Limit(cfg.RoomsPerSecond)
	}

	s := &Sweeper{
		rooms:    rooms,
		messages: messages,
		clock:    clock.Real(),
		logger:   logging.NewNop(),
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExpireMessages deletes, room by room, every message whose expiresAt is not after now.
func (s *Sweeper) ExpireMessages(ctx context.Context) (Report, error) {
	now := s.clock.Now()
	return s.sweep(ctx, JobExpireMessages, logging.ExpireMessages, domain.RoomFilter{}, func(ctx context.Context, room domain.Room) (bool, int64, error) {
		n, err := s.messages.DeleteExpired(ctx, room.AreaID, now)
		if err != nil {
			return false, 0, err
		}
		metrics.SweepDeletions.WithLabelValues(JobExpireMessages, "message").Add(float64(n))
		return n > 0, n, nil
	})
}

// ReinstateKicks drops expired kick entries. Rooms without one are not written.
func (s *Sweeper) ReinstateKicks(ctx context.Context) (Report, error) {
	now := s.clock.Now()
	return s.sweep(ctx, JobReinstateKicks, logging.ReinstateKicks, domain.RoomFilter{HasKicks: true}, func(ctx context.Context, room domain.Room) (bool, int64, error) {
		if !room.HasExpiredKicks(now) {
			return false, 0, nil
		}
		var expired int64
		for _, k := range room.KickedUsers {
			if k.Expired(now) {
				expired++
			}
		}
		if err := s.rooms.Patch(ctx, room.AreaID, domain.Patch{}.PruneKicks(now)); err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				return false, 0, nil
			}
			return false, 0, err
		}
		metrics.SweepDeletions.WithLabelValues(JobReinstateKicks, "kick").Add(float64(expired))
		return true, expired, nil
	})
}

// PruneInactiveRooms deletes rooms idle for longer than the inactivity threshold that hold no
// unexpired message. The room is deleted only if it is still idle at delete time, then its
// messages follow.
func (s *Sweeper) PruneInactiveRooms(ctx context.Context) (Report, error) {
	now := s.clock.Now()
	idleBefore := now.Add(-s.cfg.InactivityThreshold)
	filter := domain.RoomFilter{InactiveSince: idleBefore}
	return s.sweep(ctx, JobPruneRooms, logging.PruneRooms, filter, func(ctx context.Context, room domain.Room) (bool, int64, error) {
		return s.pruneRoom(ctx, room, now, idleBefore)
	})
}

func (s *Sweeper) pruneRoom(ctx context.Context, room domain.Room, now, idleBefore time.Time) (bool, int64, error) {
	active, err := s.messages.CountActive(ctx, room.AreaID, now)
	if err != nil {
		return false, 0, err
	}
	if active > 0 {
		return false, 0, nil
	}

	removed, err := s.rooms.DeleteIfInactive(ctx, room.AreaID, idleBefore)
	if err != nil {
		return false, 0, err
	}
	if !removed {
		// Gone, or touched since the listing.
		return false, 0, nil
	}
	deleted, err := s.messages.DeleteByRoom(ctx, room.AreaID)
	if err != nil {
		return false, 0, err
	}
	metrics.SweepDeletions.WithLabelValues(JobPruneRooms, "room").Inc()
	metrics.SweepDeletions.WithLabelValues(JobPruneRooms, "message").Add(float64(deleted))

	s.logger.Info(logging.Sweeper, logging.PruneRooms, "inactive room deleted", map[logging.ExtraKey]any{
		logging.AreaID: room.AreaID,
		logging.Count:  deleted,
	})

	if s.events != nil {
		if err := s.events.PublishRoomDeleted(ctx, room.AreaID, ReasonInactive, deleted, now); err != nil {
			s.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish room.deleted", map[logging.ExtraKey]any{
				logging.AreaID:       room.AreaID,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
	return true, deleted, nil
}

type roomFunc func(ctx context.Context, room domain.Room) (changed bool, n int64, err error)

// sweep runs fn for every matching room. A failing room is logged and counted; only a
// failed listing or a cancelled context ends the run early.
func (s *Sweeper) sweep(ctx context.Context, job string, sub logging.SubCategory, filter domain.RoomFilter, fn roomFunc) (Report, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}()

	var report Report
	rooms, err := s.rooms.List(ctx, filter)
	if err != nil {
		s.logger.Error(logging.Sweeper, sub, "failed to list rooms", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return report, err
	}

	for _, room := range rooms {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}
		report.Rooms++

		changed, n, err := fn(ctx, room)
		if err != nil {
			report.Failures++
			metrics.SweepFailures.WithLabelValues(job).Inc()
			s.logger.Error(logging.Sweeper, sub, "room sweep failed", map[logging.ExtraKey]any{
				logging.AreaID:       room.AreaID,
				logging.ErrorMessage: err.Error(),
			})
			continue
		}
		if changed {
			report.Changed++
		}
		report.Deleted += n
	}

	s.logger.Info(logging.Sweeper, sub, "sweep finished", map[logging.ExtraKey]any{
		logging.Count:    report.Changed,
		"Rooms":          report.Rooms,
		"Deleted":        report.Deleted,
		"Failures":       report.Failures,
		logging.Duration: time.Since(start).String(),
	})
	return report, nil
}

// Package chat runs read-decide-write cycles for rooms and messages and owns the live
// message feeds of one presentation session.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/clock"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
	"github.com/hilthontt/tourchat/internal/infrastructure/metrics"
	"github.com/hilthontt/tourchat/internal/infrastructure/profanity"
	"github.com/hilthontt/tourchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/tourchat/internal/moderation"
)

// Events receives notifications about applied changes. Publishing is best-effort.
type Events interface {
	PublishRoomCreated(ctx context.Context, room domain.Room) error
	PublishMessageSent(ctx context.Context, message domain.Message) error
	PublishModeration(ctx context.Context, event messaging.ModerationEventData) error
}

type Config struct {
	RoomQuota int
	// RoomQuotaWindow limits the quota to rooms created inside the window. Zero counts every
	// room the creator still owns.
	RoomQuotaWindow time.Duration
	MessageTTL      time.Duration
	KickDuration    time.Duration
	FeedLimit       int
}

func DefaultConfig() Config {
	return Config{
		RoomQuota:    10,
		MessageTTL:   domain.MessageTTL,
		KickDuration: domain.KickDuration,
		FeedLimit:    domain.FeedLimit,
	}
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// WithMessageLimiter limits messages per actor.
func WithMessageLimiter(l ratelimiter.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithProfanityFilter(f *profanity.Filter) Option {
	return func(s *Service) { s.profanity = f }
}

func WithAuditLog(a domain.RoomAuditRepository) Option {
	return func(s *Service) { s.audit = a }
}

type Service struct {
	rooms     domain.RoomRepository
	messages  domain.MessageRepository
	audit     domain.RoomAuditRepository
	engine    *moderation.Engine
	clock     clock.Clock
	logger    logging.Logger
	events    Events
	limiter   ratelimiter.Limiter
	profanity *profanity.Filter
	cfg       Config
	feeds     *feedRegistry
}

func NewService(rooms domain.RoomRepository, messages domain.MessageRepository, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.RoomQuota <= 0 {
		cfg.RoomQuota = def.RoomQuota
	}
	if cfg.MessageTTL <= 0 {
		cfg.MessageTTL = def.MessageTTL
	}
	if cfg.KickDuration <= 0 {
		cfg.KickDuration = def.KickDuration
	}
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = def.FeedLimit
	}

	s := &Service{
		rooms:    rooms,
		messages: messages,
		engine:   moderation.NewEngine(cfg.KickDuration),
		clock:    clock.Real(),
		logger:   logging.NewNop(),
		cfg:      cfg,
		feeds:    newFeedRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns a Service that shares stores and limits with s but owns its own feed
// registry. Each presentation connection gets one.
func (s *Service) Session() *Service {
	cp := *s
	cp.feeds = newFeedRegistry()
	return &cp
}

// GetOrCreateRoom returns the room for areaID, creating it for an authenticated actor
// when absent. An existing room gets its lastActivityAt bumped.
func (s *Service) GetOrCreateRoom(ctx context.Context, areaID, areaName string, actor *domain.Identity) (*domain.Room, error) {
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return nil, err
	}
	areaName = strings.TrimSpace(areaName)
	if err := domain.ValidateAreaName(areaName); err != nil {
		return nil, err
	}

	room, err := s.rooms.Get(ctx, id)
	switch {
	case err == nil:
		return s.touch(ctx, room)
	case !errors.Is(err, domain.ErrRoomNotFound):
		return nil, err
	}

	if !actor.Authenticated() {
		return nil, domain.NotAuthenticated()
	}

	now := s.clock.Now()
	var since time.Time
	if s.cfg.RoomQuotaWindow > 0 {
		since = now.Add(-s.cfg.RoomQuotaWindow)
	}
	owned, err := s.rooms.CountByCreator(ctx, actor.ID, since, time.Time{})
	if err != nil {
		return nil, err
	}
	if owned >= int64(s.cfg.RoomQuota) {
		s.logger.Warn(logging.Chat, logging.RoomLifecycle, "room quota reached", map[logging.ExtraKey]any{
			logging.Actor:  actor.ID,
			logging.AreaID: id,
			logging.Count:  owned,
		})
		return nil, domain.Denied(domain.ReasonRoomQuota)
	}

	room = domain.NewRoom(id, areaName, actor, now)
	if err := s.rooms.Create(ctx, room); err != nil {
		if !errors.Is(err, domain.ErrRoomAlreadyExists) {
			return nil, err
		}
		// Lost the creation race; the winner's room is the room.
		existing, err := s.rooms.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.touch(ctx, existing)
	}

	metrics.RoomsCreated.Inc()
	s.logger.Info(logging.Chat, logging.RoomLifecycle, "room created", map[logging.ExtraKey]any{
		logging.AreaID: id,
		logging.Actor:  actor.ID,
	})

	if s.events != nil {
		if err := s.events.PublishRoomCreated(ctx, *room); err != nil {
			s.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish room.created", map[logging.ExtraKey]any{
				logging.AreaID:       id,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
	return room, nil
}

func (s *Service) touch(ctx context.Context, room *domain.Room) (*domain.Room, error) {
	now := s.clock.Now()
	if err := s.rooms.Patch(ctx, room.AreaID, domain.TouchPatch(now)); err != nil {
		return nil, err
	}
	room.LastActivityAt = now
	return room, nil
}

// GetRoom reads a room snapshot without side effects.
func (s *Service) GetRoom(ctx context.Context, areaID string) (*domain.Room, error) {
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return nil, err
	}
	return s.rooms.Get(ctx, id)
}

// SendMessage appends a message that expires after the configured TTL. The activity bump
// and message counter are written after the append and may lag behind on failure.
func (s *Service) SendMessage(ctx context.Context, areaID, text string, actor *domain.Identity) (*domain.Message, error) {
	if !actor.Authenticated() {
		return nil, domain.NotAuthenticated()
	}
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return nil, err
	}
	text, err = domain.NormalizeMessageText(text)
	if err != nil {
		return nil, err
	}
	if s.profanity != nil && s.profanity.ContainsProfanity(text) {
		return nil, domain.NewValidationError("text", errors.New("contains inappropriate language"))
	}
	if s.limiter != nil && !s.limiter.Allow(actor.ID) {
		metrics.RateLimitHits.WithLabelValues("messages").Inc()
		return nil, domain.Denied(domain.ReasonMessageRate)
	}

	room, err := s.loadRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	decision := s.engine.Decide(moderation.Request{
		Action: moderation.ActionSendMessage,
		Room:   room,
		Actor:  actor.ID,
		Now:    now,
	})
	s.observe(moderation.ActionSendMessage, decision)
	if err := decision.Err(); err != nil {
		return nil, err
	}

	msg := domain.NewMessage(id, text, actor, now)
	msg.ExpiresAt = now.Add(s.cfg.MessageTTL)
	msgID, err := s.messages.Add(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = msgID
	metrics.MessagesSent.Inc()

	bump := domain.TouchPatch(now).Increment(domain.FieldMessageCount, 1)
	if err := s.rooms.Patch(ctx, id, bump); err != nil {
		s.logger.Warn(logging.Chat, logging.SendMessage, "message stored but room counters not updated", map[logging.ExtraKey]any{
			logging.AreaID:       id,
			logging.MessageID:    msgID,
			logging.ErrorMessage: err.Error(),
		})
	}

	if s.events != nil {
		if err := s.events.PublishMessageSent(ctx, *msg); err != nil {
			s.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish message.sent", map[logging.ExtraKey]any{
				logging.AreaID:       id,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
	return msg, nil
}

// loadRoom returns a nil room, not an error, when the room is absent so that the engine
// reports it with the usual precedence.
func (s *Service) loadRoom(ctx context.Context, areaID string) (*domain.Room, error) {
	room, err := s.rooms.Get(ctx, areaID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil
	}
	return room, err
}

func (s *Service) PromoteToAdmin(ctx context.Context, areaID string, actor *domain.Identity, target string) error {
	return s.Moderate(ctx, moderation.ActionPromoteToAdmin, areaID, actor, target)
}

func (s *Service) DemoteAdmin(ctx context.Context, areaID string, actor *domain.Identity, target string) error {
	return s.Moderate(ctx, moderation.ActionDemoteAdmin, areaID, actor, target)
}

func (s *Service) BanUser(ctx context.Context, areaID string, actor *domain.Identity, target string) error {
	return s.Moderate(ctx, moderation.ActionBanUser, areaID, actor, target)
}

func (s *Service) UnbanUser(ctx context.Context, areaID string, actor *domain.Identity, target string) error {
	return s.Moderate(ctx, moderation.ActionUnbanUser, areaID, actor, target)
}

func (s *Service) KickUser(ctx context.Context, areaID string, actor *domain.Identity, target string) error {
	return s.Moderate(ctx, moderation.ActionKickUser, areaID, actor, target)
}

func (s *Service) AddMasterAdmin(ctx context.Context, areaID string, actor *domain.Identity, target string) error {
	return s.Moderate(ctx, moderation.ActionAddMasterAdmin, areaID, actor, target)
}

func (s *Service) RemoveMasterAdmin(ctx context.Context, areaID string, actor *domain.Identity, target string) error {
	return s.Moderate(ctx, moderation.ActionRemoveMasterAdmin, areaID, actor, target)
}

func (s *Service) DeleteMessage(ctx context.Context, areaID string, actor *domain.Identity, messageID string) error {
	return s.apply(ctx, moderation.ActionDeleteMessage, areaID, actor, "", strings.TrimSpace(messageID))
}

// Moderate applies a targeted moderation action. Only actions accepted by
// moderation.ParseAction are allowed here.
func (s *Service) Moderate(ctx context.Context, action moderation.Action, areaID string, actor *domain.Identity, target string) error {
	if _, ok := moderation.ParseAction(string(action)); !ok {
		return domain.Denied(domain.ReasonUnknownAction)
	}
	return s.apply(ctx, action, areaID, actor, strings.TrimSpace(target), "")
}

func (s *Service) apply(ctx context.Context, action moderation.Action, areaID string, actor *domain.Identity, target, messageID string) error {
	if !actor.Authenticated() {
		return domain.NotAuthenticated()
	}
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return err
	}

	room, err := s.loadRoom(ctx, id)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	decision := s.engine.Decide(moderation.Request{
		Action:    action,
		Room:      room,
		Actor:     actor.ID,
		Target:    target,
		MessageID: messageID,
		Now:       now,
	})
	s.observe(action, decision)
	if err := decision.Err(); err != nil {
		s.logger.Debug(logging.Moderation, logging.Decision, "moderation denied", map[logging.ExtraKey]any{
			logging.AreaID: id,
			logging.Action: string(action),
			logging.Actor:  actor.ID,
			logging.Target: target,
			logging.Reason: string(decision.Reason),
		})
		return err
	}

	if decision.DeleteMessageID != "" {
		if err := s.messages.Delete(ctx, id, decision.DeleteMessageID); err != nil {
			return err
		}
	}
	if !decision.Patch.Empty() {
		if err := s.rooms.Patch(ctx, id, decision.Patch); err != nil {
			return err
		}
	}

	s.logger.Info(logging.Moderation, logging.Decision, "moderation applied", map[logging.ExtraKey]any{
		logging.AreaID:    id,
		logging.Action:    string(action),
		logging.Actor:     actor.ID,
		logging.Target:    target,
		logging.MessageID: messageID,
	})

	if s.events != nil {
		event := messaging.ModerationEventData{
			RoomID:    id,
			Action:    string(action.AuditEvent()),
			Actor:     actor.ID,
			Target:    target,
			MessageID: messageID,
			At:        now,
		}
		if err := s.events.PublishModeration(ctx, event); err != nil {
			s.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish moderation event", map[logging.ExtraKey]any{
				logging.AreaID:       id,
				logging.Action:       string(action),
				logging.ErrorMessage: err.Error(),
			})
		}
	}
	return nil
}

func (s *Service) observe(action moderation.Action, d moderation.Decision) {
	outcome := "allow"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	metrics.ModerationDecisions.WithLabelValues(string(action), outcome).Inc()
}

// RecentActivity returns the newest audit entries of a room. Admin tier only.
func (s *Service) RecentActivity(ctx context.Context, areaID string, actor *domain.Identity, limit int) ([]domain.RoomAuditLog, error) {
	if !actor.Authenticated() {
		return nil, domain.NotAuthenticated()
	}
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return nil, err
	}
	room, err := s.loadRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case room == nil:
		return nil, domain.Denied(domain.ReasonRoomNotFound)
	case room.IsBanned(actor.ID):
		return nil, domain.Denied(domain.ReasonActorBanned)
	case !domain.EffectiveRole(room, actor.ID).AtLeast(domain.RoleAdmin):
		return nil, domain.Denied(domain.ReasonRequiresAdmin)
	}
	if s.audit == nil {
		return []domain.RoomAuditLog{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.GetByRoomID(ctx, id, limit)
}

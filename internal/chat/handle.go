package chat

import (
	"context"
	"sync"

	"github.com/hilthontt/tourchat/internal/domain"
)

// Handle binds one actor to one open room for the presentation layer. It keeps a room
// snapshot for the role helpers and refreshes it after every successful action.
type Handle struct {
	svc    *Service
	actor  *domain.Identity
	areaID string

	mu   sync.RWMutex
	room *domain.Room
}

// OpenRoom gets or creates the room and returns a handle with its own feed session.
func (s *Service) OpenRoom(ctx context.Context, areaID, areaName string, actor *domain.Identity) (*Handle, error) {
	room, err := s.GetOrCreateRoom(ctx, areaID, areaName, actor)
	if err != nil {
		return nil, err
	}
	return &Handle{
		svc:    s.Session(),
		actor:  actor,
		areaID: room.AreaID,
		room:   room,
	}, nil
}

func (h *Handle) AreaID() string {
	return h.areaID
}

// Room returns a copy of the latest snapshot.
func (h *Handle) Room() *domain.Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.room.Clone()
}

// Refresh re-reads the room snapshot.
func (h *Handle) Refresh(ctx context.Context) error {
	room, err := h.svc.GetRoom(ctx, h.areaID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.room = room
	h.mu.Unlock()
	return nil
}

func (h *Handle) after(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	// A stale snapshot only affects the role helpers; the action itself succeeded.
	_ = h.Refresh(ctx)
	return nil
}

func (h *Handle) Send(ctx context.Context, text string) (*domain.Message, error) {
	return h.svc.SendMessage(ctx, h.areaID, text, h.actor)
}

func (h *Handle) Subscribe(ctx context.Context, fn func([]domain.Message)) (func(), error) {
	return h.svc.SubscribeToMessages(ctx, h.areaID, fn)
}

func (h *Handle) Unsubscribe() {
	h.svc.Unsubscribe(h.areaID)
}

func (h *Handle) Promote(ctx context.Context, target string) error {
	return h.after(ctx, h.svc.PromoteToAdmin(ctx, h.areaID, h.actor, target))
}

func (h *Handle) Demote(ctx context.Context, target string) error {
	return h.after(ctx, h.svc.DemoteAdmin(ctx, h.areaID, h.actor, target))
}

func (h *Handle) Ban(ctx context.Context, target string) error {
	return h.after(ctx, h.svc.BanUser(ctx, h.areaID, h.actor, target))
}

func (h *Handle) Unban(ctx context.Context, target string) error {
	return h.after(ctx, h.svc.UnbanUser(ctx, h.areaID, h.actor, target))
}

func (h *Handle) Kick(ctx context.Context, target string) error {
	return h.after(ctx, h.svc.KickUser(ctx, h.areaID, h.actor, target))
}

func (h *Handle) DeleteMessage(ctx context.Context, messageID string) error {
	return h.after(ctx, h.svc.DeleteMessage(ctx, h.areaID, h.actor, messageID))
}

func (h *Handle) AddMasterAdmin(ctx context.Context, target string) error {
	return h.after(ctx, h.svc.AddMasterAdmin(ctx, h.areaID, h.actor, target))
}

func (h *Handle) RemoveMasterAdmin(ctx context.Context, target string) error {
	return h.after(ctx, h.svc.RemoveMasterAdmin(ctx, h.areaID, h.actor, target))
}

func (h *Handle) IsAdmin(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.room.IsAdmin(identity)
}

func (h *Handle) IsMasterAdmin(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.room.IsMasterAdmin(identity)
}

func (h *Handle) IsBanned(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.room.IsBanned(identity)
}

// Close releases the handle's feeds.
func (h *Handle) Close() {
	h.svc.Close()
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
)

type roomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

// NewRoomRepository returns a process-local room store. Every read hands out a copy.
func NewRoomRepository() domain.RoomRepository {
	return &roomRepository{
		rooms: make(map[string]*domain.Room),
	}
}

func (r *roomRepository) Get(ctx context.Context, areaID string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[areaID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil || room.AreaID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.AreaID]; exists {
		return domain.ErrRoomAlreadyExists
	}
	r.rooms[room.AreaID] = room.Clone()
	return nil
}

func (r *roomRepository) Patch(ctx context.Context, areaID string, patch domain.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[areaID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	applyPatch(room, patch)
	return nil
}

func (r *roomRepository) Delete(ctx context.Context, areaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[areaID]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(r.rooms, areaID)
	return nil
}

func (r *roomRepository) DeleteIfInactive(ctx context.Context, areaID string, before time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[areaID]
	if !ok || !room.LastActivityAt.Before(before) {
		return false, nil
	}
	delete(r.rooms, areaID)
	return true, nil
}

func (r *roomRepository) List(ctx context.Context, filter domain.RoomFilter) ([]domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if filter.Matches(room) {
			out = append(out, *room.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AreaID < out[j].AreaID })
	return out, nil
}

func (r *roomRepository) CountByCreator(ctx context.Context, creator string, from, until time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter := domain.RoomFilter{CreatedBy: creator, CreatedAfter: from, CreatedBefore: until}
	var n int64
	for _, room := range r.rooms {
		if filter.Matches(room) {
			n++
		}
	}
	return n, nil
}

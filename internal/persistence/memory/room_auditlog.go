package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
)

type roomAuditLogRepository struct {
	mu   sync.RWMutex
	logs []domain.RoomAuditLog
}

func NewRoomAuditLogRepository() domain.RoomAuditRepository {
	return &roomAuditLogRepository{}
}

func (r *roomAuditLogRepository) Log(ctx context.Context, log *domain.RoomAuditLog) error {
	r.mu.Lock()
	r.logs = append(r.logs, *log)
	r.mu.Unlock()
	return nil
}

// GetByRoomID returns the newest entries first.
func (r *roomAuditLogRepository) GetByRoomID(ctx context.Context, roomID string, limit int) ([]domain.RoomAuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.RoomAuditLog
	for _, l := range r.logs {
		if l.RoomID == roomID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *roomAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.logs[:0]
	for _, l := range r.logs {
		if !l.Timestamp.Before(before) {
			kept = append(kept, l)
		}
	}
	r.logs = kept
	return nil
}

func (r *roomAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

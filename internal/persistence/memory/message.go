package memory

import (
	"context"
	"crypto/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/oklog/ulid/v2"
)

type subscriber struct {
	id     uint64
	roomID string
	query  domain.MessageQuery
	fn     domain.MessageHandler

	// deliverMu orders deliveries; a snapshot older than the last one delivered is dropped.
	deliverMu sync.Mutex
	delivered uint64
	closed    atomic.Bool
}

func (s *subscriber) deliver(version uint64, msgs []domain.Message) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if s.closed.Load() || version <= s.delivered {
		return
	}
	s.delivered = version
	s.fn(msgs)
}

type messageRepository struct {
	mu       sync.RWMutex
	messages map[string]map[string]domain.Message // roomID -> id -> message
	subs     map[string]map[uint64]*subscriber
	nextSub  uint64
	version  uint64 // bumped on every write
	entropy  *ulid.MonotonicEntropy
}

// NewMessageRepository returns a process-local message store. Subscribers are notified
// synchronously on the writing goroutine after the write is visible, and must not write to
// the store from inside the handler.
func NewMessageRepository() domain.MessageRepository {
	return &messageRepository{
		messages: make(map[string]map[string]domain.Message),
		subs:     make(map[string]map[uint64]*subscriber),
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *messageRepository) Add(ctx context.Context, message *domain.Message) (string, error) {
	if message == nil || message.RoomID == "" {
		return "", domain.ErrInvalidInput
	}

	r.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(message.CreatedAt), r.entropy).String()
	stored := *message
	stored.ID = id

	room, ok := r.messages[stored.RoomID]
	if !ok {
		room = make(map[string]domain.Message)
		r.messages[stored.RoomID] = room
	}
	room[id] = stored
	r.version++
	r.mu.Unlock()

	r.notify(stored.RoomID)
	return id, nil
}

func (r *messageRepository) Get(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.messages[roomID][messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return &m, nil
}

func (r *messageRepository) Delete(ctx context.Context, roomID, messageID string) error {
	r.mu.Lock()
	if _, ok := r.messages[roomID][messageID]; !ok {
		r.mu.Unlock()
		return domain.ErrMessageNotFound
	}
	delete(r.messages[roomID], messageID)
	r.version++
	r.mu.Unlock()

	r.notify(roomID)
	return nil
}

func (r *messageRepository) DeleteExpired(ctx context.Context, roomID string, now time.Time) (int64, error) {
	return r.deleteWhere(roomID, func(m domain.Message) bool { return !m.Active(now) })
}

func (r *messageRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	return r.deleteWhere(roomID, func(domain.Message) bool { return true })
}

func (r *messageRepository) deleteWhere(roomID string, match func(domain.Message) bool) (int64, error) {
	r.mu.Lock()
	var n int64
	for id, m := range r.messages[roomID] {
		if match(m) {
			delete(r.messages[roomID], id)
			n++
		}
	}
	if len(r.messages[roomID]) == 0 {
		delete(r.messages, roomID)
	}
	if n > 0 {
		r.version++
	}
	r.mu.Unlock()

	if n > 0 {
		r.notify(roomID)
	}
	return n, nil
}

func (r *messageRepository) CountActive(ctx context.Context, roomID string, now time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, m := range r.messages[roomID] {
		if m.Active(now) {
			n++
		}
	}
	return n, nil
}

func (r *messageRepository) Subscribe(ctx context.Context, roomID string, query domain.MessageQuery, fn domain.MessageHandler) (domain.Subscription, error) {
	r.mu.Lock()
	r.nextSub++
	s := &subscriber{id: r.nextSub, roomID: roomID, query: query, fn: fn}
	if r.subs[roomID] == nil {
		r.subs[roomID] = make(map[uint64]*subscriber)
	}
	r.subs[roomID][s.id] = s
	snapshot := r.snapshotLocked(roomID, query)
	// Versions are offset by one so that an untouched store's first snapshot is delivered.
	version := r.version + 1
	r.mu.Unlock()

	s.deliver(version, snapshot)

	return &subscription{repo: r, roomID: roomID, id: s.id}, nil
}

// snapshotLocked applies the query filter, the feed order and the limit.
func (r *messageRepository) snapshotLocked(roomID string, query domain.MessageQuery) []domain.Message {
	out := make([]domain.Message, 0, len(r.messages[roomID]))
	for _, m := range r.messages[roomID] {
		if query.ActiveAt.IsZero() || m.Active(query.ActiveAt) {
			out = append(out, m)
		}
	}
	domain.SortFeedOrder(out)
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out
}

// notify delivers a fresh snapshot to every subscriber of the room. Concurrent writers may
// finish in any order; each subscriber still ends on the newest snapshot.
func (r *messageRepository) notify(roomID string) {
	type delivery struct {
		sub  *subscriber
		msgs []domain.Message
	}

	r.mu.RLock()
	version := r.version + 1
	deliveries := make([]delivery, 0, len(r.subs[roomID]))
	for _, s := range r.subs[roomID] {
		deliveries = append(deliveries, delivery{sub: s, msgs: r.snapshotLocked(roomID, s.query)})
	}
	r.mu.RUnlock()

	for _, d := range deliveries {
		d.sub.deliver(version, slices.Clone(d.msgs))
	}
}

func (r *messageRepository) unsubscribe(roomID string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.subs[roomID][id]; ok {
		s.closed.Store(true)
	}
	delete(r.subs[roomID], id)
	if len(r.subs[roomID]) == 0 {
		delete(r.subs, roomID)
	}
}

type subscription struct {
	repo   *messageRepository
	roomID string
	id     uint64
	once   sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.repo.unsubscribe(s.roomID, s.id)
	})
}

package chat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/metrics"
)

// feed is one live subscription. Once closed it never delivers again, even if the store
// has a callback in flight.
type feed struct {
	mu     sync.Mutex
	sub    domain.Subscription
	closed atomic.Bool
}

func (f *feed) attach(sub domain.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		sub.Close()
		return
	}
	f.sub = sub
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Swap(true) {
		return
	}
	if f.sub != nil {
		f.sub.Close()
	}
	metrics.ActiveSubscriptions.Dec()
}

// feedRegistry holds at most one live feed per area. The mutex only guards the map.
type feedRegistry struct {
	mu    sync.Mutex
	feeds map[string]*feed
}

func newFeedRegistry() *feedRegistry {
	return &feedRegistry{feeds: make(map[string]*feed)}
}

func (r *feedRegistry) take(areaID string) *feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.feeds[areaID]
	delete(r.feeds, areaID)
	return f
}

// put registers f and returns whatever it displaced.
func (r *feedRegistry) put(areaID string, f *feed) *feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.feeds[areaID]
	r.feeds[areaID] = f
	return prev
}

func (r *feedRegistry) remove(areaID string, f *feed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feeds[areaID] == f {
		delete(r.feeds, areaID)
	}
}

func (r *feedRegistry) drain() []*feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*feed, 0, len(r.feeds))
	for id, f := range r.feeds {
		out = append(out, f)
		delete(r.feeds, id)
	}
	return out
}

func (r *feedRegistry) active(areaID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.feeds[areaID]
	return ok
}

// SubscribeToMessages opens a live feed of the room's unexpired messages, delivered oldest
// first. An existing feed for the same area in this session is torn down first. The returned
// function unsubscribes and is safe to call any number of times.
func (s *Service) SubscribeToMessages(ctx context.Context, areaID string, fn func([]domain.Message)) (func(), error) {
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return nil, err
	}

	if prev := s.feeds.take(id); prev != nil {
		prev.close()
	}

	f := &feed{}
	metrics.ActiveSubscriptions.Inc()

	deliver := func(batch []domain.Message) {
		if f.closed.Load() {
			return
		}
		// The store filtered against the time the feed opened; filter again now.
		fn(domain.Chronological(batch, s.clock.Now()))
	}

	sub, err := s.messages.Subscribe(ctx, id, domain.MessageQuery{
		ActiveAt: s.clock.Now(),
		Limit:    s.cfg.FeedLimit,
	}, deliver)
	if err != nil {
		f.close()
		return nil, err
	}
	f.attach(sub)

	if prev := s.feeds.put(id, f); prev != nil && prev != f {
		prev.close()
	}

	s.logger.Debug(logging.Chat, logging.Subscription, "feed opened", map[logging.ExtraKey]any{
		logging.AreaID: id,
	})

	return func() {
		s.feeds.remove(id, f)
		f.close()
	}, nil
}

// Unsubscribe closes the session's feed for areaID, if any.
func (s *Service) Unsubscribe(areaID string) {
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return
	}
	if f := s.feeds.take(id); f != nil {
		f.close()
	}
}

// Subscribed reports whether the session has a live feed for areaID.
func (s *Service) Subscribed(areaID string) bool {
	id, err := domain.SanitizeAreaID(areaID)
	if err != nil {
		return false
	}
	return s.feeds.active(id)
}

// Close tears down every feed of the session.
func (s *Service) Close() {
	for _, f := range s.feeds.drain() {
		f.close()
	}
}

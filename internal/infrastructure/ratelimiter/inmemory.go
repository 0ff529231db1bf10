package ratelimiter

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     int
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemory is a process-local GetterSetter. Expired keys are evicted on read and by a
// background sweep.
type InMemory struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	stop      chan struct{}
	closeOnce sync.Once
}

func NewInMemory() *InMemory {
	m := &InMemory{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	go m.evictLoop(time.Minute)
	return m
}

func (m *InMemory) Get(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return 0, ErrCacheMiss
	}
	if entry.expired(time.Now()) {
		delete(m.entries, key)
		return 0, ErrCacheMiss
	}
	return entry.value, nil
}

func (m *InMemory) Set(key string, value int) error {
	return m.SetWithExpiration(key, value, 0)
}

func (m *InMemory) SetWithExpiration(key string, value int, expiration time.Duration) error {
	entry := memoryEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *InMemory) evictLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evict(time.Now())
		case <-m.stop:
			return
		}
	}
}

func (m *InMemory) evict(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
		}
	}
}

func (m *InMemory) Close() error {
	m.closeOnce.Do(func() { close(m.stop) })
	return nil
}

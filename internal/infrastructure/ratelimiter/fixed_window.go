package ratelimiter

import (
	"sync"
	"sync/atomic"
	"time"
)

// FixedWindow counts events per key inside aligned windows. Used for coarse limits
// such as room creation attempts per client address.
type FixedWindow struct {
	counts      sync.Map // string -> *windowCounter
	limit       int64
	window      time.Duration
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type windowCounter struct {
	count   atomic.Int64
	resetAt atomic.Value // time.Time
	mu      sync.Mutex
}

func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	fw := &FixedWindow{
		limit:       int64(limit),
		window:      window,
		cleanupTick: time.NewTicker(window),
		done:        make(chan struct{}),
	}
	go fw.cleanupLoop()
	return fw
}

// Allow records one event for key. When the window is full it returns false and the
// time left until the window resets.
func (fw *FixedWindow) Allow(key string) (bool, time.Duration) {
	now := time.Now()
	nextReset := now.Truncate(fw.window).Add(fw.window)

	val, _ := fw.counts.LoadOrStore(key, &windowCounter{})
	c := val.(*windowCounter)

	if reset, ok := c.resetAt.Load().(time.Time); ok && now.Before(reset) {
		return fw.take(c, reset)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if reset, ok := c.resetAt.Load().(time.Time); ok && now.Before(reset) {
		return fw.take(c, reset)
	}

	c.count.Store(1)
	c.resetAt.Store(nextReset)
	return true, 0
}

func (fw *FixedWindow) take(c *windowCounter, reset time.Time) (bool, time.Duration) {
	if c.count.Add(1) > fw.limit {
		c.count.Add(-1)
		return false, time.Until(reset)
	}
	return true, 0
}

func (fw *FixedWindow) cleanupLoop() {
	for {
		select {
		case <-fw.cleanupTick.C:
			now := time.Now()
			fw.counts.Range(func(key, value any) bool {
				if reset, ok := value.(*windowCounter).resetAt.Load().(time.Time); ok && now.After(reset) {
					fw.counts.Delete(key)
				}
				return true
			})
		case <-fw.done:
			return
		}
	}
}

func (fw *FixedWindow) Close() {
	fw.closeOnce.Do(func() {
		close(fw.done)
		fw.cleanupTick.Stop()
	})
}

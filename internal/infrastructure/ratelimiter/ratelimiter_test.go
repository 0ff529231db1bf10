package ratelimiter

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type manualTime struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualTime) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func TestTokenBucketBurstAndRefill(t *testing.T) {
	clock := &manualTime{now: time.Unix(1_700_000_000, 0)}
	cache := NewInMemory()
	defer cache.Close()

	l := New(Options{MaxRatePerSecond: 1, MaxBurst: 2, Cache: cache, CacheTTL: time.Hour, Now: clock.Now})

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatal("expected burst of two to be allowed")
	}
	if l.Allow("u1") {
		t.Fatal("expected third call to be limited")
	}
	if !l.Allow("u2") {
		t.Fatal("keys must not share buckets")
	}

	clock.advance(500 * time.Millisecond)
	if l.Allow("u1") {
		t.Fatal("half a token must not be spendable")
	}

	clock.advance(600 * time.Millisecond)
	if !l.Allow("u1") {
		t.Fatal("expected one token after a second")
	}
}

func TestRemainingNeverExceedsBurst(t *testing.T) {
	clock := &manualTime{now: time.Unix(1_700_000_000, 0)}
	l := New(Options{MaxRatePerSecond: 10, MaxBurst: 3, Now: clock.Now})

	l.Allow("k")
	clock.advance(time.Hour)
	if got := l.Remaining("k"); got != 3 {
		t.Fatalf("expected full bucket of 3, got %d", got)
	}
}

func TestGetSourceKey(t *testing.T) {
	l := New(Options{MaxRatePerSecond: 1})

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := l.GetSourceKey(r); got != "10.0.0.1:1234" {
		t.Fatalf("expected remote address fallback, got %q", got)
	}

	r.Header.Set("X-User-Id", "alice")
	if got := l.GetSourceKey(r); got != "alice" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestFixedWindow(t *testing.T) {
	fw := NewFixedWindow(2, time.Hour)
	defer fw.Close()

	for i := 0; i < 2; i++ {
		if ok, _ := fw.Allow("ip"); !ok {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	ok, retry := fw.Allow("ip")
	if ok {
		t.Fatal("expected window to be full")
	}
	if retry <= 0 {
		t.Fatalf("expected positive retry, got %s", retry)
	}
}

func TestInMemoryExpiry(t *testing.T) {
	m := NewInMemory()
	defer m.Close()

	_ = m.SetWithExpiration("k", 7, time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, err := m.Get("k"); err != ErrCacheMiss {
		t.Fatalf("expected miss after expiry, got %v", err)
	}

	_ = m.Set("p", 1)
	if v, err := m.Get("p"); err != nil || v != 1 {
		t.Fatalf("expected persistent value, got %d %v", v, err)
	}
}

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]domain.Message
}

func (r *recorder) fn(batch []domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) last() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

func texts(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestSubscribeDeliversChronologically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "owner")

	for _, text := range []string{"one", "two", "three"} {
		if _, err := f.svc.SendMessage(ctx, "paris", text, user("u")); err != nil {
			t.Fatalf("send: %v", err)
		}
		f.clock.Advance(time.Second)
	}

	rec := &recorder{}
	unsubscribe, err := f.svc.SubscribeToMessages(ctx, "Paris", rec.fn)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	got := texts(rec.last())
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if _, err := f.svc.SendMessage(ctx, "paris", "four", user("u")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if last := texts(rec.last()); len(last) != 4 || last[3] != "four" {
		t.Fatalf("expected live delivery of the new message, got %v", last)
	}
}

func TestExpiredMessagesAreNeverDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "owner")

	if _, err := f.svc.SendMessage(ctx, "paris", "old", user("u")); err != nil {
		t.Fatalf("send: %v", err)
	}

	f.clock.Advance(time.Second)
	rec := &recorder{}
	unsubscribe, err := f.svc.SubscribeToMessages(ctx, "paris", rec.fn)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()
	if got := texts(rec.last()); len(got) != 1 || got[0] != "old" {
		t.Fatalf("expected the fresh message, got %v", got)
	}

	// The store query still matches "old" because it was bound when the feed opened; the
	// delivery-time filter must drop it.
	f.clock.Advance(domain.MessageTTL)
	if _, err := f.svc.SendMessage(ctx, "paris", "new", user("u")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := texts(rec.last()); len(got) != 1 || got[0] != "new" {
		t.Fatalf("expected only the unexpired message, got %v", got)
	}

	fresh := &recorder{}
	unsubscribeFresh, err := f.svc.Session().SubscribeToMessages(ctx, "paris", fresh.fn)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribeFresh()
	for _, m := range fresh.last() {
		if !m.ExpiresAt.After(f.clock.Now()) {
			t.Fatalf("expired message %q delivered", m.Text)
		}
	}
}

func TestResubscribeTearsDownPreviousFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "owner")

	first := &recorder{}
	if _, err := f.svc.SubscribeToMessages(ctx, "paris", first.fn); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	second := &recorder{}
	unsubscribe, err := f.svc.SubscribeToMessages(ctx, "paris", second.fn)
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	defer unsubscribe()

	before := first.count()
	if _, err := f.svc.SendMessage(ctx, "paris", "hello", user("u")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if first.count() != before {
		t.Fatal("the replaced feed must not receive deliveries")
	}
	if second.count() != 2 {
		t.Fatalf("expected snapshot plus live delivery, got %d", second.count())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "owner")

	rec := &recorder{}
	unsubscribe, err := f.svc.SubscribeToMessages(ctx, "paris", rec.fn)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !f.svc.Subscribed("paris") {
		t.Fatal("expected an active feed")
	}

	unsubscribe()
	unsubscribe()
	f.svc.Unsubscribe("paris")
	f.svc.Unsubscribe("nowhere")

	if f.svc.Subscribed("paris") {
		t.Fatal("feed still registered")
	}
	before := rec.count()
	if _, err := f.svc.SendMessage(ctx, "paris", "hello", user("u")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if rec.count() != before {
		t.Fatal("closed feed received a delivery")
	}
}

func TestSessionsHaveIndependentFeeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "owner")

	a, b := f.svc.Session(), f.svc.Session()
	recA, recB := &recorder{}, &recorder{}
	if _, err := a.SubscribeToMessages(ctx, "paris", recA.fn); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if _, err := b.SubscribeToMessages(ctx, "paris", recB.fn); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	a.Close()
	if _, err := f.svc.SendMessage(ctx, "paris", "hello", user("u")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if recA.count() != 1 {
		t.Fatal("closed session received a delivery")
	}
	if recB.count() != 2 {
		t.Fatalf("other session lost its feed, got %d deliveries", recB.count())
	}
	b.Close()
}

func TestHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.OpenRoom(ctx, "Paris", "Paris", user("owner"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()
	if err := f.rooms.Patch(ctx, "paris", domain.Patch{}.AddToSet(domain.FieldMasterAdmins, "owner")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := h.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if h.AreaID() != "paris" || !h.IsAdmin("owner") || !h.IsMasterAdmin("owner") {
		t.Fatalf("unexpected snapshot %+v", h.Room())
	}

	if err := h.Promote(ctx, "u"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !h.IsAdmin("u") {
		t.Fatal("snapshot not refreshed after promote")
	}
	if err := h.Ban(ctx, "u"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if !h.IsBanned("u") || h.IsAdmin("u") {
		t.Fatal("snapshot not refreshed after ban")
	}

	rec := &recorder{}
	if _, err := h.Subscribe(ctx, rec.fn); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msg, err := h.Send(ctx, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := h.DeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := rec.last(); len(got) != 0 {
		t.Fatalf("expected the deletion to reach the feed, got %v", texts(got))
	}

	h.Unsubscribe()
	if f.svc.Subscribed("paris") {
		t.Fatal("handle feeds must not leak into the parent session")
	}
}

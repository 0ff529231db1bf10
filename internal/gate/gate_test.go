package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/clock"
	"github.com/hilthontt/tourchat/internal/infrastructure/events"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
	"github.com/hilthontt/tourchat/internal/persistence/memory"
	"github.com/hilthontt/tourchat/internal/sweeper"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type rejection struct {
	room   string
	reason string
}

type recordingEvents struct {
	mu       sync.Mutex
	rejected []rejection
}

func (r *recordingEvents) PublishRoomRejected(ctx context.Context, room domain.Room, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, rejection{room: room.AreaID, reason: reason})
	return nil
}

type countingPruner struct {
	calls int
	err   error
}

func (p *countingPruner) PruneInactiveRooms(ctx context.Context) (sweeper.Report, error) {
	p.calls++
	return sweeper.Report{}, p.err
}

type fixture struct {
	rooms    domain.RoomRepository
	messages domain.MessageRepository
	clock    *clock.FakeClock
	events   *recordingEvents
	pruner   *countingPruner
	gate     *Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rooms:    memory.NewRoomRepository(),
		messages: memory.NewMessageRepository(),
		clock:    clock.Fake(t0),
		events:   &recordingEvents{},
		pruner:   &countingPruner{},
	}
	f.gate = New(f.rooms, f.messages, DefaultConfig(),
		WithClock(f.clock), WithEvents(f.events), WithPruner(f.pruner))
	return f
}

func (f *fixture) create(t *testing.T, room *domain.Room) domain.Room {
	t.Helper()
	if err := f.rooms.Create(context.Background(), room); err != nil {
		t.Fatalf("create %s: %v", room.AreaID, err)
	}
	return *room
}

func TestCreatorBecomesMasterAdminAfterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := chat.NewService(f.rooms, f.messages, chat.DefaultConfig(), chat.WithClock(f.clock))

	room, err := svc.GetOrCreateRoom(ctx, "paris", "Paris", &domain.Identity{ID: "u"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !room.IsAdmin("u") || room.IsMasterAdmin("u") {
		t.Fatalf("creator must be admin but not yet master admin, got %+v", room)
	}

	if err := f.gate.Validate(ctx, *room); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := f.gate.Validate(ctx, *room); err != nil {
		t.Fatalf("second validation must be harmless: %v", err)
	}

	stored, _ := f.rooms.Get(ctx, "paris")
	if !stored.IsMasterAdmin("u") || !stored.IsAdmin("u") {
		t.Fatalf("expected creator in both role sets, got %+v", stored)
	}
	if len(stored.MasterAdmins) != 1 || len(stored.Admins) != 1 {
		t.Fatalf("role grants must be idempotent, got %+v", stored)
	}
	if f.pruner.calls != 2 {
		t.Fatalf("expected a prune pass after each validation, got %d", f.pruner.calls)
	}
	if len(f.events.rejected) != 0 {
		t.Fatalf("unexpected rejection %+v", f.events.rejected)
	}
}

func TestRejectsMalformedRooms(t *testing.T) {
	tests := []struct {
		name   string
		room   *domain.Room
		reason string
	}{
		{
			name:   "missing name",
			room:   &domain.Room{AreaID: "paris", CreatedBy: "u", CreatedAt: t0},
			reason: "areaName",
		},
		{
			name:   "missing creator",
			room:   &domain.Room{AreaID: "paris", AreaName: "Paris", CreatedAt: t0},
			reason: "createdBy",
		},
		{
			name:   "invalid id",
			room:   domain.NewRoom("Paris France", "Paris", &domain.Identity{ID: "u"}, t0),
			reason: "invalid area id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			room := f.create(t, tt.room)
			if _, err := f.messages.Add(ctx, domain.NewMessage(room.AreaID, "hi", &domain.Identity{ID: "u"}, t0)); err != nil {
				t.Fatalf("add message: %v", err)
			}

			if err := f.gate.Validate(ctx, room); err != nil {
				t.Fatalf("validate: %v", err)
			}

			if _, err := f.rooms.Get(ctx, room.AreaID); !errors.Is(err, domain.ErrRoomNotFound) {
				t.Fatalf("expected the room to be deleted, got %v", err)
			}
			if n, _ := f.messages.CountActive(ctx, room.AreaID, t0); n != 0 {
				t.Fatalf("expected the room's messages to be deleted, %d left", n)
			}
			if len(f.events.rejected) != 1 || !strings.Contains(f.events.rejected[0].reason, tt.reason) {
				t.Fatalf("expected rejection mentioning %q, got %+v", tt.reason, f.events.rejected)
			}
		})
	}
}

func TestRejectsRoomBurstFromOneCreator(t *testing.T) {
	tests := []struct {
		name  string
		order []int
	}{
		{name: "in creation order", order: []int{0, 1, 2, 3, 4, 5, 6}},
		{name: "newest first", order: []int{6, 5, 4, 3, 2, 1, 0}},
		{name: "interleaved", order: []int{3, 6, 0, 5, 1, 4, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			// An old room outside the window does not count.
			f.create(t, domain.NewRoom("old-room", "Old", &domain.Identity{ID: "u"}, t0.Add(-25*time.Hour)))

			var rooms []domain.Room
			for i := 0; i < 7; i++ {
				rooms = append(rooms, f.create(t, domain.NewRoom(fmt.Sprintf("area-%d", i), "Area", &domain.Identity{ID: "u"}, t0.Add(time.Duration(i)*time.Minute))))
			}
			// The gate runs well behind the burst.
			f.clock.Set(t0.Add(time.Hour))

			for _, i := range tt.order {
				if err := f.gate.Validate(ctx, rooms[i]); err != nil {
					t.Fatalf("validate area-%d: %v", i, err)
				}
			}

			for i := 0; i < 5; i++ {
				stored, err := f.rooms.Get(ctx, fmt.Sprintf("area-%d", i))
				if err != nil {
					t.Fatalf("area-%d is within the allowance and must survive: %v", i, err)
				}
				if !stored.IsMasterAdmin("u") {
					t.Fatalf("expected the creator to be master admin of area-%d", i)
				}
			}
			for i := 5; i < 7; i++ {
				if _, err := f.rooms.Get(ctx, fmt.Sprintf("area-%d", i)); !errors.Is(err, domain.ErrRoomNotFound) {
					t.Fatalf("area-%d exceeds the allowance and must be deleted, got %v", i, err)
				}
			}
			if len(f.events.rejected) != 2 {
				t.Fatalf("expected two rejections, got %+v", f.events.rejected)
			}
		})
	}
}

func TestValidateIgnoresDeletedRoom(t *testing.T) {
	f := newFixture(t)
	room := domain.NewRoom("paris", "Paris", &domain.Identity{ID: "u"}, t0)

	if err := f.gate.Validate(context.Background(), *room); err != nil {
		t.Fatalf("a room that is already gone is not an error: %v", err)
	}
	if f.pruner.calls != 0 {
		t.Fatal("nothing to prune after a no-op")
	}
}

func TestPruneFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.pruner.err = errors.New("boom")
	room := f.create(t, domain.NewRoom("paris", "Paris", &domain.Identity{ID: "u"}, t0))

	if err := f.gate.Validate(context.Background(), room); err != nil {
		t.Fatalf("prune failures must not fail validation: %v", err)
	}
}

func TestGateOverLocalBus(t *testing.T) {
	rooms := memory.NewRoomRepository()
	messages := memory.NewMessageRepository()
	audit := memory.NewRoomAuditLogRepository()
	bus := messaging.NewLocalBus(16)
	publisher := events.NewRoomPublisher(bus)
	logger := logging.NewNop()
	fake := clock.Fake(t0)

	g := New(rooms, messages, DefaultConfig(), WithClock(fake), WithEvents(publisher),
		WithPruner(sweeper.NewSweeper(rooms, messages, sweeper.DefaultConfig(), sweeper.WithClock(fake))))
	svc := chat.NewService(rooms, messages, chat.DefaultConfig(), chat.WithClock(fake), chat.WithEvents(publisher))

	consumed := make(chan error, 1)
	go func() { consumed <- events.NewRoomConsumer(bus, g, logger).Listen() }()

	if _, err := svc.GetOrCreateRoom(context.Background(), "paris", "Paris", &domain.Identity{ID: "u"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		room, err := rooms.Get(context.Background(), "paris")
		if err == nil && room.IsMasterAdmin("u") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("gate never granted master admin")
		}
		time.Sleep(10 * time.Millisecond)
	}

	bus.Close()
	if err := <-consumed; err != nil {
		t.Fatalf("consumer: %v", err)
	}
	if err := events.NewAuditConsumer(bus, audit, logger).Listen(); err != nil {
		t.Fatalf("audit consumer: %v", err)
	}
	logs, _ := audit.GetByRoomID(context.Background(), "paris", 10)
	if len(logs) != 1 || logs[0].EventType != domain.EventRoomCreated {
		t.Fatalf("expected the creation to be audited, got %+v", logs)
	}
}

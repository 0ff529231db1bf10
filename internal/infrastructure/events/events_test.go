package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
	"github.com/hilthontt/tourchat/internal/persistence/memory"
)

type recordingValidator struct {
	mu    sync.Mutex
	rooms []domain.Room
	done  chan struct{}
}

func (v *recordingValidator) Validate(ctx context.Context, room domain.Room) error {
	v.mu.Lock()
	v.rooms = append(v.rooms, room)
	v.mu.Unlock()
	v.done <- struct{}{}
	return nil
}

func TestRoomCreatedReachesValidatorAndAudit(t *testing.T) {
	bus := messaging.NewLocalBus(8)
	audit := memory.NewRoomAuditLogRepository()
	validator := &recordingValidator{done: make(chan struct{}, 1)}
	logger := logging.NewNop()

	go NewRoomConsumer(bus, validator, logger).Listen()

	auditor := NewAuditConsumer(bus, audit, logger)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	room := domain.NewRoom("paris", "Paris", &domain.Identity{ID: "u1"}, at)

	pub := NewRoomPublisher(bus)
	if err := pub.PublishRoomCreated(context.Background(), *room); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.PublishModeration(context.Background(), messaging.ModerationEventData{
		RoomID: "paris",
		Action: string(domain.EventUserBanned),
		Actor:  "u1",
		Target: "u2",
		At:     at.Add(time.Minute),
	}); err != nil {
		t.Fatalf("publish moderation: %v", err)
	}

	select {
	case <-validator.done:
	case <-time.After(2 * time.Second):
		t.Fatal("validator never saw room.created")
	}

	bus.Close()
	if err := auditor.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	logs, _ := audit.GetByRoomID(context.Background(), "paris", 10)
	if len(logs) != 2 {
		t.Fatalf("expected two audit entries, got %+v", logs)
	}
	if logs[0].EventType != domain.EventUserBanned || logs[0].Target != "u2" {
		t.Fatalf("expected newest entry to be the ban, got %+v", logs[0])
	}
	if logs[1].EventType != domain.EventRoomCreated || logs[1].Actor != "u1" {
		t.Fatalf("unexpected creation entry %+v", logs[1])
	}

	validator.mu.Lock()
	defer validator.mu.Unlock()
	if len(validator.rooms) != 1 || validator.rooms[0].AreaID != "paris" {
		t.Fatalf("unexpected validated rooms %+v", validator.rooms)
	}
}

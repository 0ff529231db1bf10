package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated       RoomEventType = "room_created"
	EventRoomValidated     RoomEventType = "room_validated"
	EventRoomRejected      RoomEventType = "room_rejected"
	EventRoomPruned        RoomEventType = "room_pruned"
	EventMessageDeleted    RoomEventType = "message_deleted"
	EventAdminPromoted     RoomEventType = "admin_promoted"
	EventAdminDemoted      RoomEventType = "admin_demoted"
	EventUserBanned        RoomEventType = "user_banned"
	EventUserUnbanned      RoomEventType = "user_unbanned"
	EventUserKicked        RoomEventType = "user_kicked"
	EventMasterAdminAdded  RoomEventType = "master_admin_added"
	EventMasterAdminRemove RoomEventType = "master_admin_removed"
)

type RoomAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	RoomID    string         `bson:"room_id" json:"roomId"`
	EventType RoomEventType  `bson:"event_type" json:"eventType"`
	Actor     string         `bson:"actor,omitempty" json:"actor,omitempty"`
	Target    string         `bson:"target,omitempty" json:"target,omitempty"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type RoomAuditRepository interface {
	Log(ctx context.Context, log *RoomAuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]RoomAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func NewRoomCreatedLog(roomID, creator string, at time.Time) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: EventRoomCreated,
		Actor:     creator,
		Timestamp: at,
	}
}

func NewRoomRejectedLog(roomID, creator, reason string, at time.Time) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: EventRoomRejected,
		Actor:     creator,
		Timestamp: at,
		Metadata: map[string]any{
			"reason": reason,
		},
	}
}

func NewRoomPrunedLog(roomID string, messagesDeleted int64, at time.Time) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: EventRoomPruned,
		Timestamp: at,
		Metadata: map[string]any{
			"messages_deleted": messagesDeleted,
		},
	}
}

func NewModerationLog(roomID string, event RoomEventType, actor, target string, at time.Time) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: event,
		Actor:     actor,
		Target:    target,
		Timestamp: at,
	}
}

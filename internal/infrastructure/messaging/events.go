package messaging

import (
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/contracts"
)

const (
	RoomValidationQueue = "room_validation"
	RoomAuditQueue      = "room_audit"
	DeadLetterQueue     = "dead_letter_queue"
)

// Bindings maps each durable queue to the routing keys it receives.
var Bindings = map[string][]string{
	RoomValidationQueue: {contracts.EventRoomCreated},
	RoomAuditQueue: {
		contracts.EventRoomCreated,
		contracts.EventRoomDeleted,
		contracts.EventRoomRejected,
		contracts.EventModerationApplied,
	},
}

type RoomEventData struct {
	Room   domain.Room `json:"room"`
	Reason string      `json:"reason,omitempty"`
}

type RoomDeletedData struct {
	RoomID          string    `json:"roomId"`
	Reason          string    `json:"reason"`
	MessagesDeleted int64     `json:"messagesDeleted"`
	At              time.Time `json:"at"`
}

type MessageEventData struct {
	Message domain.Message `json:"message"`
}

type ModerationEventData struct {
	RoomID    string    `json:"roomId"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Target    string    `json:"target,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	At        time.Time `json:"at"`
}

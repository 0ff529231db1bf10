package contracts

// AmqpMessage is the envelope published on the broker.
type AmqpMessage struct {
	ID      string `json:"id"`
	ActorID string `json:"actorId"`
	Data    []byte `json:"data"`
}

// Routing keys
const (
	EventRoomCreated       = "room.created"
	EventRoomDeleted       = "room.deleted"
	EventRoomRejected      = "room.rejected"
	EventMessageSent       = "message.sent"
	EventModerationApplied = "moderation.applied"
)

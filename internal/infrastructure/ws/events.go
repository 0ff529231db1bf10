package ws

import "github.com/hilthontt/tourchat/internal/domain"

const (
	// MessagesEvent carries the full current feed of a room, oldest first.
	MessagesEvent = "messages"
	ErrorEvent    = "error"
)

type Frame struct {
	Type     string           `json:"type"`
	RoomID   string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
	Error    *ErrorPayload    `json:"error,omitempty"`
}

type ErrorPayload struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

func NewMessagesFrame(roomID string, messages []domain.Message) Frame {
	if messages == nil {
		messages = []domain.Message{}
	}
	return Frame{Type: MessagesEvent, RoomID: roomID, Messages: messages}
}

func NewErrorFrame(roomID string, reason domain.Reason, message string) Frame {
	return Frame{
		Type:   ErrorEvent,
		RoomID: roomID,
		Error:  &ErrorPayload{Reason: string(reason), Message: message},
	}
}

package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/contracts"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
)

// Broker is satisfied by messaging.RabbitMQ and messaging.LocalBus.
type Broker interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
	ConsumeMessages(queueName string, handler messaging.Handler) error
}

type RoomPublisher struct {
	broker Broker
}

func NewRoomPublisher(broker Broker) *RoomPublisher {
	return &RoomPublisher{
		broker: broker,
	}
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey, actor string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.broker.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		ID:      uuid.NewString(),
		ActorID: actor,
		Data:    data,
	})
}

func (p *RoomPublisher) PublishRoomCreated(ctx context.Context, room domain.Room) error {
	return p.publish(ctx, contracts.EventRoomCreated, room.CreatedBy, messaging.RoomEventData{Room: room})
}

func (p *RoomPublisher) PublishRoomRejected(ctx context.Context, room domain.Room, reason string) error {
	return p.publish(ctx, contracts.EventRoomRejected, room.CreatedBy, messaging.RoomEventData{Room: room, Reason: reason})
}

func (p *RoomPublisher) PublishRoomDeleted(ctx context.Context, roomID, reason string, messagesDeleted int64, at time.Time) error {
	return p.publish(ctx, contracts.EventRoomDeleted, "", messaging.RoomDeletedData{
		RoomID:          roomID,
		Reason:          reason,
		MessagesDeleted: messagesDeleted,
		At:              at,
	})
}

func (p *RoomPublisher) PublishMessageSent(ctx context.Context, message domain.Message) error {
	return p.publish(ctx, contracts.EventMessageSent, message.AuthorID, messaging.MessageEventData{Message: message})
}

func (p *RoomPublisher) PublishModeration(ctx context.Context, event messaging.ModerationEventData) error {
	return p.publish(ctx, contracts.EventModerationApplied, event.Actor, event)
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/contracts"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

// RoomValidator runs the trusted setup step for a freshly created room.
type RoomValidator interface {
	Validate(ctx context.Context, room domain.Room) error
}

type roomConsumer struct {
	broker    Broker
	validator RoomValidator
	logger    logging.Logger
}

func NewRoomConsumer(broker Broker, validator RoomValidator, logger logging.Logger) *roomConsumer {
	return &roomConsumer{
		broker:    broker,
		validator: validator,
		logger:    logger,
	}
}

// Listen blocks, validating every room.created event exactly once per delivery.
func (c *roomConsumer) Listen() error {
	return c.broker.ConsumeMessages(messaging.RoomValidationQueue, c.handle)
}

func (c *roomConsumer) handle(ctx context.Context, msg amqp091.Delivery) error {
	var payload messaging.RoomEventData
	if err := decode(msg, &payload); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to decode room event", map[logging.ExtraKey]any{
			logging.RoutingKey:   msg.RoutingKey,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	if err := c.validator.Validate(ctx, payload.Room); err != nil {
		c.logger.Error(logging.Sweeper, logging.Gate, "room validation failed", map[logging.ExtraKey]any{
			logging.AreaID:       payload.Room.AreaID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}
	return nil
}

func decode(msg amqp091.Delivery, payload any) error {
	var envelope contracts.AmqpMessage
	if err := json.Unmarshal(msg.Body, &envelope); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

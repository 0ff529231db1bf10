package events

import (
	"context"
	"fmt"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/contracts"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

type auditConsumer struct {
	broker Broker
	audit  domain.RoomAuditRepository
	logger logging.Logger
}

func NewAuditConsumer(broker Broker, audit domain.RoomAuditRepository, logger logging.Logger) *auditConsumer {
	return &auditConsumer{
		broker: broker,
		audit:  audit,
		logger: logger,
	}
}

func (c *auditConsumer) Listen() error {
	return c.broker.ConsumeMessages(messaging.RoomAuditQueue, c.handle)
}

func (c *auditConsumer) handle(ctx context.Context, msg amqp091.Delivery) error {
	entry, err := auditEntry(msg)
	if err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to decode audit event", map[logging.ExtraKey]any{
			logging.RoutingKey:   msg.RoutingKey,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	if err := c.audit.Log(ctx, entry); err != nil {
		c.logger.Error(logging.MongoDB, logging.Consume, "failed to write audit log", map[logging.ExtraKey]any{
			logging.AreaID:       entry.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}
	return nil
}

func auditEntry(msg amqp091.Delivery) (*domain.RoomAuditLog, error) {
	switch msg.RoutingKey {
	case contracts.EventRoomCreated:
		var p messaging.RoomEventData
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return domain.NewRoomCreatedLog(p.Room.AreaID, p.Room.CreatedBy, p.Room.CreatedAt), nil

	case contracts.EventRoomRejected:
		var p messaging.RoomEventData
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return domain.NewRoomRejectedLog(p.Room.AreaID, p.Room.CreatedBy, p.Reason, p.Room.CreatedAt), nil

	case contracts.EventRoomDeleted:
		var p messaging.RoomDeletedData
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		entry := domain.NewRoomPrunedLog(p.RoomID, p.MessagesDeleted, p.At)
		entry.Metadata["reason"] = p.Reason
		return entry, nil

	case contracts.EventModerationApplied:
		var p messaging.ModerationEventData
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		entry := domain.NewModerationLog(p.RoomID, domain.RoomEventType(p.Action), p.Actor, p.Target, p.At)
		if p.MessageID != "" {
			entry.Metadata = map[string]any{"message_id": p.MessageID}
		}
		return entry, nil
	}
	return nil, fmt.Errorf("unexpected routing key %q", msg.RoutingKey)
}

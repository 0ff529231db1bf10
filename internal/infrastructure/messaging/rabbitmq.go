package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hilthontt/tourchat/internal/infrastructure/contracts"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	TourChatExchange   = "tourchat"
	DeadLetterExchange = "dlx"
)

// Handler processes one delivery. A returned error rejects the delivery to the dead letter queue.
type Handler func(ctx context.Context, msg amqp.Delivery) error

type RabbitMQ struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

func NewRabbitMQ(uri string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		Channel: ch,
	}

	if err := rmq.setupExchangesAndQueues(); err != nil {
		rmq.Close()
		return nil, fmt.Errorf("failed to setup exchanges and queues: %w", err)
	}

	return rmq, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

func (r *RabbitMQ) PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return r.Channel.PublishWithContext(ctx,
		TourChatExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    message.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

// ConsumeMessages blocks until the delivery channel closes.
func (r *RabbitMQ) ConsumeMessages(queueName string, handler Handler) error {
	if err := r.Channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := r.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", queueName, err)
	}

	ctx := context.Background()
	for msg := range msgs {
		if err := handler(ctx, msg); err != nil {
			log.Printf("failed to handle message on %s (%s): %v", queueName, msg.RoutingKey, err)
			if nackErr := msg.Nack(false, false); nackErr != nil {
				log.Printf("failed to nack message: %v", nackErr)
			}
			continue
		}
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Printf("failed to ack message: %v", ackErr)
		}
	}

	return nil
}

func (r *RabbitMQ) setupExchangesAndQueues() error {
	if err := r.Channel.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", DeadLetterExchange, err)
	}
	if _, err := r.Channel.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", DeadLetterQueue, err)
	}
	if err := r.Channel.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(TourChatExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", TourChatExchange, err)
	}

	for queue, keys := range Bindings {
		if err := r.declareAndBindQueue(queue, keys, TourChatExchange); err != nil {
			return err
		}
	}
	return nil
}

func (r *RabbitMQ) declareAndBindQueue(queueName string, messageTypes []string, exchange string) error {
	args := amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	}

	q, err := r.Channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,      // arguments with DLX config
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	for _, msg := range messageTypes {
		if err := r.Channel.QueueBind(
			q.Name,   // queue name
			msg,      // routing key
			exchange, // exchange
			false,
			nil,
		); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", queueName, err)
		}
	}

	return nil
}

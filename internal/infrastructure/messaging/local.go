package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/hilthontt/tourchat/internal/infrastructure/contracts"
	amqp "github.com/rabbitmq/amqp091-go"
)

// LocalBus routes messages to in-process queues using the same bindings as the broker.
// It backs single-process deployments and tests.
type LocalBus struct {
	mu     sync.RWMutex
	queues map[string]chan amqp.Delivery
	closed bool
}

func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 256
	}
	queues := make(map[string]chan amqp.Delivery, len(Bindings))
	for queue := range Bindings {
		queues[queue] = make(chan amqp.Delivery, buffer)
	}
	return &LocalBus{queues: queues}
}

func (b *LocalBus) PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("local bus closed")
	}

	for queue, keys := range Bindings {
		if !slices.Contains(keys, routingKey) {
			continue
		}
		select {
		case b.queues[queue] <- amqp.Delivery{MessageId: message.ID, RoutingKey: routingKey, Body: body, ContentType: "application/json"}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ConsumeMessages blocks until Close. Handler errors are logged by the caller's handler only;
// there is no dead letter queue in process.
func (b *LocalBus) ConsumeMessages(queueName string, handler Handler) error {
	b.mu.RLock()
	ch, ok := b.queues[queueName]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown queue %s", queueName)
	}

	ctx := context.Background()
	for msg := range ch {
		_ = handler(ctx, msg)
	}
	return nil
}

func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.queues {
		close(ch)
	}
}

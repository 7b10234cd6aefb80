package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares a durable queue and binds it to the events exchange
// for the given routing keys.
func NewConsumer(conn *amqp.Connection, queue string, bindingKeys ...string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	_, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	for _, key := range bindingKeys {
		if err := ch.QueueBind(queue, key, Exchange, false, nil); err != nil {
			return nil, err
		}
	}
	return &Consumer{ch: ch, queue: queue}, nil
}

func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.queue, "", false, false, false, false, nil)
}

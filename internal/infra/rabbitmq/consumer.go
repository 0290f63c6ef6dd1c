package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Consumer drains the order changefeed for the event stream broadcaster.
// It declares an exclusive auto-delete queue bound to every order change
// ("account.*.order.*"); the broadcaster does per-account filtering itself
// because one process serves streams for many accounts.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func NewConsumer(amqpURL, exchange string) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %v", err)
	}

	err = channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %v", err)
	}

	q, err := channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %v", err)
	}

	if err := channel.QueueBind(q.Name, "account.*.order.*", exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %v", err)
	}

	return &Consumer{conn: conn, channel: channel, queue: q.Name}, nil
}

// Deliveries starts consuming. The returned channel closes when the
// underlying connection or channel dies; callers must treat that as an
// upstream listener failure, not a clean end of stream.
func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	return c.channel.Consume(c.queue, "", true, true, false, false, nil)
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

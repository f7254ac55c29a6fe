package messenger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const confirmTimeout = 10 * time.Second

// publishChannel is the part of an amqp channel SendMessage needs.
type publishChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Messenger struct {
	amqpUri    string
	mu         sync.Mutex
	conn       *amqp.Connection
	newChannel func() (publishChannel, error)
}

func NewMessenger(amqpUri string) MessageService {
	m := &Messenger{amqpUri: amqpUri}
	m.newChannel = func() (publishChannel, error) {
		ch, err := m.openChannel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	return m
}

func (m *Messenger) GetQueue(item Item) (*amqp.Queue, error) {
	ch, err := m.openChannel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	queue, err := ch.QueueDeclare(item.queue(), true, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("queue", item.queue())).Error("[Queue] Failed to create queue")
		return nil, err
	}

	return &queue, nil
}

// SendMessage publishes body to the exchange of item. A reliable send returns
// only once the broker has confirmed the message, and fails when it does not.
func (m *Messenger) SendMessage(item Item, body []byte, reliable bool) error {
	ch, err := m.newChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	ex, ok := exchanges[item]
	if !ok {
		zap.L().Error("[Queue] Exchange not found")
		return fmt.Errorf("%s: %w", item, ErrExchangeNotFound)
	}

	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDeleted, ex.Internal, ex.NoWait, ex.Arguments); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Declare")
		return err
	}

	var confirms chan amqp.Confirmation
	if reliable {
		if err := ch.Confirm(false); err != nil {
			zap.L().With(zap.Error(err)).Error("[Queue] Channel could not be put into confirm mode")
			return err
		}
		confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}

	publishing := amqp.Publishing{
		Headers:      amqp.Table{},
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}

	if err = ch.Publish(ex.Name, item.queue(), false, false, publishing); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Publish")
		return err
	}

	zap.L().With(zap.String("exchange", ex.Name), zap.String("routingKey", item.queue())).Debug("[Queue] Published message")

	if reliable {
		return confirmOne(confirms, confirmTimeout)
	}
	return nil
}

func (m *Messenger) ConsumeMessages(ctx context.Context, item Item, callback func(body []byte) error) error {
	ch, err := m.openChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	ex, ok := exchanges[item]
	if !ok {
		return fmt.Errorf("%s: %w", item, ErrExchangeNotFound)
	}

	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDeleted, ex.Internal, ex.NoWait, ex.Arguments); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Declare")
		return err
	}

	q, err := ch.QueueDeclare(item.queue(), true, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to declare a queue")
		return err
	}

	if err = ch.QueueBind(q.Name, item.queue(), ex.Name, false, nil); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to bind a queue")
		return err
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to consume the queue")
		return err
	}

	zap.S().With(zap.String("exchange", ex.Name)).Debugf("[Queue] Waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			zap.L().Debug("[Queue] Received message")
			if err := callback(d.Body); err != nil {
				zap.L().With(zap.Error(err)).Error("[Queue] Failed to handle message")
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (m *Messenger) GetQueueSize(item Item) (*int, error) {
	queue, err := m.GetQueue(item)
	if err != nil {
		return nil, err
	}

	return &queue.Messages, nil
}

func (m *Messenger) openConnection() (*amqp.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn, nil
	}

	conn, err := amqp.Dial(m.amqpUri)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to connect to RabbitMQ")
		return nil, err
	}

	m.conn = conn

	return m.conn, nil
}

func (m *Messenger) openChannel() (*amqp.Channel, error) {
	conn, err := m.openConnection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		zap.S().With(zap.Error(err)).Error("[Queue] Failed to open channel")
	}

	return ch, err
}

func confirmOne(confirms <-chan amqp.Confirmation, timeout time.Duration) error {
	zap.L().Debug("[Queue] Waiting for publish confirmation")

	select {
	case confirmed, ok := <-confirms:
		if !ok {
			zap.L().Warn("[Queue] Channel closed before publish was confirmed")
			return fmt.Errorf("channel closed: %w", ErrPublishNotConfirmed)
		}
		if !confirmed.Ack {
			zap.L().With(zap.Uint64("tag", confirmed.DeliveryTag)).Warn("[Queue] Publish nacked")
			return fmt.Errorf("delivery %d nacked: %w", confirmed.DeliveryTag, ErrPublishNotConfirmed)
		}
	case <-time.After(timeout):
		zap.L().Warn("[Queue] Publish confirmation timed out")
		return fmt.Errorf("no confirmation after %s: %w", timeout, ErrPublishNotConfirmed)
	}

	zap.L().Debug("[Queue] Publish confirmed")
	return nil
}

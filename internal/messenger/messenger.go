package messenger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
)

var (
	ErrExchangeNotFound = errors.New("exchange not found")
	ErrUnknownDriver    = errors.New("unknown messenger driver")

	ErrPublishNotConfirmed = errors.New("publish not confirmed by broker")
)

type MessageService interface {
	SendMessage(item Item, body []byte, reliable bool) error
	// ConsumeMessages hands each message to callback until ctx is done. A
	// message is acknowledged only when callback returns nil.
	ConsumeMessages(ctx context.Context, item Item, callback func(body []byte) error) error
	GetQueueSize(item Item) (*int, error)
}

type Item string

var (
	ActivityItem Item = "settlement.activity"
)

func (i Item) queue() string {
	return fmt.Sprintf("%s.%s", config.Get().Index, i)
}

const (
	AmqpDriver = "amqp"
	SqsDriver  = "sqs"
)

func NewMessageService(cfg config.Config) (MessageService, error) {
	switch cfg.Messenger.Driver {
	case AmqpDriver:
		return NewMessenger(cfg.Messenger.AmqpUri), nil
	case SqsDriver:
		return NewSqsMessenger(cfg.Aws, cfg.Messenger.SqsQueueUrl)
	}

	return nil, fmt.Errorf("%q: %w", cfg.Messenger.Driver, ErrUnknownDriver)
}

package eventsvc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/horarios/core"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events as persistent JSON messages to a topic exchange,
// routed by event name.
type AMQPPublisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	conn     *amqp.Connection
	ch       channel
	exchange string
	appID    string
}

var _ core.EventPublisher = (*AMQPPublisher)(nil)

func NewAMQPPublisher(conf *core.Config) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(conf.RabbitMQ.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening rabbitmq channel")
	}

	pub, err := newAMQPPublisher(ch, conf.RabbitMQ.Exchange, conf.AppName)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	pub.conn = conn
	return pub, nil
}

func newAMQPPublisher(ch channel, exchange, appID string) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declaring exchange %s", exchange)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, appID: appID}, nil
}

func (pub *AMQPPublisher) Publish(ctx context.Context, events ...core.Event) error {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	for _, evt := range events {
		body, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrapf(err, "encoding %s", evt.Name)
		}
		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    evt.OccurredAt,
			Type:         evt.Name,
			AppId:        pub.appID,
			Body:         body,
		}
		if err := pub.ch.PublishWithContext(ctx, pub.exchange, evt.Name, false, false, msg); err != nil {
			return errors.Wrapf(err, "publishing %s", evt.Name)
		}
	}
	return nil
}

func (pub *AMQPPublisher) Close() error {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	err := pub.ch.Close()
	if pub.conn != nil {
		if cerr := pub.conn.Close(); err == nil {
			err = cerr
		}
	}
	return errors.Wrap(err, "closing rabbitmq publisher")
}

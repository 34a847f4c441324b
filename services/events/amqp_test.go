package eventsvc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/horarios/core"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	ch.declared = append(ch.declared, name+":"+kind)
	return nil
}

func (ch *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if ch.publishErr != nil {
		return ch.publishErr
	}
	ch.published = append(ch.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (ch *fakeChannel) Close() error {
	ch.closed = true
	return nil
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	pub, err := newAMQPPublisher(ch, "horarios.events", "Horarios")
	require.NoError(t, err)
	assert.Equal(t, []string{"horarios.events:topic"}, ch.declared)

	evt := core.NewEvent("schedule.created", map[string]int{"id": 4})
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, ch.published, 1)
	p := ch.published[0]
	assert.Equal(t, "horarios.events", p.exchange)
	assert.Equal(t, "schedule.created", p.key)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, "Horarios", p.msg.AppId)

	var body struct {
		Name    string         `json:"name"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(p.msg.Body, &body))
	assert.Equal(t, "schedule.created", body.Name)
	assert.Equal(t, 4, body.Payload["id"])

	require.NoError(t, pub.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	pub, err := newAMQPPublisher(ch, "horarios.events", "Horarios")
	require.NoError(t, err)

	err = pub.Publish(context.Background(), core.NewEvent("schedule.deleted", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing schedule.deleted")
}

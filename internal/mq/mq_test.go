package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/corn-moisture/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanBackend delivers published messages to the subscriber of the same channel.
type chanBackend struct {
	queues map[string]chan Message
	nacked []string
	closed bool
}

func newChanBackend() *chanBackend {
	return &chanBackend{queues: map[string]chan Message{}}
}

func (b *chanBackend) queue(name string) chan Message {
	if _, ok := b.queues[name]; !ok {
		b.queues[name] = make(chan Message, 10)
	}
	return b.queues[name]
}

func (b *chanBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id := newMessageID()
	b.queue(channel) <- Message{ID: id, Data: data, Attributes: attrs}
	return id, nil
}

func (b *chanBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q := b.queue(channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				b.nacked = append(b.nacked, msg.ID)
			}
		}
	}
}

func (b *chanBackend) Close() error {
	b.closed = true
	return nil
}

func TestMQ_PublishSubscribe(t *testing.T) {
	backend := newChanBackend()
	queue := New(backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := queue.Publish(ctx, "moisture.ingest", []byte(`{"sensor_id":"A"}`), map[string]string{"type": "reading"})
	require.NoError(t, err)
	failing, err := queue.Publish(ctx, "moisture.ingest", []byte(`bad`), nil)
	require.NoError(t, err)

	var received []Message
	err = queue.Subscribe(ctx, "moisture.ingest", func(ctx context.Context, msg Message) error {
		received = append(received, msg)
		if len(received) == 2 {
			cancel()
			return errors.New("cannot store")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, received, 2)
	assert.Equal(t, "reading", received[0].Attributes["type"])
	assert.Equal(t, []string{failing}, backend.nacked)

	require.NoError(t, queue.Close())
	assert.True(t, backend.closed)
}

func TestNewFromConfig(t *testing.T) {
	queue, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, queue)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.EqualError(t, err, `unknown mq backend "kafka"`)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.EqualError(t, err, "rabbitmq url is required")

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "pubsub"})
	assert.EqualError(t, err, "pubsub project id is required")

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "mqtt"})
	assert.EqualError(t, err, "mqtt broker url is required")

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "mqtt", MQTT: config.MQTTConfig{BrokerURL: "tcp://localhost:1883", QoS: 3}})
	assert.EqualError(t, err, "mqtt qos must be 0, 1 or 2, got 3")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	assert.Equal(t,
		map[string]string{"type": "prediction.created", "raw": "bytes", "n": "3"},
		headersToAttributes(map[string]any{"type": "prediction.created", "raw": []byte("bytes"), "n": int32(3)}),
	)
}

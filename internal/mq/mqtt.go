package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/corn-moisture/platform/config"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttOperationTimeout  = 5 * time.Second
	mqttKeepAlive         = 60 * time.Second
	mqttDisconnectQuiesce = 1000 // milliseconds
	mqttMaxQoS            = 2
)

// MQTTClient publishes and consumes through an MQTT broker. Channels map to
// topics. MQTT 3.1.1 has no message headers, so attributes are not sent.
type MQTTClient struct {
	client pahomqtt.Client
	qos    byte
}

// NewMQTTClient connects to the broker. Acknowledgements are manual so a
// failed handler leaves QoS 1/2 messages unacknowledged for redelivery.
func NewMQTTClient(cfg config.MQTTConfig) (*MQTTClient, error) {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, errors.New("mqtt broker url is required")
	}
	if cfg.QoS < 0 || cfg.QoS > mqttMaxQoS {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", cfg.QoS)
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)
	opts.SetAutoAckDisabled(true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %v", mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &MQTTClient{client: client, qos: byte(cfg.QoS)}, nil
}

func (m *MQTTClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("mqtt channel is required")
	}

	token := m.client.Publish(channel, m.qos, false, data)
	if err := waitToken(ctx, token); err != nil {
		return "", fmt.Errorf("mqtt publish %s: %w", channel, err)
	}
	return newMessageID(), nil
}

// Subscribe consumes the topic until ctx is done.
func (m *MQTTClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("mqtt channel is required")
	}

	token := m.client.Subscribe(channel, m.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		message := Message{
			ID:         strconv.Itoa(int(msg.MessageID())),
			Data:       msg.Payload(),
			Attributes: map[string]string{"topic": msg.Topic()},
		}
		if err := handler(ctx, message); err != nil {
			return
		}
		msg.Ack()
	})
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", channel, err)
	}

	<-ctx.Done()
	unsubscribe := m.client.Unsubscribe(channel)
	unsubscribe.WaitTimeout(mqttOperationTimeout)
	return ctx.Err()
}

func (m *MQTTClient) Close() error {
	m.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}

func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttOperationTimeout):
		return fmt.Errorf("timeout after %v", mqttOperationTimeout)
	}
}

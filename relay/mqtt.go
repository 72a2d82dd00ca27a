package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fornellas/slogxt/log"
	"github.com/google/uuid"
)

// MQTTPublisher publishes with a paho client.
type MQTTPublisher struct {
	client   mqtt.Client
	qos      byte
	retained bool
	timeout  time.Duration
}

type MQTTOptions struct {
	// eg: tcp://localhost:1883
	Broker string
	// A random suffix is appended, so many relays can share a broker.
	ClientIDPrefix string
	QoS            byte
	// Retained messages let late subscribers see the last record of each kind.
	Retained bool
	Timeout  time.Duration
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DialMQTT connects to the broker.
func DialMQTT(ctx context.Context, options MQTTOptions) (*MQTTPublisher, error) {
	clientID := fmt.Sprintf("%s-%s", options.ClientIDPrefix, uuid.NewString())
	logger := log.MustLogger(ctx)
	logger.Info("Connecting to MQTT broker", "broker", options.Broker, "client-id", clientID)

	clientOptions := mqtt.NewClientOptions().
		AddBroker(options.Broker).
		SetClientID(clientID).
		SetConnectTimeout(options.Timeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(clientOptions)
	if err := waitToken(ctx, client.Connect(), options.Timeout); err != nil {
		return nil, fmt.Errorf("relay: MQTT connect error: %s: %w", options.Broker, err)
	}

	return &MQTTPublisher{
		client:   client,
		qos:      options.QoS,
		retained: options.Retained,
		timeout:  options.Timeout,
	}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return waitToken(ctx, p.client.Publish(topic, p.qos, p.retained, payload), p.timeout)
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MessageHandler receives every message on a subscribed topic filter.
type MessageHandler func(topic, payload string)

// MQTTNotifier publishes replies to and receives commands from an MQTT broker.
// Subscriptions are restored whenever the client reconnects.
type MQTTNotifier struct {
	client  mqtt.Client
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]MessageHandler
}

// NewMQTTNotifier creates a client for broker (e.g. "tcp://localhost:1883"). Connect must
// be called before publishing.
func NewMQTTNotifier(broker, clientID string, keepAlive time.Duration) *MQTTNotifier {
	n := &MQTTNotifier{
		timeout: 10 * time.Second,
		subs:    make(map[string]MessageHandler),
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetOnConnectHandler(n.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("mqtt connection to %s lost: %v", broker, err)
		})
	n.client = mqtt.NewClient(opts)
	return n
}

// Connect blocks until the broker accepts the connection or ctx ends.
func (n *MQTTNotifier) Connect(ctx context.Context) error {
	tok := n.client.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Subscribe registers h for topic and subscribes immediately when connected.
func (n *MQTTNotifier) Subscribe(topic string, h MessageHandler) error {
	n.mu.Lock()
	n.subs[topic] = h
	n.mu.Unlock()

	if !n.client.IsConnectionOpen() {
		return nil
	}
	return n.subscribe(topic, h)
}

// Publish sends text to topic with QoS 0.
func (n *MQTTNotifier) Publish(topic, text string) error {
	tok := n.client.Publish(topic, 0, false, text)
	if !tok.WaitTimeout(n.timeout) {
		return fmt.Errorf("publish to %s: timed out after %v", topic, n.timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects, giving in-flight work a quarter second.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
	log.Info("mqtt client disconnected")
}

func (n *MQTTNotifier) onConnect(_ mqtt.Client) {
	n.mu.Lock()
	subs := make(map[string]MessageHandler, len(n.subs))
	for t, h := range n.subs {
		subs[t] = h
	}
	n.mu.Unlock()

	log.Infof("mqtt connected, subscribing to %d topics", len(subs))
	for t, h := range subs {
		if err := n.subscribe(t, h); err != nil {
			log.Errorf("subscribe %s: %v", t, err)
		}
	}
}

func (n *MQTTNotifier) subscribe(topic string, h MessageHandler) error {
	tok := n.client.Subscribe(topic, 0, func(_ mqtt.Client, m mqtt.Message) {
		h(m.Topic(), string(m.Payload()))
	})
	if !tok.WaitTimeout(n.timeout) {
		return errors.New("subscribe timed out")
	}
	return tok.Error()
}

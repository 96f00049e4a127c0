package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facepass-liveness/pkg/config"
	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConnectTimeout bounds the initial broker connection.
const ConnectTimeout = 10 * time.Second

// NewClientFunc builds the paho client. Tests replace it.
var NewClientFunc = mqtt.NewClient

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("MQTT client is not connected")

// MQTT publishes completion signals to an MQTT broker.
type MQTT struct {
	cfg    config.NotifyConfig
	client mqtt.Client
	log    *logrus.Entry
}

// NewMQTT connects to the broker named in cfg.
func NewMQTT(cfg config.NotifyConfig) (*MQTT, error) {
	brokerURL := fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)
	log := logging.Component("notify").WithField("broker", brokerURL)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectTimeout(ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})

	client := NewClientFunc(opts)

	log.Info("Connecting to MQTT broker")
	token := client.Connect()
	if !token.WaitTimeout(ConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", brokerURL, err)
	}

	log.Info("MQTT client connected successfully")
	return &MQTT{cfg: cfg, client: client, log: log}, nil
}

// Publish sends ev as JSON to the configured topic and waits for the broker
// acknowledgement or ctx.
func (m *MQTT) Publish(ctx context.Context, ev Event) error {
	if !m.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := m.client.Publish(m.cfg.Topic, m.cfg.QoS, m.cfg.Retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", m.cfg.Topic, err)
	}

	m.log.WithFields(logrus.Fields{
		"topic":      m.cfg.Topic,
		"session_id": ev.SessionID,
		"passed":     ev.Passed,
	}).Debug("Published completion signal")
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
		m.log.Info("MQTT client disconnected")
	}
	return nil
}

// New returns an MQTT notifier when cfg is enabled and Nop otherwise.
func New(cfg config.NotifyConfig) (Notifier, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewMQTT(cfg)
}

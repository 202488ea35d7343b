// Package mqtt publishes and subscribes to simulator events over an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connTimeout    = 10 * time.Second
	reconnInterval = time.Minute
	disconnQuiesce = 250 // milliseconds
)

var (
	errTimeout    = errors.New("timeout reached")
	errEmptyTopic = errors.New("empty topic")
	errEmptyID    = errors.New("empty ID")
	errEmptyURL   = errors.New("empty broker URL")
	errInvalidCA  = errors.New("failed to parse CA certificate")
)

// Config describes one broker connection.
type Config struct {
	URL      string
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
	CAPath   string
	CertPath string
	KeyPath  string
}

// Handler receives the decoded JSON object of every message on a
// subscribed topic.
type Handler func(topic string, msg map[string]any) error

type PubSub interface {
	Publish(ctx context.Context, topic string, msg any) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

// client is the part of mqtt.Client the event path needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

type pubsub struct {
	client  client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// NewPubSub connects to the broker in cfg.
func NewPubSub(cfg Config, logger *slog.Logger) (PubSub, error) {
	if cfg.ClientID == "" {
		return nil, errEmptyID
	}
	if cfg.URL == "" {
		return nil, errEmptyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = connTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}

	return newPubSub(c, cfg, logger), nil
}

func newPubSub(c client, cfg Config, logger *slog.Logger) *pubsub {
	return &pubsub{
		client:  c,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Publish sends msg JSON-encoded and waits for the broker to acknowledge it
// according to the configured QoS.
func (ps *pubsub) Publish(ctx context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}

	return ps.wait(ctx, ps.client.Publish(topic, ps.qos, false, data), "publish "+topic)
}

func (ps *pubsub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ctx, ps.client.Subscribe(topic, ps.qos, ps.mqttHandler(handler)), "subscribe "+topic)
}

func (ps *pubsub) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ctx, ps.client.Unsubscribe(topic), "unsubscribe "+topic)
}

func (ps *pubsub) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ps.client.Disconnect(disconnQuiesce)

	return nil
}

// wait blocks until token completes, ctx ends or the timeout elapses.
func (ps *pubsub) wait(ctx context.Context, token mqtt.Token, op string) error {
	timer := time.NewTimer(ps.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to %s: %w", op, err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to %s: %w", op, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("failed to %s: %w", op, errTimeout)
	}
}

func (ps *pubsub) mqttHandler(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		var msg map[string]any
		if err := json.Unmarshal(m.Payload(), &msg); err != nil {
			ps.logger.Warn("dropping undecodable event", slog.String("topic", m.Topic()), slog.Any("error", err))

			return
		}

		if err := h(m.Topic(), msg); err != nil {
			ps.logger.Warn("failed to handle event", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}

func connect(cfg Config, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetMaxReconnectInterval(reconnInterval)

	if err := applyTLSConfig(opts, cfg.CAPath, cfg.CertPath, cfg.KeyPath); err != nil {
		return nil, err
	}

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("event broker connected", slog.String("broker", cfg.URL), slog.String("client_id", cfg.ClientID))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("event broker connection lost", slog.String("broker", cfg.URL), slog.Any("error", err))
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, errTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}

	return c, nil
}

// applyTLSConfig enables TLS when a CA is given, and mutual TLS when a client
// key pair is given as well.
func applyTLSConfig(opts *mqtt.ClientOptions, caPath, certPath, keyPath string) error {
	if caPath == "" {
		return nil
	}

	pem, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return errInvalidCA
	}

	tlsConfig := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	if certPath != "" && keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return fmt.Errorf("failed to load client key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	opts.SetTLSConfig(tlsConfig)

	return nil
}

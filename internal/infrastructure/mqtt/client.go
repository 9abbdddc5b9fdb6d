package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/agri-gateway/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the gateway.
//
// It retries the initial connection with exponential backoff, lets paho
// reconnect after later drops, restores subscriptions on every (re)connect
// and publishes a retained online/offline document on the gateway status topic.
//
// All methods are safe for concurrent use.
type Client struct {
	client         pahomqtt.Client
	cfg            config.MQTTConfig
	topics         Topics
	publishTimeout time.Duration

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger Logger
}

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one inbound message. Returned errors are logged at
// warn and do not affect delivery of later messages.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker and returns a connected client.
//
// The initial connection is attempted up to cfg.Reconnect.MaxAttempts times
// with exponential backoff between cfg.Reconnect.InitialDelay and MaxDelay.
// Cancelling ctx aborts the retry loop. logger may be nil.
func Connect(ctx context.Context, cfg config.MQTTConfig, logger Logger) (*Client, error) {
	topics := NewTopics(cfg.Topics.Prefix)
	opts := buildClientOptions(cfg)
	if !cfg.DisablePresence {
		configureLWT(opts, topics, cfg.Broker.ClientID)
	}

	c := &Client{
		cfg:            cfg,
		topics:         topics,
		publishTimeout: publishTimeout(cfg),
		subscriptions:  make(map[string]subscription),
		logger:         logger,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if l := c.getLogger(); l != nil {
			l.Info("reconnecting to MQTT broker", "broker", cfg.BrokerAddress())
		}
	})

	c.client = pahomqtt.NewClient(opts)
	if err := c.connectWithRetry(ctx); err != nil {
		return nil, err
	}

	// OnConnectHandler runs asynchronously; mark connected here so callers
	// see IsConnected() == true as soon as Connect returns.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// connectWithRetry drives the initial connection attempts.
func (c *Client) connectWithRetry(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	if c.cfg.Reconnect.InitialDelay > 0 {
		bo.InitialInterval = time.Duration(c.cfg.Reconnect.InitialDelay) * time.Second
	}
	if c.cfg.Reconnect.MaxDelay > 0 {
		bo.MaxInterval = time.Duration(c.cfg.Reconnect.MaxDelay) * time.Second
	}
	// Attempts bound the loop, not elapsed time.
	bo.MaxElapsedTime = 0

	retries := c.cfg.Reconnect.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		token := c.client.Connect()
		if !token.WaitTimeout(defaultConnectTimeout) {
			return fmt.Errorf("timeout after %v", defaultConnectTimeout)
		}
		return token.Error()
	}, policy, func(err error, next time.Duration) {
		if l := c.getLogger(); l != nil {
			l.Warn("MQTT connection attempt failed",
				"broker", c.cfg.BrokerAddress(),
				"attempt", attempt,
				"retry_in", next.String(),
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %s after %d attempt(s): %w", ErrConnectionFailed, c.cfg.BrokerAddress(), attempt, err)
	}
	return nil
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.publishGatewayStatus("online", "")

	if l := c.getLogger(); l != nil {
		l.Info("connected to MQTT broker", "broker", c.cfg.BrokerAddress())
	}

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if l := c.getLogger(); l != nil {
		l.Warn("MQTT connection lost", "broker", c.cfg.BrokerAddress(), "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after a reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		go func(topic string) {
			if token.WaitTimeout(c.publishTimeout) && token.Error() != nil {
				if l := c.getLogger(); l != nil {
					l.Error("restoring subscription failed", "topic", topic, "error", token.Error())
				}
			}
		}(sub.topic)
	}
}

func (c *Client) publishGatewayStatus(status, reason string) {
	if c.cfg.DisablePresence {
		return
	}
	payload := buildStatusPayload(c.cfg.Broker.ClientID, status, reason)
	c.client.Publish(c.topics.GatewayStatus(), byte(c.cfg.QoS), true, payload)
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() && !c.cfg.DisablePresence {
		payload := buildStatusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown")
		token := c.client.Publish(c.topics.GatewayStatus(), byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(c.publishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Broker returns the configured broker address (host:port).
func (c *Client) Broker() string {
	return c.cfg.BrokerAddress()
}

// Topics returns the topic builder for this client's prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// SetOnConnect sets a callback invoked on the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

func (c *Client) getLogger() Logger {
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho, recovering panics so one bad
// message cannot take down the delivery goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.getLogger(); l != nil {
					l.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if l := c.getLogger(); l != nil {
				l.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

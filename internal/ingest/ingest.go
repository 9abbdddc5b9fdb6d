// Package ingest turns inbound bus messages into telemetry state.
//
// The Ingestor is the single MQTT handler for the sensor-data and status
// topics. Each message is applied to the telemetry.Store, then fanned out to
// the live feed and the optional time-series mirror.
package ingest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/agri-gateway/internal/infrastructure/metrics"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

// Live feed channels.
const (
	ChannelSensorReading = "sensor.reading"
	ChannelStatusChanged = "status.changed"
)

// Drop reasons recorded in metrics.
const (
	reasonMalformed    = "malformed"
	reasonUnknownTopic = "unknown_topic"
)

// ErrUnknownTopic is returned for messages on a topic the Ingestor does not own.
var ErrUnknownTopic = errors.New("ingest: unknown topic")

// Subscriber is the part of the MQTT client used to register handlers.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Broadcaster pushes events to live-feed clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Sink mirrors accepted readings to long-term storage.
type Sink interface {
	WriteSensorReading(gatewayID string, sequence uint64, fields map[string]float64, ts time.Time)
}

// Logger is the subset of logging.Logger the Ingestor uses. Dropped
// messages are reported through Handle's error, which the MQTT client logs.
type Logger interface {
	Debug(msg string, args ...any)
}

// Deps holds the Ingestor's collaborators. Store and Topics are required.
type Deps struct {
	Store       *telemetry.Store
	Topics      mqtt.Topics
	GatewayID   string
	Logger      Logger
	Metrics     *metrics.Metrics
	Broadcaster Broadcaster
	Sink        Sink
}

// Ingestor applies inbound messages in arrival order.
type Ingestor struct {
	mu sync.Mutex

	store       *telemetry.Store
	topics      mqtt.Topics
	gatewayID   string
	logger      Logger
	metrics     *metrics.Metrics
	broadcaster Broadcaster
	sink        Sink
}

// New creates an Ingestor.
func New(deps Deps) (*Ingestor, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Ingestor{
		store:       deps.Store,
		topics:      deps.Topics,
		gatewayID:   deps.GatewayID,
		logger:      logger,
		metrics:     deps.Metrics,
		broadcaster: deps.Broadcaster,
		sink:        deps.Sink,
	}, nil
}

// Subscribe registers Handle for the sensor-data and status topics.
func (i *Ingestor) Subscribe(sub Subscriber, qos byte) error {
	for _, topic := range i.topics.Inbound() {
		if err := sub.Subscribe(topic, qos, i.Handle); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}

// Handle applies one message. Malformed payloads return an error wrapping
// telemetry.ErrMalformedMessage and leave all state untouched.
//
// Messages are serialised so the live feed sees events in ingestion order.
func (i *Ingestor) Handle(topic string, payload []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var err error
	switch topic {
	case i.topics.SensorData():
		err = i.handleSensorData(payload)
	case i.topics.Status():
		err = i.handleStatus(payload)
	default:
		i.metrics.MessageDropped(topic, reasonUnknownTopic)
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	if err != nil {
		i.metrics.MessageDropped(topic, reasonMalformed)
		return fmt.Errorf("dropping message on %s: %w", topic, err)
	}
	i.metrics.MessageIngested(topic)
	return nil
}

func (i *Ingestor) handleSensorData(payload []byte) error {
	reading, status, err := i.store.IngestSensorData(payload)
	if err != nil {
		return err
	}

	i.logger.Debug("sensor reading ingested", "sequence", reading.Sequence())

	if i.sink != nil {
		i.sink.WriteSensorReading(i.gatewayID, reading.Sequence(), reading.NumericFields(), reading.Timestamp())
	}
	if i.broadcaster != nil {
		i.broadcaster.Broadcast(ChannelSensorReading, reading)
		i.broadcaster.Broadcast(ChannelStatusChanged, status)
	}
	return nil
}

func (i *Ingestor) handleStatus(payload []byte) error {
	status, err := i.store.IngestStatus(payload)
	if err != nil {
		return err
	}

	i.logger.Debug("device status merged")

	if i.broadcaster != nil {
		i.broadcaster.Broadcast(ChannelStatusChanged, status)
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

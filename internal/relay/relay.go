// Package relay carries control commands and configuration changes from the
// HTTP API onto the bus.
//
// Every request is validated before anything is published. Publishes pass
// through a circuit breaker so a failing broker is fast-failed instead of
// tying up each request for the full publish timeout. A successful publish is
// reflected optimistically in the status snapshot; field devices send no
// acknowledgement, so the next status message from the device remains the
// authoritative view.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/agri-gateway/internal/audit"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/config"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/metrics"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

// BreakerName labels the publish breaker in logs and metrics.
const BreakerName = "bus-publish"

// Command kinds recorded in the audit log.
const (
	KindConfig = "config"
)

// Publisher sends a payload to the bus and reports the outcome synchronously.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Recorder persists each publish attempt.
type Recorder interface {
	Record(ctx context.Context, cmd *audit.Command) error
}

// CommandSink mirrors publish attempts to long-term storage.
type CommandSink interface {
	WriteCommand(gatewayID, topic string, sent bool, ts time.Time)
}

// Logger is the subset of logging.Logger the relay uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Deps holds the relay's collaborators. Publisher and Store are required;
// the rest are optional.
type Deps struct {
	Publisher Publisher
	Store     *telemetry.Store
	Topics    mqtt.Topics
	QoS       byte
	Breaker   config.BreakerConfig
	GatewayID string
	Logger    Logger
	Metrics   *metrics.Metrics
	Recorder  Recorder
	Sink      CommandSink
	Now       func() time.Time
}

// Relay validates, publishes and reflects commands.
type Relay struct {
	publisher Publisher
	store     *telemetry.Store
	topics    mqtt.Topics
	qos       byte
	gatewayID string
	logger    Logger
	metrics   *metrics.Metrics
	recorder  Recorder
	sink      CommandSink
	now       func() time.Time
	breaker   *gobreaker.CircuitBreaker

	// sendMu orders each publish with its snapshot merge, so the snapshot
	// always reflects the last command sent.
	sendMu sync.Mutex
}

// New creates a Relay.
func New(deps Deps) (*Relay, error) {
	if deps.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}

	r := &Relay{
		publisher: deps.Publisher,
		store:     deps.Store,
		topics:    deps.Topics,
		qos:       deps.QoS,
		gatewayID: deps.GatewayID,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		recorder:  deps.Recorder,
		sink:      deps.Sink,
		now:       deps.Now,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.breaker = r.newBreaker(deps.Breaker)
	r.metrics.SetBreakerState(BreakerName, breakerGauge(gobreaker.StateClosed))

	return r, nil
}

func (r *Relay) newBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures < 1 {
		maxFailures = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     BreakerName,
		Interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:  time.Duration(cfg.OpenSeconds) * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(maxFailures) // #nosec G115 -- validated positive config value
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			r.metrics.SetBreakerState(name, breakerGauge(to))
		},
	})
}

// breakerGauge maps a breaker state onto the metrics gauge scale.
func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2 //nolint:mnd // open
	default:
		return 0
	}
}

// BreakerState reports the publish breaker's current state.
func (r *Relay) BreakerState() string {
	return r.breaker.State().String()
}

// Control publishes cmd to the actuator's control topic and, once sent,
// records the actuator state and manual-override flag in the snapshot.
func (r *Relay) Control(ctx context.Context, actuator string, cmd ControlCommand) (ControlCommand, error) {
	if actuator != ActuatorPump && actuator != ActuatorLight {
		return ControlCommand{}, fmt.Errorf("%w: unknown actuator %q", ErrValidation, actuator)
	}
	if cmd.Mode == "" {
		cmd.Mode = ModeManual
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return ControlCommand{}, fmt.Errorf("encoding control command: %w", err)
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	if err := r.publish(ctx, actuator, r.topics.Control(actuator), payload); err != nil {
		return ControlCommand{}, err
	}

	if _, err := r.store.ApplyMerge(controlMerge(actuator, cmd)); err != nil {
		// The update is built from validated values; a failure here is a bug.
		return ControlCommand{}, fmt.Errorf("applying control to status: %w", err)
	}

	r.logger.Info("control command sent", "actuator", actuator, "state", cmd.State, "mode", cmd.Mode)
	return cmd, nil
}

// UpdateConfig publishes the recognised configuration fields and merges them
// into the snapshot once sent.
func (r *Relay) UpdateConfig(ctx context.Context, update ConfigUpdate) (ConfigUpdate, error) {
	if len(update) == 0 {
		return nil, fmt.Errorf("%w: no recognised configuration field", ErrValidation)
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("encoding config update: %w", err)
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	if err := r.publish(ctx, KindConfig, r.topics.Config(), payload); err != nil {
		return nil, err
	}

	if _, err := r.store.ApplyMerge(update); err != nil {
		return nil, fmt.Errorf("applying config to status: %w", err)
	}

	r.logger.Info("configuration sent", "fields", len(update))
	return update, nil
}

// publish sends payload through the breaker and records the attempt.
func (r *Relay) publish(ctx context.Context, kind, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.publisher.Publish(topic, payload, r.qos, false)
	})

	r.metrics.Publish(topic, err)
	r.recordAttempt(ctx, kind, topic, payload, err)

	if err != nil {
		r.logger.Warn("command publish failed", "topic", topic, "error", err)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// recordAttempt writes the audit row and time-series point. Neither may fail
// the request: the command has already been sent or rejected by then.
func (r *Relay) recordAttempt(ctx context.Context, kind, topic string, payload []byte, publishErr error) {
	ts := r.now().UTC()

	if r.sink != nil {
		r.sink.WriteCommand(r.gatewayID, topic, publishErr == nil, ts)
	}
	if r.recorder == nil {
		return
	}

	entry := &audit.Command{
		Kind:      kind,
		Topic:     topic,
		Payload:   string(payload),
		Outcome:   audit.OutcomeSent,
		CreatedAt: ts,
	}
	if publishErr != nil {
		entry.Outcome = audit.OutcomeFailed
		entry.Error = publishErr.Error()
	}
	if err := r.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Warn("recording command audit failed", "topic", topic, "error", err)
	}
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

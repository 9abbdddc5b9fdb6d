// Package simulator publishes synthetic field-controller traffic so the
// gateway can be exercised without hardware.
//
// The simulated device behaves like the real controller: it reports
// temperature, humidity and soil moisture on the sensor topic, obeys pump and
// light commands from the control topics, and echoes its state on the status
// topic. Moisture decays over time and recovers while the pump runs.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/agri-gateway/internal/infrastructure/mqtt"
)

// DeviceName is reported in every simulated reading.
const DeviceName = "agrisim"

// Moisture model, in percentage points.
const (
	moistureDecayPerTick = 0.8
	moistureGainPerTick  = 4.0
	moistureMin          = 5.0
	moistureMax          = 95.0
)

// Bus is the subset of the MQTT client the simulator needs.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the subset of logging.Logger the simulator uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options configures a Simulator.
type Options struct {
	Topics   mqtt.Topics
	QoS      byte
	Interval time.Duration
	// StatusEvery publishes a status document every N readings. 0 disables it.
	StatusEvery int
	Logger      Logger
	// Rand overrides the random source, mainly for tests.
	Rand *rand.Rand
}

// Simulator generates readings and reacts to commands.
type Simulator struct {
	bus  Bus
	opts Options

	mu        sync.Mutex
	rng       *rand.Rand
	moisture  float64
	pumpOn    bool
	lightOn   bool
	published int
}

// New creates a Simulator publishing through bus.
func New(bus Bus, opts Options) (*Simulator, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return &Simulator{
		bus:      bus,
		opts:     opts,
		rng:      rng,
		moisture: 50,
	}, nil
}

// Run subscribes to the control topics and publishes a reading every
// interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	for _, actuator := range []string{"pump", "light"} {
		topic := s.opts.Topics.Control(actuator)
		if err := s.bus.Subscribe(topic, s.opts.QoS, s.handleControl(actuator)); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				s.warn("publish failed", "error", err)
			}
		}
	}
}

// Tick advances the model one step and publishes a reading, plus a status
// document when one is due.
func (s *Simulator) Tick() error {
	reading, status := s.step()

	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	if err := s.bus.Publish(s.opts.Topics.SensorData(), payload, s.opts.QoS, false); err != nil {
		return fmt.Errorf("publishing reading: %w", err)
	}
	s.info("reading published", "temperature", reading["temperature"], "moisture", reading["moisture"])

	if status == nil {
		return nil
	}
	payload, err = json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := s.bus.Publish(s.opts.Topics.Status(), payload, s.opts.QoS, false); err != nil {
		return fmt.Errorf("publishing status: %w", err)
	}
	return nil
}

func (s *Simulator) step() (reading, status map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pumpOn {
		s.moisture += moistureGainPerTick
	} else {
		s.moisture -= moistureDecayPerTick * s.rng.Float64()
	}
	s.moisture = math.Max(moistureMin, math.Min(moistureMax, s.moisture))

	reading = map[string]any{
		"temperature": roundTenth(25 + s.rng.Float64()*10),
		"humidity":    roundTenth(60 + s.rng.Float64()*20),
		"moisture":    roundTenth(s.moisture),
		"pumpState":   s.pumpOn,
		"lightState":  s.lightOn,
		"device":      DeviceName,
	}

	s.published++
	if s.opts.StatusEvery > 0 && s.published%s.opts.StatusEvery == 0 {
		status = map[string]any{
			"pumpState":  s.pumpOn,
			"lightState": s.lightOn,
			"moisture":   roundTenth(s.moisture),
		}
	}
	return reading, status
}

type controlMessage struct {
	State *bool  `json:"state"`
	Mode  string `json:"mode"`
}

func (s *Simulator) handleControl(actuator string) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		var msg controlMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding control message on %s: %w", topic, err)
		}
		if msg.State == nil {
			return fmt.Errorf("control message on %s has no state", topic)
		}

		s.mu.Lock()
		switch actuator {
		case "pump":
			s.pumpOn = *msg.State
		case "light":
			s.lightOn = *msg.State
		}
		s.mu.Unlock()

		s.info("control applied", "actuator", actuator, "state", *msg.State, "mode", msg.Mode)
		return nil
	}
}

// State returns the simulated actuator states and moisture.
func (s *Simulator) State() (pumpOn, lightOn bool, moisture float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pumpOn, s.lightOn, s.moisture
}

func (s *Simulator) info(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, args...)
	}
}

func (s *Simulator) warn(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, args...)
	}
}

func roundTenth(f float64) float64 {
	return math.Round(f*10) / 10
}

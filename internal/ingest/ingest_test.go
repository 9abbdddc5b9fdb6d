package ingest

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/agri-gateway/internal/infrastructure/metrics"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

type event struct {
	channel string
	payload any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []event
}

func (b *recordingBroadcaster) Broadcast(channel string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event{channel: channel, payload: payload})
}

func (b *recordingBroadcaster) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.channel
	}
	return out
}

type sinkWrite struct {
	gatewayID string
	sequence  uint64
	fields    map[string]float64
}

type recordingSink struct {
	writes []sinkWrite
}

func (s *recordingSink) WriteSensorReading(gatewayID string, sequence uint64, fields map[string]float64, _ time.Time) {
	s.writes = append(s.writes, sinkWrite{gatewayID: gatewayID, sequence: sequence, fields: fields})
}

type fakeSubscriber struct {
	topics []string
	qos    []byte
	err    error
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, _ mqtt.MessageHandler) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.qos = append(f.qos, qos)
	return nil
}

type fixture struct {
	ingestor    *Ingestor
	store       *telemetry.Store
	broadcaster *recordingBroadcaster
	sink        *recordingSink
	metrics     *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	m := metrics.New()
	store, err := telemetry.NewStore(telemetry.Options{Capacity: 10, OnSizeChange: m.SetHistorySize})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	f := fixture{
		store:       store,
		broadcaster: &recordingBroadcaster{},
		sink:        &recordingSink{},
		metrics:     m,
	}
	f.ingestor, err = New(Deps{
		Store:       store,
		Topics:      mqtt.NewTopics("agri"),
		GatewayID:   "agrigw-test",
		Metrics:     f.metrics,
		Broadcaster: f.broadcaster,
		Sink:        f.sink,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("New() expected error without store")
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	sub := &fakeSubscriber{}

	if err := f.ingestor.Subscribe(sub, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	want := []string{"agri/sensor/data", "agri/status"}
	if len(sub.topics) != len(want) {
		t.Fatalf("subscribed topics = %v, want %v", sub.topics, want)
	}
	for i, topic := range want {
		if sub.topics[i] != topic {
			t.Errorf("topic[%d] = %q, want %q", i, sub.topics[i], topic)
		}
		if sub.qos[i] != 1 {
			t.Errorf("qos[%d] = %d, want 1", i, sub.qos[i])
		}
	}
}

func TestSubscribe_Error(t *testing.T) {
	f := newFixture(t)
	sub := &fakeSubscriber{err: mqtt.ErrNotConnected}

	err := f.ingestor.Subscribe(sub, 1)
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Fatalf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHandle_SensorData(t *testing.T) {
	f := newFixture(t)

	if err := f.ingestor.Handle("agri/sensor/data", []byte(`{"moisture":42,"temperature":"21.5","pumpState":true}`)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if f.store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", f.store.Len())
	}
	status := f.store.Status()
	if v, _ := status.Number("moisture"); v != 42 {
		t.Errorf("status moisture = %v, want 42", v)
	}
	if v, _ := status.Bool("pumpState"); !v {
		t.Error("status pumpState should be true")
	}

	got := f.broadcaster.channels()
	if len(got) != 2 || got[0] != ChannelSensorReading || got[1] != ChannelStatusChanged {
		t.Errorf("broadcast channels = %v", got)
	}

	if len(f.sink.writes) != 1 {
		t.Fatalf("sink writes = %d, want 1", len(f.sink.writes))
	}
	w := f.sink.writes[0]
	if w.gatewayID != "agrigw-test" || w.sequence != 1 {
		t.Errorf("sink write = %+v", w)
	}
	if w.fields["moisture"] != 42 || w.fields["temperature"] != 21.5 {
		t.Errorf("sink fields = %v", w.fields)
	}
}

func TestHandle_Status(t *testing.T) {
	f := newFixture(t)

	if err := f.ingestor.Handle("agri/status", []byte(`{"lightState":true,"firmware":"1.4.2"}`)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	status := f.store.Status()
	if v, _ := status.Bool("lightState"); !v {
		t.Error("status lightState should be true")
	}
	if status["firmware"] != "1.4.2" {
		t.Errorf("unknown key not merged: %v", status["firmware"])
	}
	if f.store.Len() != 0 {
		t.Error("status message must not append history")
	}
	if got := f.broadcaster.channels(); len(got) != 1 || got[0] != ChannelStatusChanged {
		t.Errorf("broadcast channels = %v", got)
	}
	if len(f.sink.writes) != 0 {
		t.Error("status message must not reach the sink")
	}
}

func TestHandle_MalformedLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"sensor not JSON", "agri/sensor/data", `not json`},
		{"sensor array", "agri/sensor/data", `[1,2,3]`},
		{"sensor wrong type", "agri/sensor/data", `{"moisture":true}`},
		{"status wrong type", "agri/status", `{"pumpState":"on"}`},
		{"status not JSON", "agri/status", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.store.Status()

			err := f.ingestor.Handle(tt.topic, []byte(tt.payload))
			if !errors.Is(err, telemetry.ErrMalformedMessage) {
				t.Fatalf("Handle() error = %v, want ErrMalformedMessage", err)
			}

			if f.store.Len() != 0 {
				t.Errorf("history length = %d, want 0", f.store.Len())
			}
			after := f.store.Status()
			for k, v := range before {
				if after[k] != v {
					t.Errorf("status[%q] changed from %v to %v", k, v, after[k])
				}
			}
			if len(f.broadcaster.channels()) != 0 {
				t.Error("malformed message must not broadcast")
			}
		})
	}
}

func TestHandle_UnknownTopic(t *testing.T) {
	f := newFixture(t)

	err := f.ingestor.Handle("agri/other", []byte(`{}`))
	if !errors.Is(err, ErrUnknownTopic) {
		t.Fatalf("Handle() error = %v, want ErrUnknownTopic", err)
	}
}

func TestHandle_Metrics(t *testing.T) {
	f := newFixture(t)

	_ = f.ingestor.Handle("agri/sensor/data", []byte(`{"moisture":40}`))
	_ = f.ingestor.Handle("agri/sensor/data", []byte(`{"moisture":41}`))
	_ = f.ingestor.Handle("agri/sensor/data", []byte(`garbage`))

	families, err := f.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	if values["agrigw_messages_ingested_total"] != 2 {
		t.Errorf("ingested = %v, want 2", values["agrigw_messages_ingested_total"])
	}
	if values["agrigw_messages_dropped_total"] != 1 {
		t.Errorf("dropped = %v, want 1", values["agrigw_messages_dropped_total"])
	}
	if values["agrigw_history_size"] != 2 {
		t.Errorf("history size = %v, want 2", values["agrigw_history_size"])
	}
}

func TestHandle_ConcurrentDeliveryKeepsOrder(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for n := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := []byte(`{"moisture":` + strconv.Itoa(n) + `}`)
			if err := f.ingestor.Handle("agri/sensor/data", payload); err != nil {
				t.Errorf("Handle() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// Readings are broadcast in the same order they were sequenced.
	var last uint64
	for _, e := range f.broadcaster.events {
		if e.channel != ChannelSensorReading {
			continue
		}
		r := e.payload.(telemetry.Reading)
		if r.Sequence() <= last {
			t.Fatalf("sequence %d broadcast after %d", r.Sequence(), last)
		}
		last = r.Sequence()
	}
	if f.store.Len() != 10 {
		t.Errorf("store.Len() = %d, want capacity 10", f.store.Len())
	}
}

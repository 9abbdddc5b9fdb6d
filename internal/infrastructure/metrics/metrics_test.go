package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.MessageIngested("agri/sensor/data")
	m.MessageIngested("agri/sensor/data")
	m.MessageDropped("agri/status", "malformed")
	m.Publish("agri/control/pump", nil)
	m.Publish("agri/control/pump", errors.New("not connected"))
	m.Publish("agri/control/pump", errors.New("timeout"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"ingested", testutil.ToFloat64(m.messagesIngested.WithLabelValues("agri/sensor/data")), 2},
		{"dropped", testutil.ToFloat64(m.messagesDropped.WithLabelValues("agri/status", "malformed")), 1},
		{"sent", testutil.ToFloat64(m.publishes.WithLabelValues("agri/control/pump", OutcomeSent)), 1},
		{"failed", testutil.ToFloat64(m.publishes.WithLabelValues("agri/control/pump", OutcomeFailed)), 2},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestGauges(t *testing.T) {
	m := New()

	m.SetHistorySize(42)
	m.SetMQTTConnected(true)
	m.SetBreakerState("bus-publish", 2)
	m.SetWebSocketClients(3)

	if got := testutil.ToFloat64(m.historySize); got != 42 {
		t.Errorf("history_size = %v", got)
	}
	if got := testutil.ToFloat64(m.mqttConnected); got != 1 {
		t.Errorf("mqtt_connected = %v", got)
	}
	m.SetMQTTConnected(false)
	if got := testutil.ToFloat64(m.mqttConnected); got != 0 {
		t.Errorf("mqtt_connected after disconnect = %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("bus-publish")); got != 2 {
		t.Errorf("breaker_state = %v", got)
	}
	if got := testutil.ToFloat64(m.wsClients); got != 3 {
		t.Errorf("websocket_clients = %v", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/status", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`agrigw_http_requests_total{route="/api/status",status="200"} 1`,
		"agrigw_http_request_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.MessageIngested("t")
	m.MessageDropped("t", "r")
	m.Publish("t", nil)
	m.ObserveHTTP("/", 200, time.Millisecond)
	m.SetHistorySize(1)
	m.SetMQTTConnected(true)
	m.SetBreakerState("b", 0)
	m.SetWebSocketClients(1)

	if m.Registry() != nil {
		t.Error("nil Metrics should have nil registry")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestNewIsIndependent(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.MessageIngested("x")
	if got := testutil.ToFloat64(b.messagesIngested.WithLabelValues("x")); got != 0 {
		t.Errorf("second registry saw %v", got)
	}
}

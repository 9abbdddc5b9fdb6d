package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/agri-gateway/internal/infrastructure/config"
)

// fakeInflux answers /ping and records line-protocol bodies posted to /api/v2/write.
type fakeInflux struct {
	mu     sync.Mutex
	writes []string
	server *httptest.Server
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

// waitForBody polls until a write has landed; the write API hands batches to
// a background goroutine, so Flush can return before the request completes.
func (f *fakeInflux) waitForBody(t *testing.T) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if body := f.body(); body != "" {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no write received")
	return ""
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "agri",
		Bucket:        "agri",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), testConfig("http://127.0.0.1:1"))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_AndHealthCheck(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := Connect(context.Background(), testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteSensorReading(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := Connect(context.Background(), testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	client.WriteSensorReading("agrigw-test", 7, map[string]float64{"moisture": 41, "temperature": 22.5}, ts)
	client.Flush()

	body := fake.waitForBody(t)
	for _, want := range []string{
		"sensor_data,gateway_id=agrigw-test",
		"moisture=41",
		"temperature=22.5",
		"sequence=7i",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("write body %q missing %q", body, want)
		}
	}
}

func TestWriteSensorReading_NoFieldsSkipped(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := Connect(context.Background(), testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteSensorReading("agrigw-test", 1, nil, time.Now())
	client.Flush()
	time.Sleep(50 * time.Millisecond)

	if body := fake.body(); body != "" {
		t.Errorf("expected no writes, got %q", body)
	}
}

func TestWriteCommand(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := Connect(context.Background(), testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteCommand("agrigw-test", "agri/control/pump", false, time.Now())
	client.Flush()

	body := fake.waitForBody(t)
	if !strings.Contains(body, "command,gateway_id=agrigw-test,outcome=failed,topic=agri/control/pump count=1i") {
		t.Errorf("write body = %q", body)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	// Writes after close are dropped.
	c.WriteSensorReading("gw", 1, map[string]float64{"x": 1}, time.Now())
	c.Flush()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

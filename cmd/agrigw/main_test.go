package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/agri-gateway/internal/infrastructure/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("AGRIGW_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

func TestRun_InvalidConfigValues(t *testing.T) {
	t.Setenv("AGRIGW_CONFIG", writeConfig(t, `
mqtt:
  qos: 7
telemetry:
  history_capacity: 0
`))

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail validation")
	}
	if !strings.Contains(err.Error(), "mqtt.qos") || !strings.Contains(err.Error(), "history_capacity") {
		t.Errorf("run() error = %v, want both validation failures", err)
	}
}

func TestRun_BrokerUnreachable(t *testing.T) {
	t.Setenv("AGRIGW_CONFIG", writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
    client_id: "agrigw-test"
  reconnect:
    initial_delay: 1
    max_delay: 1
    max_attempts: 1
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
	if !strings.Contains(err.Error(), "connecting to MQTT") {
		t.Errorf("run() error = %v, want MQTT connection error", err)
	}
}

func TestOpenAudit_InMemory(t *testing.T) {
	ctx := context.Background()

	db, err := openAudit(ctx, config.AuditConfig{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("openAudit() error = %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM command_audit").Scan(&count); err != nil {
		t.Fatalf("command_audit not migrated: %v", err)
	}
}

func TestOpenAudit_EmptyPath(t *testing.T) {
	if _, err := openAudit(context.Background(), config.AuditConfig{}); err == nil {
		t.Error("openAudit() with empty path should fail")
	}
}

// Agri Gateway - MQTT to HTTP bridge for a small farm IoT deployment.
//
// The gateway subscribes to sensor and status topics published by the field
// controller, keeps a bounded in-memory history plus the latest device status,
// and exposes both over a REST API and a WebSocket live feed. Pump, light and
// configuration commands posted to the API are relayed back onto the bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/agri-gateway/internal/api"
	"github.com/nerrad567/agri-gateway/internal/audit"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/config"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/database"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/metrics"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/agri-gateway/internal/ingest"
	"github.com/nerrad567/agri-gateway/internal/relay"
	"github.com/nerrad567/agri-gateway/internal/telemetry"
	"github.com/nerrad567/agri-gateway/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the gateway together and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	started := time.Now()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting agri gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.ResolvePath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath == "" {
		log.Info("no config file found, using defaults and environment")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version).With("gateway_id", cfg.Gateway.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	m := metrics.New()

	store, err := telemetry.NewStore(telemetry.Options{
		Capacity:       cfg.Telemetry.HistoryCapacity,
		DefaultWindow:  cfg.Telemetry.DefaultWindow,
		StatusDefaults: cfg.Telemetry.StatusDefaults,
		OnSizeChange:   m.SetHistorySize,
	})
	if err != nil {
		return fmt.Errorf("creating telemetry store: %w", err)
	}
	log.Info("telemetry store ready",
		"capacity", store.Capacity(),
		"default_window", store.DefaultWindowSize(),
	)

	// Command audit log (optional)
	var auditRepo audit.Repository
	var auditDB *database.DB
	if cfg.Audit.Enabled {
		auditDB, err = openAudit(ctx, cfg.Audit)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := auditDB.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()
		auditRepo = audit.NewSQLiteRepository(auditDB.DB)
		log.Info("command audit enabled", "path", cfg.Audit.Path)
	} else {
		log.Info("command audit disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT, log)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	m.SetMQTTConnected(true)
	log.Info("MQTT connected",
		"broker", cfg.MQTT.BrokerAddress(),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		m.SetMQTTConnected(true)
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		m.SetMQTTConnected(false)
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub is shared: the ingestor broadcasts, the API serves clients.
	hub := api.NewHub(cfg.WebSocket, log, m)
	go hub.Run(ctx)

	ingestDeps := ingest.Deps{
		Store:       store,
		Topics:      mqttClient.Topics(),
		GatewayID:   cfg.Gateway.ID,
		Logger:      log,
		Metrics:     m,
		Broadcaster: hub,
	}
	relayDeps := relay.Deps{
		Publisher: mqttClient,
		Store:     store,
		Topics:    mqttClient.Topics(),
		QoS:       byte(cfg.MQTT.QoS),
		Breaker:   cfg.Relay.Breaker,
		GatewayID: cfg.Gateway.ID,
		Logger:    log,
		Metrics:   m,
	}
	if influxClient != nil {
		ingestDeps.Sink = influxClient
		relayDeps.Sink = influxClient
	}
	if auditRepo != nil {
		relayDeps.Recorder = auditRepo
	}

	ingestor, err := ingest.New(ingestDeps)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}
	if err := ingestor.Subscribe(mqttClient, byte(cfg.MQTT.QoS)); err != nil {
		return fmt.Errorf("subscribing to inbound topics: %w", err)
	}
	log.Info("ingesting from bus", "topics", mqttClient.Topics().Inbound())

	commandRelay, err := relay.New(relayDeps)
	if err != nil {
		return fmt.Errorf("creating command relay: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Store:   store,
		Relay:   commandRelay,
		Bus:     mqttClient,
		Audit:   auditRepo,
		Metrics: m,
		Hub:     hub,
		Version: version,
		Started: started,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, mqttClient, influxClient, auditDB); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, audit database.

	log.Info("agri gateway stopped")
	return nil
}

// openAudit opens the audit database and applies pending migrations.
func openAudit(ctx context.Context, cfg config.AuditConfig) (*database.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Already returning the migration error
		return nil, fmt.Errorf("running audit migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies the infrastructure connections. influxClient and db
// may be nil when their features are disabled.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client, db *database.DB) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("audit database: %w", err)
		}
	}

	return nil
}

// agrisim publishes synthetic field-controller readings to the broker the
// gateway listens on. It reads the same configuration as the gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/agri-gateway/internal/infrastructure/config"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/agri-gateway/internal/simulator"
)

func main() {
	interval := flag.Duration("interval", 5*time.Second, "publish interval")
	statusEvery := flag.Int("status-every", 6, "publish a status document every N readings (0 disables)")
	clientID := flag.String("client-id", "agrisim", "MQTT client ID")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *interval, *statusEvery, *clientID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, interval time.Duration, statusEvery int, clientID string) error {
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, "sim").With("component", "agrisim")

	// The simulator must not share the gateway's client ID or the broker
	// disconnects one of them, and must not announce itself as the gateway.
	cfg.MQTT.Broker.ClientID = clientID
	cfg.MQTT.DisablePresence = true

	client, err := mqtt.Connect(ctx, cfg.MQTT, log)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	sim, err := simulator.New(client, simulator.Options{
		Topics:      client.Topics(),
		QoS:         byte(cfg.MQTT.QoS),
		Interval:    interval,
		StatusEvery: statusEvery,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	log.Info("publishing simulated readings",
		"broker", cfg.MQTT.BrokerAddress(),
		"topic", client.Topics().SensorData(),
		"interval", interval.String(),
	)
	return sim.Run(ctx)
}

// Package logging provides structured logging for the agri gateway.
//
// It wraps log/slog so every component logs with the same format, level
// filter and default fields (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting gateway", "port", 3000)
//	ingestLog := logger.With("component", "ingest")
//
// Never log broker passwords or the InfluxDB token.
package logging

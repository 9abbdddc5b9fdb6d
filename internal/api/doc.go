// Package api implements the gateway's HTTP REST API and WebSocket live feed.
//
// This package provides:
//   - Read endpoints over the telemetry store (status, windows, ranges, statistics)
//   - Command endpoints that forward pump, light and config changes to the bus
//   - A WebSocket hub broadcasting sensor readings and status changes
//   - Middleware stack (request ID, logging and metrics, recovery, CORS, body limit)
//   - Prometheus exposition at /metrics
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Graceful Degradation
//
// The server keeps answering reads while the broker is unreachable. Commands
// fail with 502 until the bus recovers, and /api/health reports "degraded".
//
// Errors use a single body shape:
//
//	{"status": 400, "code": "validation_error", "message": "..."}
package api

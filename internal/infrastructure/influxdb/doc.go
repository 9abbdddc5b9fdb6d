// Package influxdb mirrors gateway telemetry into InfluxDB v2.
//
// The mirror is optional (influxdb.enabled). When enabled, every accepted
// reading's numeric fields are written to the "sensor_data" measurement and
// every relayed command to "command", tagged with the gateway ID. Writes are
// batched and non-blocking so the bus handler never waits on InfluxDB.
//
// The in-memory history remains the source of truth for the HTTP API; this
// package is write-only.
package influxdb

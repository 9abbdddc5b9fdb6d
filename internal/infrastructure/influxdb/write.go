package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the gateway.
const (
	MeasurementSensor  = "sensor_data"
	MeasurementCommand = "command"
)

// WriteSensorReading mirrors the numeric fields of one reading.
//
// Readings without numeric fields are skipped; InfluxDB rejects points with
// no fields.
//
//	client.WriteSensorReading("agrigw-001", 42, map[string]float64{"moisture": 41, "temperature": 22.5}, ts)
func (c *Client) WriteSensorReading(gatewayID string, sequence uint64, fields map[string]float64, ts time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	pointFields := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		pointFields[k] = v
	}
	pointFields["sequence"] = int64(sequence) // #nosec G115 -- sequence fits in int64 for any realistic uptime

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementSensor,
		map[string]string{"gateway_id": gatewayID},
		pointFields,
		ts,
	))
}

// WriteCommand records one relayed command and its outcome.
func (c *Client) WriteCommand(gatewayID, topic string, sent bool, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	outcome := "sent"
	if !sent {
		outcome = "failed"
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementCommand,
		map[string]string{
			"gateway_id": gatewayID,
			"topic":      topic,
			"outcome":    outcome,
		},
		map[string]interface{}{"count": int64(1)},
		ts,
	))
}

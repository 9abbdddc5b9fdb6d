package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Keys assigned by the gateway. Device-sent values for these are discarded.
const (
	KeyTimestamp = "timestamp"
	KeySequence  = "sequence"
)

// Sensor fields with a known meaning. Other fields pass through untouched.
var (
	sensorNumericKeys = []string{"moisture", "temperature", "humidity"}
	sensorBoolKeys    = []string{"pumpState", "lightState"}
)

// Reading is one accepted sensor-data message. It is immutable: accessors
// return copies and nothing in this package changes a Reading after append.
type Reading struct {
	sequence  uint64
	timestamp time.Time
	fields    map[string]any
}

// NewReading builds a Reading from already-validated fields. The map is
// copied; reserved keys are dropped.
func NewReading(sequence uint64, timestamp time.Time, fields map[string]any) Reading {
	own := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == KeyTimestamp || k == KeySequence {
			continue
		}
		own[k] = v
	}
	return Reading{
		sequence:  sequence,
		timestamp: timestamp.UTC(),
		fields:    own,
	}
}

// Sequence returns the arrival-order number assigned at ingestion.
func (r Reading) Sequence() uint64 { return r.sequence }

// Timestamp returns the server ingestion time (UTC).
func (r Reading) Timestamp() time.Time { return r.timestamp }

// Fields returns a shallow copy of the device fields.
func (r Reading) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Value returns the raw value of a device field.
func (r Reading) Value(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Number returns a device field as a float64 when it is a number or numeric string.
func (r Reading) Number(key string) (float64, bool) {
	v, ok := r.fields[key]
	if !ok {
		return 0, false
	}
	return asNumeric(v)
}

// NumericFields returns every device field that reads as a number.
func (r Reading) NumericFields() map[string]float64 {
	out := make(map[string]float64, len(r.fields))
	for k, v := range r.fields {
		if f, ok := asNumeric(v); ok {
			out[k] = f
		}
	}
	return out
}

// MarshalJSON renders the reading flat: device fields plus timestamp and sequence.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.fields)+2)
	for k, v := range r.fields {
		out[k] = v
	}
	out[KeyTimestamp] = r.timestamp.Format(time.RFC3339Nano)
	out[KeySequence] = r.sequence
	return json.Marshal(out)
}

// decodeObject parses payload as a JSON object.
func decodeObject(payload []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedMessage)
	}
	return obj, nil
}

// ParseSensorData decodes and validates a sensor-data payload.
//
// Known numeric fields must be numbers or numeric strings and known boolean
// fields must be booleans. A null on a known field is treated as absent.
// Reserved keys (timestamp, sequence) are removed.
func ParseSensorData(payload []byte) (map[string]any, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	delete(fields, KeyTimestamp)
	delete(fields, KeySequence)

	for _, key := range sensorNumericKeys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if v == nil {
			delete(fields, key)
			continue
		}
		if _, ok := asNumeric(v); !ok {
			return nil, fmt.Errorf("%w: field %q must be numeric, got %T", ErrMalformedMessage, key, v)
		}
	}
	for _, key := range sensorBoolKeys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if v == nil {
			delete(fields, key)
			continue
		}
		if _, ok := v.(bool); !ok {
			return nil, fmt.Errorf("%w: field %q must be boolean, got %T", ErrMalformedMessage, key, v)
		}
	}

	return fields, nil
}

// sensorStatusMirror extracts the fields a sensor message copies into the
// status snapshot. Numeric strings are normalised to numbers.
func sensorStatusMirror(fields map[string]any) map[string]any {
	mirror := make(map[string]any, 3)
	if v, ok := fields["moisture"]; ok {
		if f, ok := asNumeric(v); ok {
			mirror["moisture"] = f
		}
	}
	for _, key := range sensorBoolKeys {
		if v, ok := fields[key]; ok {
			mirror[key] = v
		}
	}
	return mirror
}

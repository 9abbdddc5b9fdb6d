package telemetry

import (
	"fmt"
	"time"
)

// Status keys with a fixed meaning.
const (
	KeyMoistureThreshold   = "moistureThreshold"
	KeyAutoWatering        = "autoWatering"
	KeyManualPumpOverride  = "manualPumpOverride"
	KeyManualLightOverride = "manualLightOverride"
	KeyLightOnHour         = "lightOnHour"
	KeyLightOffHour        = "lightOffHour"
	KeyAutoLight           = "autoLight"
	KeyPumpState           = "pumpState"
	KeyLightState          = "lightState"
	KeyMoisture            = "moisture"
	KeyLastUpdate          = "lastUpdate"
)

var (
	statusNumberKeys = map[string]struct{}{
		KeyMoistureThreshold: {},
		KeyLightOnHour:       {},
		KeyLightOffHour:      {},
		KeyMoisture:          {},
	}
	statusBoolKeys = map[string]struct{}{
		KeyAutoWatering:        {},
		KeyManualPumpOverride:  {},
		KeyManualLightOverride: {},
		KeyAutoLight:           {},
		KeyPumpState:           {},
		KeyLightState:          {},
	}
)

// StatusSnapshot is the current-state view of the field device. Unknown keys
// sent by devices are kept alongside the known ones.
type StatusSnapshot map[string]any

// DefaultStatus returns the initial snapshot.
func DefaultStatus() StatusSnapshot {
	return StatusSnapshot{
		KeyMoistureThreshold:   float64(40),
		KeyAutoWatering:        true,
		KeyManualPumpOverride:  false,
		KeyManualLightOverride: false,
		KeyLightOnHour:         float64(6),
		KeyLightOffHour:        float64(18),
		KeyAutoLight:           true,
		KeyPumpState:           false,
		KeyLightState:          false,
		KeyMoisture:            float64(0),
		KeyLastUpdate:          nil,
	}
}

// Clone returns a shallow copy.
func (s StatusSnapshot) Clone() StatusSnapshot {
	out := make(StatusSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// LastUpdate returns the time of the last merge, if any.
func (s StatusSnapshot) LastUpdate() (time.Time, bool) {
	t, ok := s[KeyLastUpdate].(time.Time)
	return t, ok
}

// Bool returns a boolean status field.
func (s StatusSnapshot) Bool(key string) (value, ok bool) {
	value, ok = s[key].(bool)
	return value, ok
}

// Number returns a numeric status field.
func (s StatusSnapshot) Number(key string) (float64, bool) {
	return asNumber(s[key])
}

// normalizeUpdate validates known-key types and returns a copy of update with
// known numbers converted to float64 and any lastUpdate removed.
func normalizeUpdate(update map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(update))
	for k, v := range update {
		if k == KeyLastUpdate {
			continue
		}
		if _, ok := statusNumberKeys[k]; ok {
			f, ok := asNumber(v)
			if !ok {
				return nil, fmt.Errorf("%w: status field %q must be a number, got %T", ErrMalformedMessage, k, v)
			}
			out[k] = f
			continue
		}
		if _, ok := statusBoolKeys[k]; ok {
			if _, ok := v.(bool); !ok {
				return nil, fmt.Errorf("%w: status field %q must be a boolean, got %T", ErrMalformedMessage, k, v)
			}
		}
		out[k] = v
	}
	return out, nil
}

// merge overwrites exactly the keys in update and stamps lastUpdate.
// update must already be normalised.
func (s StatusSnapshot) merge(update map[string]any, now time.Time) {
	for k, v := range update {
		s[k] = v
	}
	s[KeyLastUpdate] = now
}

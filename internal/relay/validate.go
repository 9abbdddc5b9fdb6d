package relay

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

// Actuators accepted by Control.
const (
	ActuatorPump  = "pump"
	ActuatorLight = "light"
)

// ModeManual is applied when a control request carries no mode.
const ModeManual = "manual"

const (
	maxMoistureThreshold = 100
	maxHour              = 23
)

// ControlCommand is a validated actuator command. Its JSON form is the bus payload.
type ControlCommand struct {
	State bool   `json:"state"`
	Mode  string `json:"mode"`
}

// ConfigUpdate holds only the recognised configuration fields of a request.
type ConfigUpdate map[string]any

// ParseControl validates a control request body. state must be a boolean;
// mode, when present and non-empty, must be a string.
func ParseControl(body []byte) (ControlCommand, error) {
	obj, err := decodeBody(body)
	if err != nil {
		return ControlCommand{}, err
	}

	state, ok := obj["state"].(bool)
	if !ok {
		return ControlCommand{}, fmt.Errorf("%w: state must be a boolean", ErrValidation)
	}

	cmd := ControlCommand{State: state, Mode: ModeManual}
	switch mode := obj["mode"].(type) {
	case nil:
	case string:
		if mode != "" {
			cmd.Mode = mode
		}
	default:
		return ControlCommand{}, fmt.Errorf("%w: mode must be a string", ErrValidation)
	}
	return cmd, nil
}

// ParseConfig validates a configuration request body. Unknown fields are
// ignored; a recognised field with the wrong type or out of range fails the
// whole request, as does a body with no recognised field.
func ParseConfig(body []byte) (ConfigUpdate, error) {
	obj, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	update := ConfigUpdate{}

	if v, ok := obj[telemetry.KeyMoistureThreshold]; ok {
		f, ok := v.(float64)
		if !ok || f < 0 || f > maxMoistureThreshold {
			return nil, fmt.Errorf("%w: %s must be a number between 0 and %d",
				ErrValidation, telemetry.KeyMoistureThreshold, maxMoistureThreshold)
		}
		update[telemetry.KeyMoistureThreshold] = f
	}

	for _, key := range []string{telemetry.KeyLightOnHour, telemetry.KeyLightOffHour} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) || f < 0 || f > maxHour {
			return nil, fmt.Errorf("%w: %s must be an integer hour between 0 and %d", ErrValidation, key, maxHour)
		}
		update[key] = f
	}

	for _, key := range []string{telemetry.KeyAutoWatering, telemetry.KeyAutoLight} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrValidation, key)
		}
		update[key] = b
	}

	if len(update) == 0 {
		return nil, fmt.Errorf("%w: no recognised configuration field", ErrValidation)
	}
	return update, nil
}

func decodeBody(body []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %w", ErrValidation, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrValidation)
	}
	return obj, nil
}

// controlMerge is the optimistic status update for a sent control command.
func controlMerge(actuator string, cmd ControlCommand) map[string]any {
	manual := cmd.Mode == ModeManual
	if actuator == ActuatorLight {
		return map[string]any{
			telemetry.KeyLightState:          cmd.State,
			telemetry.KeyManualLightOverride: manual,
		}
	}
	return map[string]any{
		telemetry.KeyPumpState:          cmd.State,
		telemetry.KeyManualPumpOverride: manual,
	}
}

package mqtt

import "strings"

// DefaultPrefix is the topic namespace used by the field devices.
const DefaultPrefix = "agri"

// Topics builds the gateway's topic names under a configurable prefix.
//
//	topics := mqtt.NewTopics("agri")
//	topics.Control("pump") // "agri/control/pump"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for the given prefix. Leading and trailing
// slashes are trimmed; an empty prefix falls back to DefaultPrefix.
func NewTopics(prefix string) Topics {
	p := strings.Trim(prefix, "/")
	if p == "" {
		p = DefaultPrefix
	}
	return Topics{prefix: p}
}

// Prefix returns the normalised prefix.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultPrefix
	}
	return t.prefix
}

// SensorData is where devices publish periodic readings (inbound).
func (t Topics) SensorData() string {
	return t.Prefix() + "/sensor/data"
}

// Status is where devices publish status documents (inbound).
func (t Topics) Status() string {
	return t.Prefix() + "/status"
}

// Control returns the command topic for an actuator, e.g. "agri/control/pump".
func (t Topics) Control(actuator string) string {
	return t.Prefix() + "/control/" + actuator
}

// Config is where configuration updates are published (outbound).
func (t Topics) Config() string {
	return t.Prefix() + "/config"
}

// GatewayStatus carries the retained online/offline state and the LWT.
func (t Topics) GatewayStatus() string {
	return t.Prefix() + "/gateway/status"
}

// Inbound lists the topics the gateway subscribes to.
func (t Topics) Inbound() []string {
	return []string{t.SensorData(), t.Status()}
}

// All matches every topic in the namespace. Useful for debugging tools.
func (t Topics) All() string {
	return t.Prefix() + "/#"
}

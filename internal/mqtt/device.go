package mqtt

import "monoamp/internal/entity"

// DeviceInfo holds the Home Assistant device registry fields shared by
// every discovery payload, so all entities group under one device page.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// NewDeviceInfo creates the device block from the gateway info. The
// persistent instance ID is the primary identifier so the device survives
// renames; the integration entry ID is kept as a second identifier.
func NewDeviceInfo(instanceID string, gateway entity.DeviceInfo) DeviceInfo {
	identifiers := []string{instanceID}
	if gateway.Identifier != "" && gateway.Identifier != instanceID {
		identifiers = append(identifiers, gateway.Identifier)
	}
	return DeviceInfo{
		Identifiers:  identifiers,
		Name:         gateway.Name,
		Manufacturer: gateway.Manufacturer,
		Model:        gateway.Model,
	}
}

// Availability is one entry of a discovery availability list
type Availability struct {
	Topic string `json:"topic"`
}

// DiscoveryConfig is the JSON payload of an HA MQTT discovery message.
// Only the fields relevant to the component are set.
type DiscoveryConfig struct {
	Name             string         `json:"name"`
	UniqueID         string         `json:"unique_id"`
	StateTopic       string         `json:"state_topic,omitempty"`
	CommandTopic     string         `json:"command_topic,omitempty"`
	Availability     []Availability `json:"availability,omitempty"`
	AvailabilityMode string         `json:"availability_mode,omitempty"`
	Device           DeviceInfo     `json:"device"`
	Icon             string         `json:"icon,omitempty"`

	// switch
	PayloadOn  string `json:"payload_on,omitempty"`
	PayloadOff string `json:"payload_off,omitempty"`

	// number
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step float64  `json:"step,omitempty"`
	Mode string   `json:"mode,omitempty"`

	// select
	Options []string `json:"options,omitempty"`

	// button
	PayloadPress string `json:"payload_press,omitempty"`
}

// Package mqtt publishes the amplifier entities to Home Assistant using
// MQTT discovery and routes commands from Home Assistant back to them.
//
// Topic layout, with <base> = monoamp/<device_name>:
//
//	<prefix>/<component>/<device_name>/<object>/config   discovery (retained)
//	<base>/availability                                  online / offline (will)
//	<base>/<object>/availability                         per-entity availability
//	<base>/<object>/state                                current state
//	<base>/<object>/set                                  commands
package mqtt

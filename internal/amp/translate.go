package amp

import "math"

const (
	// ReceiverMaxVolume is the hardware volume ceiling in raw units
	ReceiverMaxVolume = 38

	// ChannelOffset maps keypad numbers (starting at 12) to channels (starting at 1)
	ChannelOffset = 11

	// NoneSource is the placeholder name the amplifier reports for unused inputs
	NoneSource = "None"

	// volumeDisplayCap is the 80% convention used to present volume as a fraction.
	// It is fixed and does not follow the configured max volume percent.
	volumeDisplayCap = 0.8

	maxTone    = 14
	maxBalance = 20
)

// Channel converts a keypad number to the amplifier's internal channel
func Channel(zoneID int) int {
	return zoneID - ChannelOffset
}

// VolumeLevel converts a raw volume to the 0..1 fraction shown to users
func VolumeLevel(raw int) float64 {
	return float64(raw) / (ReceiverMaxVolume * volumeDisplayCap)
}

// RawVolume converts a 0..1 fraction to raw units under the configured cap
func RawVolume(fraction float64, maxPercent int) int {
	raw := int(math.Round(fraction * (float64(maxPercent) / 100) * ReceiverMaxVolume))
	return clamp(raw, 0, PropertyMax(PropVolume, maxPercent))
}

// PropertyMax returns the highest raw value a property accepts
func PropertyMax(p Property, maxPercent int) int {
	switch p {
	case PropVolume:
		return int(ReceiverMaxVolume * (float64(maxPercent) / 100))
	case PropBalance:
		return maxBalance
	case PropBass, PropTreble:
		return maxTone
	case PropPower, PropMute:
		return 1
	}
	return math.MaxInt32
}

// ClampValue bounds a raw property value to [0, PropertyMax]
func ClampValue(p Property, value, maxPercent int) int {
	return clamp(value, 0, PropertyMax(p, maxPercent))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

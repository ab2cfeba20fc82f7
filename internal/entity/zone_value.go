package entity

import (
	"context"
	"strings"

	"monoamp/internal/amp"

	"go.uber.org/zap"
)

// ZoneValue exposes one numeric zone property as a number control
type ZoneValue struct {
	zoneBase
	property amp.Property
	logger   *zap.Logger
}

// NewZoneValue creates the number control for property on keypad zoneID
func NewZoneValue(entryID string, zoneID int, property amp.Property, data DataSource, gateway Commander, maxPercent int, logger *zap.Logger) *ZoneValue {
	return &ZoneValue{
		zoneBase: zoneBase{
			entryID:    entryID,
			zoneID:     zoneID,
			data:       data,
			gateway:    gateway,
			maxPercent: maxPercent,
		},
		property: property,
		logger:   logger.Named("zone_value").With(zap.Int("zone", zoneID), zap.String("property", string(property))),
	}
}

func (v *ZoneValue) UniqueID() string {
	return v.baseID() + "_zone_" + v.property.Name()
}

func (v *ZoneValue) Kind() Kind {
	return KindNumber
}

func (v *ZoneValue) Property() amp.Property {
	return v.property
}

func (v *ZoneValue) Name() string {
	label := capitalize(v.property.Name())
	z, ok := v.zone()
	if !ok {
		return "----- " + label
	}
	return z.Name + " " + label
}

// Available only while the zone is powered
func (v *ZoneValue) Available() bool {
	z, ok := v.zone()
	return ok && z.Power
}

func (v *ZoneValue) Value() int {
	z, ok := v.zone()
	if !ok {
		return 0
	}
	return z.Value(v.property)
}

func (v *ZoneValue) Min() int {
	return 0
}

func (v *ZoneValue) Max() int {
	return amp.PropertyMax(v.property, v.maxPercent)
}

func (v *ZoneValue) Step() int {
	return 1
}

// SetValue sends value, clamped to [Min, Max]
func (v *ZoneValue) SetValue(ctx context.Context, value int) error {
	clamped := amp.ClampValue(v.property, value, v.maxPercent)
	if clamped != value {
		v.logger.Debug("Clamped out of range value", zap.Int("requested", value), zap.Int("sent", clamped))
	}
	return v.set(ctx, v.property, clamped)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

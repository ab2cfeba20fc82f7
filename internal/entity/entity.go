// Package entity exposes the amplifier zones and the pianod rooms as
// host-facing entities. Entities hold no state of their own: every read
// goes through the coordinator's published snapshot.
package entity

import (
	"context"
	"errors"
	"fmt"

	"monoamp/internal/amp"
)

// Kind is the host platform an entity belongs to
type Kind string

const (
	KindMediaPlayer Kind = "media_player"
	KindNumber      Kind = "number"
	KindSwitch      Kind = "switch"
)

// ErrUnknownSource is returned when selecting a source the amplifier does not offer
var ErrUnknownSource = errors.New("entity: unknown source")

// Entity is the common surface of every façade
type Entity interface {
	UniqueID() string
	Name() string
	Kind() Kind
	Available() bool
	Device() DeviceInfo
}

// DataSource provides the latest published snapshot
type DataSource interface {
	Data() *amp.Snapshot
}

// Commander sends control requests to the amplifier
type Commander interface {
	Command(ctx context.Context, channel int, prop amp.Property, value int) (string, error)
	Step(ctx context.Context, channel int, prop amp.Property, up bool) (string, error)
}

// DeviceInfo describes the physical device every entity belongs to
type DeviceInfo struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

// Device returns the gateway device info for an integration instance
func Device(entryID string) DeviceInfo {
	return DeviceInfo{
		Identifier:   entryID,
		Name:         "MonoAmp Gateway",
		Manufacturer: "MonoPrice",
		Model:        "MA1000",
	}
}

// zoneBase is shared by every façade bound to a keypad
type zoneBase struct {
	entryID    string
	zoneID     int
	data       DataSource
	gateway    Commander
	maxPercent int
}

func (b *zoneBase) zone() (amp.Zone, bool) {
	return b.data.Data().Zone(b.zoneID)
}

// ZoneID returns the keypad number the entity is bound to
func (b *zoneBase) ZoneID() int {
	return b.zoneID
}

// Channel returns the amplifier channel, or 0 while the zone is missing
func (b *zoneBase) Channel() int {
	z, ok := b.zone()
	if !ok {
		return 0
	}
	return z.Channel()
}

func (b *zoneBase) Device() DeviceInfo {
	return Device(b.entryID)
}

func (b *zoneBase) baseID() string {
	return fmt.Sprintf("%s_%d", b.entryID, b.zoneID)
}

// set sends one Value request, addressing the channel derived from the keypad number
func (b *zoneBase) set(ctx context.Context, prop amp.Property, value int) error {
	_, err := b.gateway.Command(ctx, amp.Channel(b.zoneID), prop, value)
	if err != nil {
		return fmt.Errorf("failed to set %s on zone %d: %w", prop.Name(), b.zoneID, err)
	}
	return nil
}

package entity

import (
	"context"

	"monoamp/internal/amp"
)

// ZoneSwitch exposes zone power as a switch
type ZoneSwitch struct {
	zoneBase
}

// NewZoneSwitch creates the power switch for keypad zoneID
func NewZoneSwitch(entryID string, zoneID int, data DataSource, gateway Commander) *ZoneSwitch {
	return &ZoneSwitch{
		zoneBase: zoneBase{
			entryID: entryID,
			zoneID:  zoneID,
			data:    data,
			gateway: gateway,
		},
	}
}

func (s *ZoneSwitch) UniqueID() string {
	return s.baseID() + "_switch"
}

func (s *ZoneSwitch) Kind() Kind {
	return KindSwitch
}

func (s *ZoneSwitch) Name() string {
	z, ok := s.zone()
	if !ok {
		return "None"
	}
	return z.Name
}

func (s *ZoneSwitch) Available() bool {
	_, ok := s.zone()
	return ok
}

func (s *ZoneSwitch) IsOn() bool {
	z, ok := s.zone()
	return ok && z.Power
}

func (s *ZoneSwitch) TurnOn(ctx context.Context) error {
	return s.set(ctx, amp.PropPower, 1)
}

func (s *ZoneSwitch) TurnOff(ctx context.Context) error {
	return s.set(ctx, amp.PropPower, 0)
}

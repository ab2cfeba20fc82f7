package entity

import (
	"context"
	"fmt"

	"monoamp/internal/amp"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Media player states
const (
	StateOn      = "on"
	StateOff     = "off"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// ZoneSettings is the payload of the set_zone action. Nil fields are left alone.
// VolumeValue is on the 0..38 hardware scale and is scaled by the volume cap
// like any other volume level.
type ZoneSettings struct {
	TrebleValue  *int  `json:"treble_value,omitempty"`
	BassValue    *int  `json:"bass_value,omitempty"`
	BalanceValue *int  `json:"balance_value,omitempty"`
	VolumeValue  *int  `json:"volume_value,omitempty"`
	MuteValue    *bool `json:"mute_value,omitempty"`
}

// Empty reports whether no field is set
func (s ZoneSettings) Empty() bool {
	return s.TrebleValue == nil && s.BassValue == nil && s.BalanceValue == nil &&
		s.VolumeValue == nil && s.MuteValue == nil
}

// ZonePlayer presents one zone as a media player
type ZonePlayer struct {
	zoneBase
	logger *zap.Logger
}

// NewZonePlayer creates the media player for keypad zoneID
func NewZonePlayer(entryID string, zoneID int, data DataSource, gateway Commander, maxPercent int, logger *zap.Logger) *ZonePlayer {
	return &ZonePlayer{
		zoneBase: zoneBase{
			entryID:    entryID,
			zoneID:     zoneID,
			data:       data,
			gateway:    gateway,
			maxPercent: maxPercent,
		},
		logger: logger.Named("zone_player").With(zap.Int("zone", zoneID)),
	}
}

func (p *ZonePlayer) UniqueID() string {
	return p.baseID()
}

func (p *ZonePlayer) Kind() Kind {
	return KindMediaPlayer
}

func (p *ZonePlayer) Name() string {
	z, ok := p.zone()
	if !ok {
		return "--- Zone"
	}
	return z.Name + " Zone"
}

func (p *ZonePlayer) Available() bool {
	_, ok := p.zone()
	return ok
}

// State is on while the zone is powered
func (p *ZonePlayer) State() string {
	if z, ok := p.zone(); ok && z.Power {
		return StateOn
	}
	return StateOff
}

// VolumeLevel returns the volume as a 0..1 fraction
func (p *ZonePlayer) VolumeLevel() float64 {
	z, ok := p.zone()
	if !ok {
		return 0
	}
	return amp.VolumeLevel(z.Volume)
}

func (p *ZonePlayer) IsVolumeMuted() bool {
	z, ok := p.zone()
	return ok && z.Muted
}

// Source returns the name of the selected input
func (p *ZonePlayer) Source() string {
	z, ok := p.zone()
	if !ok {
		return ""
	}
	return p.data.Data().SourceName(z.Source)
}

// SourceList returns the selectable inputs
func (p *ZonePlayer) SourceList() []string {
	if !p.Available() {
		return []string{}
	}
	return p.data.Data().SelectableSources()
}

func (p *ZonePlayer) TurnOn(ctx context.Context) error {
	return p.set(ctx, amp.PropPower, 1)
}

func (p *ZonePlayer) TurnOff(ctx context.Context) error {
	return p.set(ctx, amp.PropPower, 0)
}

// SetVolumeLevel sets the volume from a 0..1 fraction under the configured cap
func (p *ZonePlayer) SetVolumeLevel(ctx context.Context, fraction float64) error {
	return p.set(ctx, amp.PropVolume, amp.RawVolume(fraction, p.maxPercent))
}

func (p *ZonePlayer) VolumeUp(ctx context.Context) error {
	return p.step(ctx, true)
}

func (p *ZonePlayer) VolumeDown(ctx context.Context) error {
	return p.step(ctx, false)
}

func (p *ZonePlayer) step(ctx context.Context, up bool) error {
	if _, err := p.gateway.Step(ctx, amp.Channel(p.zoneID), amp.PropVolume, up); err != nil {
		return fmt.Errorf("failed to step volume on zone %d: %w", p.zoneID, err)
	}
	return nil
}

func (p *ZonePlayer) MuteVolume(ctx context.Context, mute bool) error {
	value := 0
	if mute {
		value = 1
	}
	return p.set(ctx, amp.PropMute, value)
}

// SelectSource selects an input by name. The amplifier is addressed with the
// input's position in the full source list, placeholders included.
func (p *ZonePlayer) SelectSource(ctx context.Context, name string) error {
	index, ok := p.data.Data().SourceIndex(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return p.set(ctx, amp.PropSource, index)
}

// SetZone applies every provided setting in a fixed order: treble, bass,
// balance, volume, mute. All fields are attempted; failures are combined.
func (p *ZonePlayer) SetZone(ctx context.Context, settings ZoneSettings) error {
	var errs error

	if settings.TrebleValue != nil {
		errs = multierr.Append(errs, p.set(ctx, amp.PropTreble, amp.ClampValue(amp.PropTreble, *settings.TrebleValue, p.maxPercent)))
	}
	if settings.BassValue != nil {
		errs = multierr.Append(errs, p.set(ctx, amp.PropBass, amp.ClampValue(amp.PropBass, *settings.BassValue, p.maxPercent)))
	}
	if settings.BalanceValue != nil {
		errs = multierr.Append(errs, p.set(ctx, amp.PropBalance, amp.ClampValue(amp.PropBalance, *settings.BalanceValue, p.maxPercent)))
	}
	if settings.VolumeValue != nil {
		errs = multierr.Append(errs, p.SetVolumeLevel(ctx, float64(*settings.VolumeValue)/amp.ReceiverMaxVolume))
	}
	if settings.MuteValue != nil {
		errs = multierr.Append(errs, p.MuteVolume(ctx, *settings.MuteValue))
	}

	if errs != nil {
		p.logger.Warn("set_zone partially failed",
			zap.Int("failures", len(multierr.Errors(errs))),
			zap.Error(errs))
	}
	return errs
}

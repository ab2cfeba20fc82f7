package mqtt

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"monoamp/internal/entity"
)

// Payloads used by switches and buttons
const (
	payloadOn    = "ON"
	payloadOff   = "OFF"
	payloadPress = "PRESS"
)

// object is one discovery entity derived from a façade. A façade can
// expand to several objects (a zone player becomes switches, a number,
// a select and buttons).
type object struct {
	id        string
	component string
	config    DiscoveryConfig

	// state renders the current state payload; nil for buttons
	state func() string

	// available reports per-entity availability; nil means always
	available func() bool

	// command handles a payload from the command topic; nil for sensors
	command func(ctx context.Context, payload string) error

	// options lists the current choices of a select; nil for other components
	options func() []string
}

func floatPtr(v float64) *float64 { return &v }

// buildObjects expands every entity into its discovery objects
func (b *Bridge) buildObjects(entities []entity.Entity) []*object {
	var objects []*object
	for _, e := range entities {
		switch ent := e.(type) {
		case *entity.ZonePlayer:
			objects = append(objects, b.zonePlayerObjects(ent)...)
		case *entity.ZoneValue:
			objects = append(objects, b.zoneValueObject(ent))
		case *entity.ZoneSwitch:
			objects = append(objects, b.zoneSwitchObject(ent))
		case *entity.PandoraPlayer:
			objects = append(objects, b.pandoraObjects(ent)...)
		}
	}

	for _, obj := range objects {
		obj.config.Device = b.device
		obj.config.Availability = []Availability{{Topic: b.availabilityTopic()}}
		if obj.available != nil {
			obj.config.Availability = append(obj.config.Availability, Availability{Topic: b.entityAvailabilityTopic(obj.id)})
			obj.config.AvailabilityMode = "all"
		}
		if obj.state != nil {
			obj.config.StateTopic = b.stateTopic(obj.id)
		}
		if obj.command != nil {
			obj.config.CommandTopic = b.commandTopic(obj.id)
		}
	}
	return objects
}

func (b *Bridge) zonePlayerObjects(p *entity.ZonePlayer) []*object {
	base := fmt.Sprintf("zone_%d", p.ZoneID())
	uid := p.UniqueID()

	return []*object{
		{
			id:        base + "_power",
			component: "switch",
			config: DiscoveryConfig{
				Name:       p.Name(),
				UniqueID:   uid + "_power",
				Icon:       "mdi:speaker",
				PayloadOn:  payloadOn,
				PayloadOff: payloadOff,
			},
			state:     func() string { return onOff(p.State() == entity.StateOn) },
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				on, err := parseOnOff(payload)
				if err != nil {
					return err
				}
				if on {
					return p.TurnOn(ctx)
				}
				return p.TurnOff(ctx)
			},
		},
		{
			id:        base + "_mute",
			component: "switch",
			config: DiscoveryConfig{
				Name:       p.Name() + " Mute",
				UniqueID:   uid + "_mute",
				Icon:       "mdi:volume-off",
				PayloadOn:  payloadOn,
				PayloadOff: payloadOff,
			},
			state:     func() string { return onOff(p.IsVolumeMuted()) },
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				mute, err := parseOnOff(payload)
				if err != nil {
					return err
				}
				return p.MuteVolume(ctx, mute)
			},
		},
		{
			id:        base + "_volume_level",
			component: "number",
			config: DiscoveryConfig{
				Name:     p.Name() + " Volume Level",
				UniqueID: uid + "_volume_level",
				Icon:     "mdi:volume-high",
				Min:      floatPtr(0),
				Max:      floatPtr(1),
				Step:     0.01,
				Mode:     "slider",
			},
			state:     func() string { return strconv.FormatFloat(p.VolumeLevel(), 'f', 2, 64) },
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				level, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
				if err != nil {
					return fmt.Errorf("invalid volume level %q: %w", payload, err)
				}
				return p.SetVolumeLevel(ctx, level)
			},
		},
		{
			id:        base + "_source",
			component: "select",
			config: DiscoveryConfig{
				Name:     p.Name() + " Source",
				UniqueID: uid + "_source",
				Icon:     "mdi:import",
			},
			options:   p.SourceList,
			state:     p.Source,
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				return p.SelectSource(ctx, payload)
			},
		},
		{
			id:        base + "_volume_up",
			component: "button",
			config: DiscoveryConfig{
				Name:         p.Name() + " Volume Up",
				UniqueID:     uid + "_volume_up",
				Icon:         "mdi:volume-plus",
				PayloadPress: payloadPress,
			},
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				return p.VolumeUp(ctx)
			},
		},
		{
			id:        base + "_volume_down",
			component: "button",
			config: DiscoveryConfig{
				Name:         p.Name() + " Volume Down",
				UniqueID:     uid + "_volume_down",
				Icon:         "mdi:volume-minus",
				PayloadPress: payloadPress,
			},
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				return p.VolumeDown(ctx)
			},
		},
	}
}

func (b *Bridge) zoneValueObject(v *entity.ZoneValue) *object {
	return &object{
		id:        fmt.Sprintf("zone_%d_%s", v.ZoneID(), v.Property().Name()),
		component: "number",
		config: DiscoveryConfig{
			Name:     v.Name(),
			UniqueID: v.UniqueID(),
			Icon:     "mdi:tune-vertical",
			Min:      floatPtr(float64(v.Min())),
			Max:      floatPtr(float64(v.Max())),
			Step:     float64(v.Step()),
			Mode:     "box",
		},
		state:     func() string { return strconv.Itoa(v.Value()) },
		available: v.Available,
		command: func(ctx context.Context, payload string) error {
			value, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", v.Property().Name(), payload, err)
			}
			return v.SetValue(ctx, int(math.Round(value)))
		},
	}
}

func (b *Bridge) zoneSwitchObject(s *entity.ZoneSwitch) *object {
	return &object{
		id:        fmt.Sprintf("zone_%d_switch", s.ZoneID()),
		component: "switch",
		config: DiscoveryConfig{
			Name:       s.Name(),
			UniqueID:   s.UniqueID(),
			Icon:       "mdi:power",
			PayloadOn:  payloadOn,
			PayloadOff: payloadOff,
		},
		state:     func() string { return onOff(s.IsOn()) },
		available: s.Available,
		command: func(ctx context.Context, payload string) error {
			on, err := parseOnOff(payload)
			if err != nil {
				return err
			}
			if on {
				return s.TurnOn(ctx)
			}
			return s.TurnOff(ctx)
		},
	}
}

func (b *Bridge) pandoraObjects(p *entity.PandoraPlayer) []*object {
	base := fmt.Sprintf("pandora_%d", p.Index())
	uid := p.UniqueID()

	button := func(suffix, label, icon string, action func(context.Context) error) *object {
		return &object{
			id:        base + "_" + suffix,
			component: "button",
			config: DiscoveryConfig{
				Name:         p.Name() + " " + label,
				UniqueID:     uid + "_" + suffix,
				Icon:         icon,
				PayloadPress: payloadPress,
			},
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				return action(ctx)
			},
		}
	}

	sensor := func(suffix, label, icon string, value func() string) *object {
		return &object{
			id:        base + "_" + suffix,
			component: "sensor",
			config: DiscoveryConfig{
				Name:     p.Name() + " " + label,
				UniqueID: uid + "_" + suffix,
				Icon:     icon,
			},
			state:     value,
			available: p.Available,
		}
	}

	return []*object{
		{
			id:        base + "_playlist",
			component: "select",
			config: DiscoveryConfig{
				Name:     p.Name() + " Playlist",
				UniqueID: uid + "_playlist",
				Icon:     "mdi:playlist-music",
			},
			options:   p.SourceList,
			state:     p.Source,
			available: p.Available,
			command: func(ctx context.Context, payload string) error {
				return p.SelectSource(ctx, payload)
			},
		},
		button("play", "Play", "mdi:play", p.Play),
		button("pause", "Pause", "mdi:pause", p.Pause),
		button("next", "Next", "mdi:skip-next", p.NextTrack),
		sensor("state", "State", "mdi:music", p.State),
		sensor("title", "Title", "mdi:music-note", p.MediaTitle),
		sensor("artist", "Artist", "mdi:account-music", p.MediaArtist),
		sensor("album", "Album", "mdi:album", p.MediaAlbumName),
	}
}

func onOff(on bool) string {
	if on {
		return payloadOn
	}
	return payloadOff
}

func parseOnOff(payload string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case payloadOn:
		return true, nil
	case payloadOff:
		return false, nil
	}
	return false, fmt.Errorf("invalid switch payload %q", payload)
}

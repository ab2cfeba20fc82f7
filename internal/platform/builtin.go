package platform

import (
	"context"

	"monoamp/internal/amp"
	"monoamp/internal/entity"
	"monoamp/internal/pianod"

	"go.uber.org/zap"
)

// Platform names
const (
	MediaPlayer = string(entity.KindMediaPlayer)
	Number      = string(entity.KindNumber)
	Switch      = string(entity.KindSwitch)
)

// NewDefaultRegistry returns a registry holding the built-in platforms
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	for _, info := range Builtins() {
		// Built-ins always carry a name and a setup
		_ = r.Register(info)
	}
	return r
}

// Builtins returns the built-in platform registrations
func Builtins() []Info {
	return []Info{
		{
			Name:        MediaPlayer,
			Description: "Zone media players and Pandora room players",
			Order:       10,
			Setup:       setupMediaPlayers,
		},
		{
			Name:        Number,
			Description: "Volume, balance, bass and treble controls per zone",
			Order:       20,
			Setup:       setupNumbers,
		},
		{
			Name:        Switch,
			Description: "Zone power switches",
			Order:       30,
			Setup:       setupSwitches,
		},
	}
}

// keypads returns the zones that get entities: unnamed placeholders are skipped
func keypads(pc *Context) []amp.Zone {
	snapshot := pc.Data.Data()
	if snapshot == nil {
		return nil
	}

	zones := make([]amp.Zone, 0, len(snapshot.Zones))
	for _, z := range snapshot.Zones {
		if z.Name == amp.NoneSource {
			continue
		}
		zones = append(zones, z)
	}
	return zones
}

func setupMediaPlayers(ctx context.Context, pc *Context) ([]entity.Entity, error) {
	logger := pc.Logger.Named("media_player")

	var entities []entity.Entity
	for _, z := range keypads(pc) {
		entities = append(entities, entity.NewZonePlayer(pc.EntryID, z.ID, pc.Data, pc.Gateway, pc.Config.MaxVolumePercent, logger))
	}

	if pc.ListRooms == nil {
		return entities, nil
	}

	rooms, err := pc.ListRooms(ctx)
	if err != nil {
		logger.Warn("Could not list pianod rooms, Pandora players disabled", zap.Error(err))
		return entities, nil
	}

	for i, room := range rooms {
		playback := pianod.NewPlayback(room, pc.NewSession(), logger, nil)
		player := entity.NewPandoraPlayer(pc.EntryID, i+1, playback)

		// Players are updated once before they are handed out
		if err := player.Update(ctx); err != nil {
			logger.Warn("Initial Pandora update failed",
				zap.String("room", room),
				zap.Error(err))
		}
		entities = append(entities, player)
	}

	return entities, nil
}

func setupNumbers(ctx context.Context, pc *Context) ([]entity.Entity, error) {
	logger := pc.Logger.Named("number")

	var entities []entity.Entity
	for _, z := range keypads(pc) {
		for _, prop := range amp.ToneProperties {
			entities = append(entities, entity.NewZoneValue(pc.EntryID, z.ID, prop, pc.Data, pc.Gateway, pc.Config.MaxVolumePercent, logger))
		}
	}
	return entities, nil
}

func setupSwitches(ctx context.Context, pc *Context) ([]entity.Entity, error) {
	var entities []entity.Entity
	for _, z := range keypads(pc) {
		entities = append(entities, entity.NewZoneSwitch(pc.EntryID, z.ID, pc.Data, pc.Gateway))
	}
	return entities, nil
}

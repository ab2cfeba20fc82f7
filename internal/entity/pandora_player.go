package entity

import (
	"context"
	"fmt"
	"time"

	"monoamp/internal/pianod"
)

// PandoraPlayer presents one pianod room as a media player. It is the only
// user of its Playback.
type PandoraPlayer struct {
	entryID  string
	index    int
	playback *pianod.Playback
}

// NewPandoraPlayer creates the player for the 1-based room index
func NewPandoraPlayer(entryID string, index int, playback *pianod.Playback) *PandoraPlayer {
	return &PandoraPlayer{
		entryID:  entryID,
		index:    index,
		playback: playback,
	}
}

func (p *PandoraPlayer) UniqueID() string {
	return fmt.Sprintf("%s_pandora_%d", p.entryID, p.index)
}

func (p *PandoraPlayer) Name() string {
	return fmt.Sprintf("Pandora %d", p.index)
}

func (p *PandoraPlayer) Kind() Kind {
	return KindMediaPlayer
}

func (p *PandoraPlayer) Device() DeviceInfo {
	return Device(p.entryID)
}

func (p *PandoraPlayer) Index() int {
	return p.index
}

func (p *PandoraPlayer) Room() string {
	return p.playback.Room()
}

// Available once the room state has been read at least once
func (p *PandoraPlayer) Available() bool {
	return p.playback.State() != nil
}

// Update refreshes playlists and room state from the controller
func (p *PandoraPlayer) Update(ctx context.Context) error {
	return p.playback.Update(ctx)
}

// State is playing when the controller says so and paused otherwise
func (p *PandoraPlayer) State() string {
	if st := p.playback.State(); st != nil && st.PlaybackState == "playing" {
		return StatePlaying
	}
	return StatePaused
}

// Source returns the selected playlist
func (p *PandoraPlayer) Source() string {
	st := p.playback.State()
	if st == nil || st.SelectedPlaylist == nil {
		return ""
	}
	return st.SelectedPlaylist.Name
}

// SourceList returns the playlist names
func (p *PandoraPlayer) SourceList() []string {
	playlists := p.playback.Playlists()
	names := make([]string, len(playlists))
	for i, pl := range playlists {
		names[i] = pl.Name
	}
	return names
}

func (p *PandoraPlayer) MediaTitle() string {
	if song := p.playback.Song(); song != nil {
		return song.Name
	}
	return ""
}

func (p *PandoraPlayer) MediaArtist() string {
	if song := p.playback.Song(); song != nil {
		return song.ArtistName
	}
	return ""
}

func (p *PandoraPlayer) MediaAlbumName() string {
	if song := p.playback.Song(); song != nil {
		return song.AlbumName
	}
	return ""
}

func (p *PandoraPlayer) MediaImageURL() string {
	if song := p.playback.Song(); song != nil {
		return song.AlbumArtURL
	}
	return ""
}

// MediaDuration is the track length in seconds
func (p *PandoraPlayer) MediaDuration() int {
	if song := p.playback.Song(); song != nil {
		return int(song.Duration)
	}
	return 0
}

// MediaPosition is the playback position in seconds
func (p *PandoraPlayer) MediaPosition() int {
	if song := p.playback.Song(); song != nil {
		return int(song.TimeIndex)
	}
	return 0
}

func (p *PandoraPlayer) MediaPositionUpdatedAt() time.Time {
	return p.playback.LastUpdated()
}

func (p *PandoraPlayer) Play(ctx context.Context) error {
	return p.playback.Play(ctx)
}

func (p *PandoraPlayer) Pause(ctx context.Context) error {
	return p.playback.Pause(ctx)
}

func (p *PandoraPlayer) NextTrack(ctx context.Context) error {
	return p.playback.Next(ctx)
}

// Close releases the player's controller session
func (p *PandoraPlayer) Close() error {
	return p.playback.Close()
}

// SelectSource switches to the named playlist and starts playing
func (p *PandoraPlayer) SelectSource(ctx context.Context, playlist string) error {
	return p.playback.SelectPlaylist(ctx, playlist)
}

package pianod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Playback tracks one pianod room over a persistent session.
// Session I/O is serialized per room; readers see the last completed update.
type Playback struct {
	room    string
	session *Session
	logger  *zap.Logger
	now     func() time.Time

	// ioMu serializes all traffic on the session
	ioMu sync.Mutex

	mu          sync.RWMutex
	playlists   []Playlist
	state       *RoomState
	song        *Song
	lastUpdated time.Time
}

// NewPlayback creates the tracker for room. now defaults to time.Now.
func NewPlayback(room string, session *Session, logger *zap.Logger, now func() time.Time) *Playback {
	if now == nil {
		now = time.Now
	}
	return &Playback{
		room:    room,
		session: session,
		logger:  logger.Named("playback").With(zap.String("room", room)),
		now:     now,
	}
}

// Room returns the pianod room name
func (p *Playback) Room() string {
	return p.room
}

// Update fetches the playlist list and the room state. On failure the
// previously observed state is kept.
func (p *Playback) Update(ctx context.Context) error {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	if _, err := p.session.EnsureConnected(ctx); err != nil {
		p.logger.Warn("Could not connect websocket", zap.Error(err))
		return err
	}

	if err := p.session.Send(ctx, "PLAYLIST LIST"); err != nil {
		p.logDisconnect(err)
		return err
	}
	listMsg, err := p.session.ReceiveUntil(ctx, CodeListResult)
	if err != nil {
		p.logDisconnect(err)
		return err
	}

	var playlists []Playlist
	if len(listMsg.Data) > 0 {
		if err := json.Unmarshal(listMsg.Data, &playlists); err != nil {
			return fmt.Errorf("failed to decode playlist list: %w", err)
		}
	}

	if err := p.session.Send(ctx, p.enterCommand()); err != nil {
		p.logDisconnect(err)
		return err
	}
	stateMsg, err := p.session.ReceiveUntil(ctx, CodeRoomState)
	if err != nil {
		p.logDisconnect(err)
		return err
	}

	p.mu.Lock()
	p.playlists = playlists
	p.state = stateMsg.State
	p.song = stateMsg.CurrentSong
	p.lastUpdated = p.now()
	p.mu.Unlock()

	return nil
}

// Play resumes playback
func (p *Playback) Play(ctx context.Context) error {
	return p.command(ctx, "PLAY")
}

// Pause pauses playback
func (p *Playback) Pause(ctx context.Context) error {
	return p.command(ctx, "PAUSE")
}

// Next skips to the next track
func (p *Playback) Next(ctx context.Context) error {
	return p.command(ctx, "SKIP")
}

// SelectPlaylist stops playback, selects the named playlist and starts playing
func (p *Playback) SelectPlaylist(ctx context.Context, name string) error {
	for _, text := range []string{
		"STOP NOW",
		fmt.Sprintf("select playlist name \"%s\"", name),
		"PLAY",
	} {
		if err := p.command(ctx, text); err != nil {
			return err
		}
	}
	return nil
}

// command enters the room then sends text. It never waits for a reply.
func (p *Playback) command(ctx context.Context, text string) error {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	if _, err := p.session.EnsureConnected(ctx); err != nil {
		p.logger.Warn("Could not connect websocket", zap.Error(err))
		return err
	}

	if err := p.session.Send(ctx, p.enterCommand()); err != nil {
		p.logDisconnect(err)
		return err
	}
	if err := p.session.Send(ctx, text); err != nil {
		p.logDisconnect(err)
		return err
	}

	p.logger.Debug("Sent playback command", zap.String("command", text))
	return nil
}

// Close closes the underlying session
func (p *Playback) Close() error {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()
	return p.session.Close()
}

func (p *Playback) enterCommand() string {
	return "ROOM ENTER " + p.room
}

func (p *Playback) logDisconnect(err error) {
	if errors.Is(err, ErrDisconnected) {
		p.logger.Warn("Socket was disconnected, will try to reconnect", zap.Error(err))
		return
	}
	p.logger.Warn("pianod request failed", zap.Error(err))
}

// Playlists returns the playlists from the last successful update
func (p *Playback) Playlists() []Playlist {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Playlist, len(p.playlists))
	copy(out, p.playlists)
	return out
}

// State returns the room state from the last successful update, or nil
func (p *Playback) State() *RoomState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Song returns the current song from the last successful update, or nil
func (p *Playback) Song() *Song {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.song
}

// LastUpdated returns when the last update completed
func (p *Playback) LastUpdated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastUpdated
}

package pianod

import (
	"context"
	"testing"
	"time"

	"monoamp/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPlaybackUpdate(t *testing.T) {
	fake := newTestPianod(t)
	fake.SetRooms(testutil.PianodRoom{
		Name:          "pandora",
		PlaybackState: "playing",
		Playlist:      "Jazz",
		Song: map[string]interface{}{
			"name":        "So What",
			"artistName":  "Miles Davis",
			"albumName":   "Kind of Blue",
			"albumArtUrl": "http://art/1.jpg",
			"duration":    545,
			"timeIndex":   "12",
		},
	})
	fake.SetNoise(2)

	fixed := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	session := NewSession(fake.URL(), zap.NewNop())
	defer session.Close()
	pb := NewPlayback("pandora", session, zap.NewNop(), func() time.Time { return fixed })

	require.NoError(t, pb.Update(context.Background()))

	assert.Equal(t, []Playlist{{Name: "Jazz"}, {Name: "Rock"}}, pb.Playlists())
	require.NotNil(t, pb.State())
	assert.Equal(t, "playing", pb.State().PlaybackState)
	assert.Equal(t, "Jazz", pb.State().SelectedPlaylist.Name)
	require.NotNil(t, pb.Song())
	assert.Equal(t, "So What", pb.Song().Name)
	assert.Equal(t, FlexInt(545), pb.Song().Duration)
	assert.Equal(t, FlexInt(12), pb.Song().TimeIndex)
	assert.Equal(t, fixed, pb.LastUpdated())

	assert.Equal(t, []string{"PLAYLIST LIST", "ROOM ENTER pandora"}, fake.Received())
}

func TestPlaybackUpdateFailureKeepsState(t *testing.T) {
	fake := newTestPianod(t)

	session := NewSession(fake.URL(), zap.NewNop(), WithReceiveTimeout(100*time.Millisecond))
	defer session.Close()
	pb := NewPlayback("patio", session, zap.NewNop(), nil)

	require.NoError(t, pb.Update(context.Background()))
	before := pb.LastUpdated()

	fake.SetSilent(true)
	err := pb.Update(context.Background())
	assert.ErrorIs(t, err, ErrReceiveTimeout)
	assert.Equal(t, "paused", pb.State().PlaybackState)
	assert.Equal(t, before, pb.LastUpdated())

	// The next tick reconnects and recovers
	fake.SetSilent(false)
	require.NoError(t, pb.Update(context.Background()))
	assert.Equal(t, 2, fake.Dials())
}

func TestPlaybackCommands(t *testing.T) {
	fake := newTestPianod(t)

	session := NewSession(fake.URL(), zap.NewNop())
	defer session.Close()
	pb := NewPlayback("pandora", session, zap.NewNop(), nil)

	ctx := context.Background()
	require.NoError(t, pb.Play(ctx))
	require.NoError(t, pb.Pause(ctx))
	require.NoError(t, pb.Next(ctx))

	assert.Eventually(t, func() bool {
		return len(fake.Received()) == 6
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{
		"ROOM ENTER pandora", "PLAY",
		"ROOM ENTER pandora", "PAUSE",
		"ROOM ENTER pandora", "SKIP",
	}, fake.Received())
}

func TestPlaybackSelectPlaylist(t *testing.T) {
	fake := newTestPianod(t)

	session := NewSession(fake.URL(), zap.NewNop())
	defer session.Close()
	pb := NewPlayback("pandora", session, zap.NewNop(), nil)

	require.NoError(t, pb.SelectPlaylist(context.Background(), "Rock"))

	assert.Eventually(t, func() bool {
		return len(fake.Received()) == 6
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{
		"ROOM ENTER pandora", "STOP NOW",
		"ROOM ENTER pandora", `select playlist name "Rock"`,
		"ROOM ENTER pandora", "PLAY",
	}, fake.Received())
}

func TestPlaybackCommandUnreachable(t *testing.T) {
	session := NewSession("ws://127.0.0.1:1/pianod/?protocol=json", zap.NewNop())
	pb := NewPlayback("pandora", session, zap.NewNop(), nil)

	assert.Error(t, pb.Play(context.Background()))
	assert.Error(t, pb.Update(context.Background()))
	assert.Nil(t, pb.State())
	assert.True(t, pb.LastUpdated().IsZero())
}

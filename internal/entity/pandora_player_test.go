package entity

import (
	"context"
	"testing"
	"time"

	"monoamp/internal/pianod"
	"monoamp/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPandoraPlayer(t *testing.T) {
	fake := testutil.NewFakePianod()
	defer fake.Close()
	fake.SetPlaylists("Jazz", "Rock")
	fake.SetRooms(testutil.PianodRoom{
		Name:          "pandora",
		PlaybackState: "playing",
		Playlist:      "Jazz",
		Song: map[string]interface{}{
			"name":        "So What",
			"artistName":  "Miles Davis",
			"albumName":   "Kind of Blue",
			"albumArtUrl": "http://art/1.jpg",
			"duration":    "545",
			"timeIndex":   nil,
		},
	})

	updated := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	session := pianod.NewSession(fake.URL(), zap.NewNop())
	defer session.Close()
	playback := pianod.NewPlayback("pandora", session, zap.NewNop(), func() time.Time { return updated })
	player := NewPandoraPlayer("entry1", 1, playback)

	assert.Equal(t, "Pandora 1", player.Name())
	assert.Equal(t, "entry1_pandora_1", player.UniqueID())
	assert.False(t, player.Available())
	assert.Equal(t, StatePaused, player.State())
	assert.Equal(t, "", player.MediaTitle())

	require.NoError(t, player.Update(context.Background()))

	assert.True(t, player.Available())
	assert.Equal(t, StatePlaying, player.State())
	assert.Equal(t, "Jazz", player.Source())
	assert.Equal(t, []string{"Jazz", "Rock"}, player.SourceList())
	assert.Equal(t, "So What", player.MediaTitle())
	assert.Equal(t, "Miles Davis", player.MediaArtist())
	assert.Equal(t, "Kind of Blue", player.MediaAlbumName())
	assert.Equal(t, "http://art/1.jpg", player.MediaImageURL())
	assert.Equal(t, 545, player.MediaDuration())
	assert.Equal(t, 0, player.MediaPosition())
	assert.Equal(t, updated, player.MediaPositionUpdatedAt())

	fake.ClearReceived()
	require.NoError(t, player.SelectSource(context.Background(), "Rock"))
	require.NoError(t, player.NextTrack(context.Background()))

	assert.Eventually(t, func() bool { return len(fake.Received()) == 8 }, time.Second, 10*time.Millisecond)
	received := fake.Received()
	assert.Equal(t, `select playlist name "Rock"`, received[3])
	assert.Equal(t, "SKIP", received[7])
}

func TestPandoraPlayerPausedState(t *testing.T) {
	fake := testutil.NewFakePianod()
	defer fake.Close()
	fake.SetRooms(testutil.PianodRoom{Name: "patio", PlaybackState: "stopped", Playlist: "Rock"})

	session := pianod.NewSession(fake.URL(), zap.NewNop())
	defer session.Close()
	player := NewPandoraPlayer("entry1", 2, pianod.NewPlayback("patio", session, zap.NewNop(), nil))

	require.NoError(t, player.Update(context.Background()))
	assert.Equal(t, StatePaused, player.State())
	assert.Empty(t, player.SourceList())
	assert.Equal(t, 0, player.MediaDuration())
}

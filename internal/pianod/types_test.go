package pianod

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt(t *testing.T) {
	tests := []struct {
		input string
		want  FlexInt
	}{
		{`240`, 240},
		{`"240"`, 240},
		{`null`, 0},
		{`"abc"`, 0},
		{`12.9`, 12},
		{`true`, 0},
		{`{"x":1}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var v FlexInt
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestMessageDecode(t *testing.T) {
	raw := `{"code":200,"state":{"playbackState":"playing","selectedPlaylist":{"name":"Jazz"}},
		"currentSong":{"name":"So What","artistName":"Miles Davis","albumName":"Kind of Blue",
		"albumArtUrl":"http://art","duration":"545","timeIndex":null}}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.True(t, msg.HasCode(CodeRoomState))
	assert.False(t, msg.HasCode(CodeListResult))
	require.NotNil(t, msg.State)
	assert.Equal(t, "playing", msg.State.PlaybackState)
	assert.Equal(t, "Jazz", msg.State.SelectedPlaylist.Name)
	require.NotNil(t, msg.CurrentSong)
	assert.Equal(t, FlexInt(545), msg.CurrentSong.Duration)
	assert.Equal(t, FlexInt(0), msg.CurrentSong.TimeIndex)
}

func TestMessageWithoutCode(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"msg":"hello"}`), &msg))
	assert.Nil(t, msg.Code)
	assert.False(t, msg.HasCode(0))

	var nilMsg *Message
	assert.False(t, nilMsg.HasCode(200))
}

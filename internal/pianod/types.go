package pianod

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Response codes the integration waits for
const (
	CodeRoomState  = 200
	CodeListResult = 203
)

// Message is one JSON message from the controller. Code is nil for
// messages that carry no response code.
type Message struct {
	Code        *int            `json:"code,omitempty"`
	Msg         string          `json:"msg,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	State       *RoomState      `json:"state,omitempty"`
	CurrentSong *Song           `json:"currentSong,omitempty"`
}

// HasCode reports whether the message carries the given response code
func (m *Message) HasCode(code int) bool {
	return m != nil && m.Code != nil && *m.Code == code
}

// RoomState is the playback state reported after ROOM ENTER
type RoomState struct {
	PlaybackState    string    `json:"playbackState"`
	SelectedPlaylist *Playlist `json:"selectedPlaylist,omitempty"`
}

// Playlist is an entry of PLAYLIST LIST
type Playlist struct {
	Name string `json:"name"`
}

// roomEntry is an entry of ROOM LIST
type roomEntry struct {
	Room string `json:"room"`
}

// Song is the currently playing track
type Song struct {
	Name        string  `json:"name"`
	ArtistName  string  `json:"artistName"`
	AlbumName   string  `json:"albumName"`
	AlbumArtURL string  `json:"albumArtUrl"`
	Duration    FlexInt `json:"duration"`
	TimeIndex   FlexInt `json:"timeIndex"`
}

// FlexInt decodes numbers, numeric strings and null. Anything else decodes to 0.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = 0

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(s)
	}

	if v, err := strconv.ParseFloat(string(data), 64); err == nil {
		*f = FlexInt(int(v))
	}
	return nil
}

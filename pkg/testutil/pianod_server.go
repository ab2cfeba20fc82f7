package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// PianodRoom is the state the fake reports for one room
type PianodRoom struct {
	Name          string
	PlaybackState string
	Playlist      string
	Song          map[string]interface{}
}

// FakePianod simulates the pianod JSON WebSocket protocol
type FakePianod struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	rooms     []PianodRoom
	playlists []string
	noise     int
	silent    bool
	conns     map[*websocket.Conn]struct{}
	received  []string
	dials     int
}

// NewFakePianod starts a fake controller. Call Close when done.
func NewFakePianod() *FakePianod {
	p := &FakePianod{
		conns: make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/pianod/", p.handleSocket)
	p.server = httptest.NewServer(mux)
	return p
}

// URL returns the ws:// URL clients dial
func (p *FakePianod) URL() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http") + "/pianod/?protocol=json"
}

// Close drops all connections and shuts down the server
func (p *FakePianod) Close() {
	p.DropConnections()
	p.server.Close()
}

// SetRooms sets the rooms in the order ROOM LIST reports them
func (p *FakePianod) SetRooms(rooms ...PianodRoom) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append([]PianodRoom(nil), rooms...)
}

// SetPlaylists sets the names PLAYLIST LIST reports
func (p *FakePianod) SetPlaylists(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playlists = append([]string(nil), names...)
}

// SetNoise makes the fake send n code-101 messages before every reply
func (p *FakePianod) SetNoise(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noise = n
}

// SetSilent makes the fake swallow commands without replying
func (p *FakePianod) SetSilent(silent bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.silent = silent
}

// DropConnections closes every open client socket
func (p *FakePianod) DropConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.conns {
		conn.Close()
		delete(p.conns, conn)
	}
}

// Received returns every command received, across connections
func (p *FakePianod) Received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}

// ClearReceived resets the command log
func (p *FakePianod) ClearReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = nil
}

// Connections returns how many client sockets are currently open
func (p *FakePianod) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Dials returns how many connections were accepted
func (p *FakePianod) Dials() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dials
}

func (p *FakePianod) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.dials++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
		conn.Close()
	}()

	// Greeting without a code
	if err := conn.WriteJSON(map[string]interface{}{"msg": "pianod2 ready"}); err != nil {
		return
	}

	// Room the client last entered on this connection
	var current string

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		command := string(data)

		p.mu.Lock()
		p.received = append(p.received, command)
		silent, noise := p.silent, p.noise
		p.mu.Unlock()

		if strings.HasPrefix(command, "ROOM ENTER ") {
			current = strings.TrimPrefix(command, "ROOM ENTER ")
		}
		if silent {
			continue
		}

		for i := 0; i < noise; i++ {
			if err := conn.WriteJSON(map[string]interface{}{"code": 101, "msg": "status"}); err != nil {
				return
			}
		}

		if err := conn.WriteJSON(p.reply(command, current)); err != nil {
			return
		}
	}
}

func (p *FakePianod) reply(command, current string) map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case command == "ROOM LIST":
		data := make([]map[string]string, 0, len(p.rooms))
		for _, room := range p.rooms {
			data = append(data, map[string]string{"room": room.Name})
		}
		return map[string]interface{}{"code": 203, "data": data}

	case command == "PLAYLIST LIST":
		data := make([]map[string]string, 0, len(p.playlists))
		for _, name := range p.playlists {
			data = append(data, map[string]string{"name": name})
		}
		return map[string]interface{}{"code": 203, "data": data}

	case strings.HasPrefix(command, "ROOM ENTER "):
		for _, room := range p.rooms {
			if room.Name != current {
				continue
			}
			reply := map[string]interface{}{
				"code": 200,
				"state": map[string]interface{}{
					"playbackState":    room.PlaybackState,
					"selectedPlaylist": map[string]string{"name": room.Playlist},
				},
			}
			if room.Song != nil {
				reply["currentSong"] = room.Song
			}
			return reply
		}
		return map[string]interface{}{"code": 404, "msg": "no such room"}

	default:
		return map[string]interface{}{"code": 204, "msg": "ok"}
	}
}

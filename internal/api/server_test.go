package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"monoamp/internal/amp"
	"monoamp/internal/clock"
	"monoamp/internal/coordinator"
	"monoamp/internal/entity"
	"monoamp/internal/pianod"
	"monoamp/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	amp    *testutil.FakeAmp
	pianod *testutil.FakePianod
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	fakeAmp := testutil.NewFakeAmp()
	t.Cleanup(fakeAmp.Close)
	fakeAmp.SetSources("Tuner", "None", "Sonos")
	fakeAmp.SetKeypads(testutil.Keypad{ZN: 12, Name: "Kitchen", PR: 1, VO: 20, BL: 10, BS: 7, TR: 7, CH: 1})

	fakePianod := testutil.NewFakePianod()
	t.Cleanup(fakePianod.Close)
	fakePianod.SetPlaylists("Jazz", "Rock")
	fakePianod.SetRooms(testutil.PianodRoom{Name: "pandora", PlaybackState: "playing", Playlist: "Jazz"})

	gw := amp.NewGateway(fakeAmp.URL(), time.Second, logger)
	coord := coordinator.New(gw, clock.NewMockClock(time.Now()), 5*time.Second, logger)
	require.NoError(t, coord.FirstRefresh(context.Background()))

	session := pianod.NewSession(fakePianod.URL(), logger)
	t.Cleanup(func() { session.Close() })
	pandora := entity.NewPandoraPlayer("entry1", 1, pianod.NewPlayback("pandora", session, logger, nil))

	entities := []entity.Entity{
		entity.NewZonePlayer("entry1", 12, coord, gw, 80, logger),
		entity.NewZoneValue("entry1", 12, amp.PropBass, coord, gw, 80, logger),
		pandora,
	}

	return &testEnv{
		amp:    fakeAmp,
		pianod: fakePianod,
		server: NewServer(coord, entities, logger, 0),
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleGetState(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snapshot amp.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snapshot))
	assert.Equal(t, 1, snapshot.KeypadCount)
	assert.Equal(t, []string{"Tuner", "None", "Sonos"}, snapshot.Sources)
	require.Len(t, snapshot.Zones, 1)
	assert.Equal(t, "Kitchen", snapshot.Zones[0].Name)
	assert.Equal(t, 20, snapshot.Zones[0].Volume)
}

func TestHandleGetStateBeforeFirstPoll(t *testing.T) {
	coord := coordinator.New(nil, clock.NewMockClock(time.Now()), time.Second, zap.NewNop())
	server := NewServer(coord, nil, zap.NewNop(), 0)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "starting")
}

func TestHandleGetEntities(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/entities", "")
	require.Equal(t, http.StatusOK, w.Code)

	var entities []EntityResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entities))
	require.Len(t, entities, 3)

	assert.Equal(t, "entry1_12", entities[0].UniqueID)
	assert.Equal(t, "Kitchen Zone", entities[0].Name)
	assert.Equal(t, entity.KindMediaPlayer, entities[0].Kind)
	assert.Equal(t, entity.StateOn, entities[0].State)
	assert.True(t, entities[0].Available)

	assert.Equal(t, entity.KindNumber, entities[1].Kind)
	assert.Equal(t, "7", entities[1].State)

	assert.Equal(t, "entry1_pandora_1", entities[2].UniqueID)
	assert.False(t, entities[2].Available, "not yet updated")
}

func TestHandleSetZone(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/zones/12/set_zone", `{"bass_value": 12, "volume_value": 50, "mute_value": true}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	calls := env.amp.Commands()
	require.Len(t, calls, 3)
	assert.Equal(t, "BS", calls[0].Property)
	assert.Equal(t, "12", calls[0].Value)
	assert.Equal(t, "VO", calls[1].Property)
	assert.Equal(t, "30", calls[1].Value, "volume clamped to the configured maximum")
	assert.Equal(t, "MU", calls[2].Property)
	assert.Equal(t, "1", calls[2].Value)
	for _, call := range calls {
		assert.Equal(t, 1, call.Channel)
	}
}

func TestHandleSetZoneErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/zones/19/set_zone", `{"bass_value": 1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/zones/12/set_zone", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/zones/12/set_zone", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	assert.Empty(t, env.amp.Commands())
}

func TestHandleSetZoneDeviceFailureIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.amp.Close()

	w := env.do(http.MethodPost, "/api/zones/12/set_zone", `{"treble_value": 3}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandlePandoraCommand(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/pandora/1/pause", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/pandora/1/select", `{"source": "Rock"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		received := env.pianod.Received()
		return len(received) == 8 && received[7] == "PLAY"
	}, time.Second, 10*time.Millisecond)

	received := env.pianod.Received()
	assert.Equal(t, "PAUSE", received[1])
	assert.Equal(t, "STOP NOW", received[3])
	assert.Equal(t, `select playlist name "Rock"`, received[5])
}

func TestHandlePandoraCommandErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/pandora/2/play", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/pandora/1/rewind", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/pandora/1/select", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response["status"])
}

func TestHandleSitemap(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "/api/zones/{zone}/set_zone")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>MonoAmp API</h1>")

	w = env.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSitemapExampleTargetsFirstKeypad(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/zones/12/set_zone")

	// The documented call works as written: 20 on the hardware scale is 16 at an 80% cap
	w = env.do(http.MethodPost, "/api/zones/12/set_zone", `{"volume_value": 20}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	call := testutil.FindCommand(env.amp.Commands(), 1, "VO")
	require.NotNil(t, call)
	assert.Equal(t, "16", call.Value)
}

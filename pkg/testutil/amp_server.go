// Package testutil provides fakes of the amplifier HTTP API and the pianod
// WebSocket controller for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Keypad is the JSON shape the amplifier reports for one zone
type Keypad struct {
	ZN   int    `json:"ZN"`
	Name string `json:"Name"`
	PR   int    `json:"PR"`
	VO   int    `json:"VO"`
	BL   int    `json:"BL"`
	BS   int    `json:"BS"`
	TR   int    `json:"TR"`
	MU   int    `json:"MU"`
	CH   int    `json:"CH"`
}

// FakeAmp simulates the amplifier's HTTP API on an httptest server
type FakeAmp struct {
	server *httptest.Server

	mu           sync.RWMutex
	sources      []string
	keypads      []Keypad
	failAmpState bool
	failKeypads  map[int]bool
	garbage      bool
	delay        time.Duration
	requests     map[string]int

	callsMu  sync.Mutex
	commands []CommandCall
}

// NewFakeAmp starts a fake amplifier. Call Close when done.
func NewFakeAmp() *FakeAmp {
	a := &FakeAmp{
		sources:     []string{},
		keypads:     []Keypad{},
		failKeypads: make(map[int]bool),
		requests:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/AmpState", a.handleAmpState)
	mux.HandleFunc("/api/keypad", a.handleKeypad)
	mux.HandleFunc("/api/Value", a.handleValue)
	mux.HandleFunc("/api/ValueUp", a.handleStep)
	mux.HandleFunc("/api/ValueDn", a.handleStep)

	a.server = httptest.NewServer(mux)
	return a
}

// URL returns the API endpoint, including the /api prefix
func (a *FakeAmp) URL() string {
	return a.server.URL + "/api"
}

// Close shuts down the fake
func (a *FakeAmp) Close() {
	a.server.Close()
}

// SetSources sets the reported source list
func (a *FakeAmp) SetSources(sources ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append([]string(nil), sources...)
}

// SetKeypads sets the reported keypads; KeypadCount follows their number
func (a *FakeAmp) SetKeypads(keypads ...Keypad) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keypads = append([]Keypad(nil), keypads...)
}

// Keypad returns the current state of the keypad with the given ZN
func (a *FakeAmp) Keypad(zn int) (Keypad, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, kp := range a.keypads {
		if kp.ZN == zn {
			return kp, true
		}
	}
	return Keypad{}, false
}

// FailAmpState makes AmpState requests return a server error
func (a *FakeAmp) FailAmpState(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failAmpState = fail
}

// FailKeypad makes requests for one keypad index return a server error
func (a *FakeAmp) FailKeypad(index int, fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failKeypads[index] = fail
}

// SendGarbage makes every state response a non-JSON body
func (a *FakeAmp) SendGarbage(garbage bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.garbage = garbage
}

// SetDelay delays every response, to exercise client timeouts
func (a *FakeAmp) SetDelay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
}

// RequestCount returns how many requests hit the given path (e.g. "/api/keypad")
func (a *FakeAmp) RequestCount(path string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.requests[path]
}

// Commands returns all control requests since the last clear
func (a *FakeAmp) Commands() []CommandCall {
	a.callsMu.Lock()
	defer a.callsMu.Unlock()
	calls := make([]CommandCall, len(a.commands))
	copy(calls, a.commands)
	return calls
}

// ClearCommands resets the control request log
func (a *FakeAmp) ClearCommands() {
	a.callsMu.Lock()
	defer a.callsMu.Unlock()
	a.commands = nil
}

// begin records the request and applies the configured delay
func (a *FakeAmp) begin(r *http.Request) {
	a.mu.Lock()
	a.requests[r.URL.Path]++
	delay := a.delay
	a.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
}

func (a *FakeAmp) handleAmpState(w http.ResponseWriter, r *http.Request) {
	a.begin(r)

	a.mu.RLock()
	fail, garbage := a.failAmpState, a.garbage
	body := map[string]interface{}{
		"KeypadCount": len(a.keypads),
		"Sources":     a.sources,
	}
	a.mu.RUnlock()

	if fail {
		http.Error(w, "amp unavailable", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, body, garbage)
}

func (a *FakeAmp) handleKeypad(w http.ResponseWriter, r *http.Request) {
	a.begin(r)

	index, err := strconv.Atoi(r.URL.Query().Get("chan"))
	if err != nil {
		http.Error(w, "bad chan", http.StatusBadRequest)
		return
	}

	a.mu.RLock()
	fail, garbage := a.failKeypads[index], a.garbage
	var kp *Keypad
	if index >= 0 && index < len(a.keypads) {
		copied := a.keypads[index]
		kp = &copied
	}
	a.mu.RUnlock()

	if fail {
		http.Error(w, "keypad unavailable", http.StatusInternalServerError)
		return
	}
	if kp == nil {
		http.NotFound(w, r)
		return
	}
	a.writeJSON(w, kp, garbage)
}

func (a *FakeAmp) handleValue(w http.ResponseWriter, r *http.Request) {
	a.begin(r)

	q := r.URL.Query()
	channel, _ := strconv.Atoi(q.Get("Channel"))
	prop := q.Get("Property")
	value := q.Get("Value")

	a.record("Value", channel, prop, value)

	if v, err := strconv.Atoi(value); err == nil {
		a.apply(channel, func(kp *Keypad) {
			switch prop {
			case "VO":
				kp.VO = v
			case "BL":
				kp.BL = v
			case "BS":
				kp.BS = v
			case "TR":
				kp.TR = v
			case "PR":
				kp.PR = v
			case "MU":
				kp.MU = v
			case "CH":
				kp.CH = v
			}
		})
	}

	w.Write([]byte("OK"))
}

func (a *FakeAmp) handleStep(w http.ResponseWriter, r *http.Request) {
	a.begin(r)

	q := r.URL.Query()
	channel, _ := strconv.Atoi(q.Get("Channel"))
	prop := q.Get("Property")

	request := "ValueUp"
	delta := 1
	if r.URL.Path == "/api/ValueDn" {
		request = "ValueDn"
		delta = -1
	}
	a.record(request, channel, prop, "")

	if prop == "VO" {
		a.apply(channel, func(kp *Keypad) { kp.VO += delta })
	}

	w.Write([]byte("OK"))
}

func (a *FakeAmp) record(request string, channel int, prop, value string) {
	a.callsMu.Lock()
	defer a.callsMu.Unlock()
	a.commands = append(a.commands, CommandCall{
		Timestamp: time.Now(),
		Request:   request,
		Channel:   channel,
		Property:  prop,
		Value:     value,
	})
}

// apply mutates the keypad addressed by channel (ZN = channel + 11)
func (a *FakeAmp) apply(channel int, fn func(*Keypad)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.keypads {
		if a.keypads[i].ZN == channel+11 {
			fn(&a.keypads[i])
			return
		}
	}
}

func (a *FakeAmp) writeJSON(w http.ResponseWriter, body interface{}, garbage bool) {
	if garbage {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not json</html>"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

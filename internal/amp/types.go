package amp

import "time"

// Property is a two-letter amplifier property code used in control requests
type Property string

const (
	PropVolume  Property = "VO"
	PropBalance Property = "BL"
	PropBass    Property = "BS"
	PropTreble  Property = "TR"
	PropPower   Property = "PR"
	PropMute    Property = "MU"
	PropSource  Property = "CH"
)

// ToneProperties are the properties exposed as number controls, in display order
var ToneProperties = []Property{PropVolume, PropBalance, PropBass, PropTreble}

var propertyNames = map[Property]string{
	PropVolume:  "volume",
	PropBalance: "balance",
	PropBass:    "bass",
	PropTreble:  "treble",
	PropPower:   "power",
	PropMute:    "mute",
	PropSource:  "source",
}

// Name returns the lower-case human name of the property ("volume", "bass", ...)
func (p Property) Name() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return string(p)
}

// ampStateReport is the body of GET /AmpState
type ampStateReport struct {
	KeypadCount int      `json:"KeypadCount"`
	Sources     []string `json:"Sources"`
}

// keypadReport is the body of GET /keypad?chan=n
type keypadReport struct {
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

// Zone is one amplifier output channel as reported by its keypad.
// Zones are rebuilt from the device report on every poll and never mutated.
type Zone struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Power   bool   `json:"power"`
	Volume  int    `json:"volume"`
	Bass    int    `json:"bass"`
	Treble  int    `json:"treble"`
	Balance int    `json:"balance"`
	Muted   bool   `json:"muted"`
	Source  int    `json:"source"`
}

func zoneFromReport(k keypadReport) Zone {
	return Zone{
		ID:      k.ZN,
		Name:    k.Name,
		Power:   k.PR == 1,
		Volume:  k.VO,
		Bass:    k.BS,
		Treble:  k.TR,
		Balance: k.BL,
		Muted:   k.MU == 1,
		Source:  k.CH,
	}
}

// Channel returns the amplifier channel used to address this zone
func (z Zone) Channel() int {
	return Channel(z.ID)
}

// Value returns the raw value of a numeric property
func (z Zone) Value(p Property) int {
	switch p {
	case PropVolume:
		return z.Volume
	case PropBalance:
		return z.Balance
	case PropBass:
		return z.Bass
	case PropTreble:
		return z.Treble
	case PropSource:
		return z.Source
	case PropPower:
		return boolToInt(z.Power)
	case PropMute:
		return boolToInt(z.Muted)
	}
	return 0
}

// Snapshot is one complete poll result. It is immutable once built and
// replaced wholesale on the next successful poll.
type Snapshot struct {
	KeypadCount int       `json:"keypad_count"`
	Zones       []Zone    `json:"zones"`
	Sources     []string  `json:"sources"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Zone finds a zone by keypad number. Zone counts are small so a scan is fine.
func (s *Snapshot) Zone(id int) (Zone, bool) {
	if s == nil {
		return Zone{}, false
	}
	for _, z := range s.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// SourceName returns the name of a 1-based source index, or "" if out of range
func (s *Snapshot) SourceName(index int) string {
	if s == nil || index < 1 || index > len(s.Sources) {
		return ""
	}
	return s.Sources[index-1]
}

// SelectableSources returns the source names offered to users, without placeholders
func (s *Snapshot) SelectableSources() []string {
	if s == nil {
		return []string{}
	}
	result := make([]string, 0, len(s.Sources))
	for _, src := range s.Sources {
		if src == NoneSource {
			continue
		}
		result = append(result, src)
	}
	return result
}

// SourceIndex returns the 1-based index of name in the unfiltered source list
func (s *Snapshot) SourceIndex(name string) (int, bool) {
	if s == nil || name == NoneSource {
		return 0, false
	}
	for i, src := range s.Sources {
		if src == name {
			return i + 1, true
		}
	}
	return 0, false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

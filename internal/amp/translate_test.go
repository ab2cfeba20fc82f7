package amp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, 1, Channel(12))
	assert.Equal(t, 6, Channel(17))
	assert.Equal(t, 1, Zone{ID: 12}.Channel())
}

func TestVolumeLevel(t *testing.T) {
	assert.InDelta(t, 0.0, VolumeLevel(0), 1e-9)
	assert.InDelta(t, 0.9868, VolumeLevel(30), 1e-3)
	assert.InDelta(t, 0.5, VolumeLevel(15), 0.02)
}

func TestRawVolume(t *testing.T) {
	tests := []struct {
		name       string
		fraction   float64
		maxPercent int
		want       int
	}{
		{"half at 80 percent", 0.5, 80, 15},
		{"zero", 0, 80, 0},
		{"full at 80 percent", 1, 80, 30},
		{"full at 100 percent", 1, 100, 38},
		{"above one is capped", 1.5, 80, 30},
		{"negative is floored", -0.2, 80, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RawVolume(tt.fraction, tt.maxPercent))
		})
	}
}

func TestVolumeRoundTrip(t *testing.T) {
	for raw := 0; raw <= PropertyMax(PropVolume, 80); raw++ {
		got := RawVolume(VolumeLevel(raw), 80)
		assert.InDelta(t, raw, got, 1, "raw %d", raw)
	}
}

func TestPropertyMax(t *testing.T) {
	assert.Equal(t, 30, PropertyMax(PropVolume, 80))
	assert.Equal(t, 38, PropertyMax(PropVolume, 100))
	assert.Equal(t, 19, PropertyMax(PropVolume, 50))
	assert.Equal(t, 20, PropertyMax(PropBalance, 80))
	assert.Equal(t, 14, PropertyMax(PropBass, 80))
	assert.Equal(t, 14, PropertyMax(PropTreble, 80))
	assert.Equal(t, 1, PropertyMax(PropPower, 80))
}

func TestClampValue(t *testing.T) {
	assert.Equal(t, 14, ClampValue(PropTreble, 99, 80))
	assert.Equal(t, 0, ClampValue(PropBass, -3, 80))
	assert.Equal(t, 7, ClampValue(PropBass, 7, 80))
	assert.Equal(t, 30, ClampValue(PropVolume, 38, 80))
}

func TestSnapshotSources(t *testing.T) {
	snap := &Snapshot{Sources: []string{"Tuner", "None", "Sonos", "None"}}

	assert.Equal(t, []string{"Tuner", "Sonos"}, snap.SelectableSources())

	idx, ok := snap.SourceIndex("Sonos")
	assert.True(t, ok)
	assert.Equal(t, 3, idx, "index follows the unfiltered list")

	_, ok = snap.SourceIndex("None")
	assert.False(t, ok)
	_, ok = snap.SourceIndex("Vinyl")
	assert.False(t, ok)

	assert.Equal(t, "Sonos", snap.SourceName(3))
	assert.Equal(t, "", snap.SourceName(0))
	assert.Equal(t, "", snap.SourceName(5))
}

func TestSnapshotSourceIndexBijection(t *testing.T) {
	snap := &Snapshot{Sources: []string{"Tuner", "None", "Sonos", "Vinyl", "None", "TV"}}

	for _, name := range snap.SelectableSources() {
		idx, ok := snap.SourceIndex(name)
		assert.True(t, ok)
		assert.Equal(t, name, snap.SourceName(idx))
	}
}

func TestNilSnapshot(t *testing.T) {
	var snap *Snapshot

	_, ok := snap.Zone(12)
	assert.False(t, ok)
	assert.Empty(t, snap.SelectableSources())
	assert.Equal(t, "", snap.SourceName(1))
	_, ok = snap.SourceIndex("Tuner")
	assert.False(t, ok)
}

func TestZoneValue(t *testing.T) {
	z := Zone{ID: 12, Power: true, Volume: 20, Balance: 10, Bass: 7, Treble: 9, Muted: false, Source: 3}

	assert.Equal(t, 20, z.Value(PropVolume))
	assert.Equal(t, 10, z.Value(PropBalance))
	assert.Equal(t, 7, z.Value(PropBass))
	assert.Equal(t, 9, z.Value(PropTreble))
	assert.Equal(t, 1, z.Value(PropPower))
	assert.Equal(t, 0, z.Value(PropMute))
	assert.Equal(t, 3, z.Value(PropSource))
	assert.Equal(t, "treble", PropTreble.Name())
}

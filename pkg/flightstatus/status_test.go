package flightstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestEffectiveAltitude(t *testing.T) {
	tests := []struct {
		name     string
		geo      *float64
		baro     *float64
		expected float64
	}{
		{"geometric preferred", ptr(1200), ptr(1100), 1200},
		{"geometric zero is valid", ptr(0), ptr(1100), 0},
		{"null geometric falls back", nil, ptr(1100), 1100},
		{"negative geometric falls back", ptr(-5), ptr(1100), 1100},
		{"both null", nil, nil, 0},
		{"both negative", ptr(-5), ptr(-10), 0},
		{"null geometric, negative barometric", nil, ptr(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EffectiveAltitude(tt.geo, tt.baro))
		})
	}
}

func TestIconAndStatus(t *testing.T) {
	tests := []struct {
		name         string
		onGround     bool
		verticalRate float64
		altitude     float64
		icon         Icon
		status       string
	}{
		{"on ground flag", true, 5, 1000, IconGround, "On ground"},
		{"zero altitude", false, 0, 0, IconGround, "On ground"},
		{"climbing", false, 3.2, 800, IconTakeoff, "Climbing"},
		{"descending", false, -4.1, 800, IconLanding, "Descending"},
		{"level", false, 0, 10000, IconFlight, "Flying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.icon, IconFor(tt.onGround, tt.verticalRate, tt.altitude))
			assert.Equal(t, tt.status, StatusText(tt.onGround, tt.verticalRate, tt.altitude))
		})
	}
}

func TestRotation(t *testing.T) {
	assert.Equal(t, 254.7, Rotation(254.7, 0, 10000))
	assert.Equal(t, 0.0, Rotation(90, 2, 1000))
	assert.Equal(t, 270.0, Rotation(0, -2, 1000))
	assert.Equal(t, 10.0, Rotation(370, 0, 0))
}

func TestDirectionArrow(t *testing.T) {
	assert.Equal(t, "↑", DirectionArrow(0))
	assert.Equal(t, "→", DirectionArrow(92))
	assert.Equal(t, "↑", DirectionArrow(359))
	assert.Equal(t, "↙", DirectionArrow(-135))
}

func TestIconText(t *testing.T) {
	text, err := IconTakeoff.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "takeoff", string(text))
	assert.NotEmpty(t, IconGround.Glyph())
}

func TestIconUnmarshalText(t *testing.T) {
	var icon Icon
	assert.NoError(t, icon.UnmarshalText([]byte("landing")))
	assert.Equal(t, IconLanding, icon)
	assert.Error(t, icon.UnmarshalText([]byte("hovering")))
}

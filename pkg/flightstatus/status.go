// Package flightstatus derives display state from state-vector telemetry:
// effective altitude, status icon, icon rotation and status text.
//
// All functions are pure.
package flightstatus

import (
	"fmt"
	"math"
)

// Icon identifies the glyph used for an aircraft's flight status.
type Icon int

const (
	IconFlight Icon = iota
	IconTakeoff
	IconLanding
	IconGround
)

// Glyph returns the terminal glyph for the icon.
func (i Icon) Glyph() string {
	switch i {
	case IconTakeoff:
		return "🛫"
	case IconLanding:
		return "🛬"
	case IconGround:
		return "⛭"
	default:
		return "✈"
	}
}

// String returns the icon name used in JSON snapshots.
func (i Icon) String() string {
	switch i {
	case IconTakeoff:
		return "takeoff"
	case IconLanding:
		return "landing"
	case IconGround:
		return "ground"
	default:
		return "flight"
	}
}

// MarshalText encodes the icon by name.
func (i Icon) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText decodes an icon name written by MarshalText.
func (i *Icon) UnmarshalText(text []byte) error {
	for _, icon := range []Icon{IconFlight, IconTakeoff, IconLanding, IconGround} {
		if icon.String() == string(text) {
			*i = icon
			return nil
		}
	}
	return fmt.Errorf("unknown icon %q", text)
}

// EffectiveAltitude prefers geometric altitude, falls back to barometric, then 0.
// A negative value is treated the same as a missing one.
func EffectiveAltitude(geo, baro *float64) float64 {
	if geo != nil && *geo >= 0 {
		return *geo
	}
	if baro != nil && *baro >= 0 {
		return *baro
	}
	return 0
}

// grounded reports whether the aircraft should be shown as on the ground.
func grounded(onGround bool, altitude float64) bool {
	return onGround || altitude <= 0
}

// IconFor selects the status icon.
func IconFor(onGround bool, verticalRate, altitude float64) Icon {
	switch {
	case grounded(onGround, altitude):
		return IconGround
	case verticalRate > 0:
		return IconTakeoff
	case verticalRate < 0:
		return IconLanding
	default:
		return IconFlight
	}
}

// Rotation returns the angle, in degrees [0, 360), the status icon must be
// rotated by so it points along the true track. The takeoff and landing glyphs
// face east, so they are turned back a quarter.
func Rotation(trueTrack, verticalRate, altitude float64) float64 {
	rotation := trueTrack
	switch IconFor(false, verticalRate, altitude) {
	case IconTakeoff, IconLanding:
		rotation -= 90
	}
	return normalizeDegrees(rotation)
}

// StatusText describes the flight status in words.
func StatusText(onGround bool, verticalRate, altitude float64) string {
	switch IconFor(onGround, verticalRate, altitude) {
	case IconGround:
		return "On ground"
	case IconTakeoff:
		return "Climbing"
	case IconLanding:
		return "Descending"
	default:
		return "Flying"
	}
}

// DirectionArrow returns one of eight arrows closest to the rotation, for
// terminals where a glyph cannot be rotated.
func DirectionArrow(rotation float64) string {
	arrows := [...]string{"↑", "↗", "→", "↘", "↓", "↙", "←", "↖"}
	idx := int(math.Round(normalizeDegrees(rotation)/45.0)) % len(arrows)
	return arrows[idx]
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

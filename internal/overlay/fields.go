package overlay

import (
	"fmt"
	"time"

	"github.com/unklstewy/opensky-overlay/pkg/flightstatus"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// Field labels, in display order.
const (
	LabelLastContact    = "Last contact"
	LabelLastPosition   = "Last position update"
	LabelBaroAltitude   = "Barometric altitude"
	LabelGeoAltitude    = "Geometric altitude"
	LabelVelocity       = "Velocity"
	LabelPosition       = "Longitude / Latitude"
	LabelRotation       = "Rotation"
	LabelVerticalRate   = "Vertical rate"
	LabelStatus         = "Status"
	LabelICAO24         = "ICAO24"
	LabelSquawk         = "Transpondercode [Squawk]"
	unknownCallsign     = "?"
	missingSquawkMarker = "-1"
)

// Header is the overlay's title line.
type Header struct {
	Icon flightstatus.Icon `json:"icon"`

	// Glyph and Arrow are the terminal rendering of Icon and Rotation
	Glyph string `json:"glyph"`
	Arrow string `json:"arrow"`

	// Rotation of the icon in degrees clockwise
	Rotation float64 `json:"rotation"`

	Callsign      string `json:"callsign"`
	OriginCountry string `json:"origin_country"`

	// Altitude is the effective altitude in meters
	Altitude     float64 `json:"altitude"`
	VerticalRate float64 `json:"vertical_rate"`
	TrueTrack    float64 `json:"true_track"`
}

// Field is one labelled row of the flight-data list.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Snapshot is the complete overlay content at one instant. Present is false
// when nothing (or a track without a state vector) is selected, in which case
// only the placeholder is shown.
type Snapshot struct {
	Present bool    `json:"present"`
	ICAO24  string  `json:"icao24,omitempty"`
	Header  *Header `json:"header,omitempty"`
	Fields  []Field `json:"fields,omitempty"`
	Seconds int64   `json:"seconds_since_position"`
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// BuildHeader derives the header from sv. sv must not be nil.
func BuildHeader(sv *opensky.StateVector) Header {
	altitude := flightstatus.EffectiveAltitude(sv.GeoAltitude, sv.BaroAltitude)
	verticalRate := valueOr(sv.VerticalRate, 0)
	trueTrack := valueOr(sv.TrueTrack, 0)

	icon := flightstatus.IconFor(sv.OnGround, verticalRate, altitude)
	rotation := flightstatus.Rotation(trueTrack, verticalRate, altitude)

	callsign := unknownCallsign
	if sv.Callsign != nil {
		callsign = *sv.Callsign
	}

	return Header{
		Icon:          icon,
		Glyph:         icon.Glyph(),
		Arrow:         flightstatus.DirectionArrow(trueTrack),
		Rotation:      rotation,
		Callsign:      callsign,
		OriginCountry: sv.OriginCountry,
		Altitude:      altitude,
		VerticalRate:  verticalRate,
		TrueTrack:     trueTrack,
	}
}

// BuildFields formats the flight-data rows for sv. Null values are replaced by
// their sentinel, never omitted. sv must not be nil.
func BuildFields(sv *opensky.StateVector, seconds int64, loc *time.Location) []Field {
	since := fmt.Sprintf(" [%ds]", seconds)
	f := flightstatus.FormatValue

	baro := valueOr(sv.BaroAltitude, 0)
	geo := valueOr(sv.GeoAltitude, 0)
	velocity := valueOr(sv.Velocity, -1)
	trueTrack := valueOr(sv.TrueTrack, 0)
	verticalRate := valueOr(sv.VerticalRate, 0)
	altitude := flightstatus.EffectiveAltitude(sv.GeoAltitude, sv.BaroAltitude)

	squawk := missingSquawkMarker
	if sv.Squawk != nil {
		squawk = *sv.Squawk
	}

	return []Field{
		{LabelLastContact, flightstatus.FormatOptionalTimestamp(sv.LastContact, loc) + since},
		{LabelLastPosition, flightstatus.FormatOptionalTimestamp(sv.TimePosition, loc) + since},
		{LabelBaroAltitude, fmt.Sprintf("%s m [%s ft.]", f(baro, 1), f(baro*flightstatus.MetersToFeet, 1))},
		{LabelGeoAltitude, fmt.Sprintf("%s m [%s ft.]", f(geo, 1), f(geo*flightstatus.MetersToFeet, 1))},
		{LabelVelocity, fmt.Sprintf("%s km/h [%s m/s]", f(velocity*flightstatus.MetersPerSecondToKmh, 1), f(velocity, 1))},
		{LabelPosition, fmt.Sprintf("%s ° / %s °", f(valueOr(sv.Longitude, -1), 3), f(valueOr(sv.Latitude, -1), 3))},
		{LabelRotation, fmt.Sprintf("%s °", f(trueTrack, 1))},
		{LabelVerticalRate, fmt.Sprintf("%s m/s", f(verticalRate, 1))},
		{LabelStatus, flightstatus.StatusText(sv.OnGround, verticalRate, altitude)},
		{LabelICAO24, sv.ICAO24},
		{LabelSquawk, squawk},
	}
}

// BuildSnapshot assembles the overlay for track with the given counter value.
func BuildSnapshot(track *opensky.Track, seconds int64, loc *time.Location) Snapshot {
	if track == nil || track.StateVector == nil {
		return Snapshot{}
	}
	header := BuildHeader(track.StateVector)
	return Snapshot{
		Present: true,
		ICAO24:  track.ICAO24,
		Header:  &header,
		Fields:  BuildFields(track.StateVector, seconds, loc),
		Seconds: seconds,
	}
}

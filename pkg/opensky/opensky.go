// Package opensky models the OpenSky Network state-vector feed and provides a
// rate-limited HTTP client for it.
//
// A state vector is a point-in-time telemetry snapshot for one aircraft.
// Optional fields are pointers: nil means the feed reported null.
package opensky

import (
	"context"
	"time"
)

// PositionSource identifies where a state vector's position came from.
type PositionSource int

const (
	PositionSourceADSB    PositionSource = 0
	PositionSourceASTERIX PositionSource = 1
	PositionSourceMLAT    PositionSource = 2
	PositionSourceFLARM   PositionSource = 3
)

// String returns the feed's name for the position source.
func (p PositionSource) String() string {
	switch p {
	case PositionSourceADSB:
		return "ADS-B"
	case PositionSourceASTERIX:
		return "ASTERIX"
	case PositionSourceMLAT:
		return "MLAT"
	case PositionSourceFLARM:
		return "FLARM"
	default:
		return "unknown"
	}
}

// StateVector is one aircraft snapshot as delivered by the feed.
// All distances are meters, speeds m/s, angles degrees, times epoch seconds.
type StateVector struct {
	// ICAO24 is the unique 24-bit transponder address in lower-case hex (e.g. "3c6444")
	ICAO24 string `json:"icao24"`

	// Callsign with the feed's right padding removed
	Callsign *string `json:"callsign"`

	// OriginCountry is inferred by the feed from the ICAO24 address
	OriginCountry string `json:"origin_country"`

	// TimePosition is the time of the last position update
	TimePosition *int64 `json:"time_position"`

	// LastContact is the time of the last message of any kind
	LastContact *int64 `json:"last_contact"`

	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`

	// BaroAltitude is the barometric altitude in meters
	BaroAltitude *float64 `json:"baro_altitude"`

	// OnGround is true when the position was taken from a surface report
	OnGround bool `json:"on_ground"`

	// Velocity is ground speed in m/s
	Velocity *float64 `json:"velocity"`

	// TrueTrack is the track angle clockwise from north
	TrueTrack *float64 `json:"true_track"`

	// VerticalRate in m/s, positive when climbing
	VerticalRate *float64 `json:"vertical_rate"`

	// Sensors lists the receiver ids that contributed, only when requested
	Sensors []int `json:"sensors,omitempty"`

	// GeoAltitude is the geometric altitude in meters
	GeoAltitude *float64 `json:"geo_altitude"`

	// Squawk is the transponder code
	Squawk *string `json:"squawk"`

	// SPI is the special purpose indicator
	SPI bool `json:"spi"`

	PositionSource PositionSource `json:"position_source"`

	// Category is the aircraft category; 0 when the feed omitted it
	Category int `json:"category"`
}

// Track is a tracked aircraft. StateVector is nil until the first snapshot arrives.
type Track struct {
	ICAO24      string       `json:"icao24"`
	StateVector *StateVector `json:"state_vector"`
	LastUpdated time.Time    `json:"last_updated"`
}

// BoundingBox limits a states query to a WGS84 rectangle.
// The zero value means "no limit".
type BoundingBox struct {
	LaMin float64
	LoMin float64
	LaMax float64
	LoMax float64
}

// IsZero reports whether the box is unset.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// DataSource is the interface all state-vector providers implement.
// The HTTP client is the production implementation; tests use fakes.
type DataSource interface {
	// GetStates returns all state vectors inside box together with the feed time.
	GetStates(ctx context.Context, box BoundingBox) ([]StateVector, int64, error)

	// GetState returns the state vector for one aircraft, or nil if it is not
	// currently reported.
	GetState(ctx context.Context, icao24 string) (*StateVector, error)

	// Close releases any resources held by the source.
	Close() error
}

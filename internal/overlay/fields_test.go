package overlay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/opensky-overlay/pkg/flightstatus"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func str(v string) *string   { return &v }

// fullStateVector is a climbing aircraft with every field present.
func fullStateVector() *opensky.StateVector {
	return &opensky.StateVector{
		ICAO24:        "4b1815",
		Callsign:      str("SWR123"),
		OriginCountry: "Switzerland",
		TimePosition:  i64(1700000000),
		LastContact:   i64(1700000001),
		Longitude:     f64(8.5492),
		Latitude:      f64(47.4647),
		BaroAltitude:  f64(1000),
		GeoAltitude:   f64(1050.5),
		Velocity:      f64(100),
		TrueTrack:     f64(270.25),
		VerticalRate:  f64(5.2),
		Squawk:        str("1000"),
	}
}

func fieldMap(fields []Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Label] = f.Value
	}
	return out
}

func TestBuildFieldsOrder(t *testing.T) {
	fields := BuildFields(fullStateVector(), 3, time.UTC)

	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.Label
	}
	assert.Equal(t, []string{
		LabelLastContact,
		LabelLastPosition,
		LabelBaroAltitude,
		LabelGeoAltitude,
		LabelVelocity,
		LabelPosition,
		LabelRotation,
		LabelVerticalRate,
		LabelStatus,
		LabelICAO24,
		LabelSquawk,
	}, labels)
}

func TestBuildFieldsValues(t *testing.T) {
	got := fieldMap(BuildFields(fullStateVector(), 3, time.UTC))

	assert.Equal(t, "14.11.2023, 22:13:21 [3s]", got[LabelLastContact])
	assert.Equal(t, "14.11.2023, 22:13:20 [3s]", got[LabelLastPosition])
	assert.Equal(t, "1000.0 m [3280.8 ft.]", got[LabelBaroAltitude])
	assert.Equal(t, "1050.5 m [3446.5 ft.]", got[LabelGeoAltitude])
	assert.Equal(t, "360.0 km/h [100.0 m/s]", got[LabelVelocity])
	assert.Equal(t, "8.549 ° / 47.465 °", got[LabelPosition])
	assert.Equal(t, "270.3 °", got[LabelRotation])
	assert.Equal(t, "5.2 m/s", got[LabelVerticalRate])
	assert.Equal(t, "Climbing", got[LabelStatus])
	assert.Equal(t, "4b1815", got[LabelICAO24])
	assert.Equal(t, "1000", got[LabelSquawk])
}

func TestBuildFieldsNullSentinels(t *testing.T) {
	sv := &opensky.StateVector{ICAO24: "abc123", OriginCountry: "Nowhere"}
	fields := BuildFields(sv, 0, time.UTC)
	require.Len(t, fields, 11, "null values must not drop rows")

	got := fieldMap(fields)
	assert.Equal(t, "? [0s]", got[LabelLastContact])
	assert.Equal(t, "? [0s]", got[LabelLastPosition])
	assert.Equal(t, "0.0 m [0.0 ft.]", got[LabelBaroAltitude])
	assert.Equal(t, "0.0 m [0.0 ft.]", got[LabelGeoAltitude])
	assert.Equal(t, "-3.6 km/h [-1.0 m/s]", got[LabelVelocity])
	assert.Equal(t, "-1.000 ° / -1.000 °", got[LabelPosition])
	assert.Equal(t, "0.0 °", got[LabelRotation])
	assert.Equal(t, "0.0 m/s", got[LabelVerticalRate])
	assert.Equal(t, "On ground", got[LabelStatus])
	assert.Equal(t, "-1", got[LabelSquawk])
}

func TestBuildFieldsVelocity(t *testing.T) {
	for _, v := range []float64{0, 12.5, 250.04, 0.05} {
		sv := fullStateVector()
		sv.Velocity = f64(v)
		got := fieldMap(BuildFields(sv, 0, time.UTC))[LabelVelocity]
		want := flightstatus.FormatValue(v*3.6, 1) + " km/h [" + flightstatus.FormatValue(v, 1) + " m/s]"
		assert.Equal(t, want, got, "velocity %v", v)
	}
}

func TestBuildFieldsPositionIndependent(t *testing.T) {
	sv := fullStateVector()
	sv.Latitude = nil
	got := fieldMap(BuildFields(sv, 0, time.UTC))
	assert.Equal(t, "8.549 ° / -1.000 °", got[LabelPosition])
}

func TestBuildFieldsNegativeAltitudeVerbatim(t *testing.T) {
	sv := fullStateVector()
	sv.GeoAltitude = f64(-12)
	sv.BaroAltitude = f64(300)
	got := fieldMap(BuildFields(sv, 0, time.UTC))
	assert.Equal(t, "-12.0 m [-39.4 ft.]", got[LabelGeoAltitude])

	h := BuildHeader(sv)
	assert.Equal(t, 300.0, h.Altitude)
}

func TestBuildHeader(t *testing.T) {
	t.Run("climbing", func(t *testing.T) {
		h := BuildHeader(fullStateVector())
		assert.Equal(t, flightstatus.IconTakeoff, h.Icon)
		assert.Equal(t, "SWR123", h.Callsign)
		assert.Equal(t, "Switzerland", h.OriginCountry)
		assert.Equal(t, 1050.5, h.Altitude)
		assert.InDelta(t, 180.25, h.Rotation, 1e-9)
		assert.Equal(t, "←", h.Arrow)
	})

	t.Run("defaults", func(t *testing.T) {
		h := BuildHeader(&opensky.StateVector{ICAO24: "abc123"})
		assert.Equal(t, "?", h.Callsign)
		assert.Equal(t, 0.0, h.VerticalRate)
		assert.Equal(t, 0.0, h.TrueTrack)
		assert.Equal(t, 0.0, h.Altitude)
		assert.Equal(t, flightstatus.IconGround, h.Icon)
	})

	t.Run("altitude fallback", func(t *testing.T) {
		tests := []struct {
			name      string
			geo, baro *float64
			want      float64
		}{
			{"geometric preferred", f64(900), f64(800), 900},
			{"null geometric", nil, f64(800), 800},
			{"negative geometric", f64(-5), f64(800), 800},
			{"both unusable", f64(-5), nil, 0},
			{"both null", nil, nil, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sv := &opensky.StateVector{GeoAltitude: tt.geo, BaroAltitude: tt.baro}
				assert.Equal(t, tt.want, BuildHeader(sv).Altitude)
			})
		}
	})
}

func TestBuildSnapshot(t *testing.T) {
	assert.False(t, BuildSnapshot(nil, 0, time.UTC).Present)
	assert.False(t, BuildSnapshot(&opensky.Track{ICAO24: "abc123"}, 0, time.UTC).Present)

	snap := BuildSnapshot(&opensky.Track{ICAO24: "4b1815", StateVector: fullStateVector()}, 7, time.UTC)
	require.True(t, snap.Present)
	assert.Equal(t, "4b1815", snap.ICAO24)
	assert.Equal(t, int64(7), snap.Seconds)
	require.NotNil(t, snap.Header)
	assert.Len(t, snap.Fields, 11)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"icon":"takeoff"`)
	assert.Contains(t, string(data), `"seconds_since_position":7`)
}

package coordinates

import (
	"math"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmPerNauticalMile is the length of one nautical mile
	KmPerNauticalMile = 1.852

	// DegreesLatitudePerNM is one arc-minute of latitude
	DegreesLatitudePerNM = 1.0 / 60.0
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64

	// Altitude in meters above mean sea level (MSL)
	Altitude float64
}

// LookAngle is the direction from an observer to a target.
type LookAngle struct {
	// Elevation in degrees above the horizon; negative below it
	Elevation float64

	// Azimuth in degrees from north (0-360)
	Azimuth float64

	// RangeNM is the great-circle surface distance
	RangeNM float64
}

// FromStateVector returns the state vector's position, or false when the feed
// reported no position. The effective altitude is not applied here; callers
// pass whichever altitude they display.
func FromStateVector(sv *opensky.StateVector, altitude float64) (Geographic, bool) {
	if sv == nil || sv.Latitude == nil || sv.Longitude == nil {
		return Geographic{}, false
	}
	return Geographic{
		Latitude:  *sv.Latitude,
		Longitude: *sv.Longitude,
		Altitude:  altitude,
	}, true
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceNauticalMiles calculates the great-circle distance between two points
// with the Haversine formula.
func DistanceNauticalMiles(from, to Geographic) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians
	dLat := lat2Rad - lat1Rad
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c / KmPerNauticalMile
}

// Look returns the elevation, azimuth and range of target as seen from observer.
// Elevation is atan2(altitude difference, surface distance), which ignores
// refraction and is accurate enough for display.
func Look(observer, target Geographic) LookAngle {
	rangeNM := DistanceNauticalMiles(observer, target)
	surfaceM := rangeNM * KmPerNauticalMile * 1000.0

	return LookAngle{
		Elevation: math.Atan2(target.Altitude-observer.Altitude, surfaceM) * RadiansToDegrees,
		Azimuth:   Bearing(observer, target),
		RangeNM:   rangeNM,
	}
}

// BoundingBoxAround returns the latitude/longitude rectangle enclosing a circle
// of radiusNM around center, clamped to valid coordinates. A non-positive
// radius returns the zero box, which the feed treats as worldwide.
func BoundingBoxAround(center Geographic, radiusNM float64) opensky.BoundingBox {
	if radiusNM <= 0 {
		return opensky.BoundingBox{}
	}

	dLat := radiusNM * DegreesLatitudePerNM
	box := opensky.BoundingBox{
		LaMin: math.Max(center.Latitude-dLat, -90),
		LaMax: math.Min(center.Latitude+dLat, 90),
		LoMin: -180,
		LoMax: 180,
	}

	// Longitude degrees shrink with cos(latitude); near the poles the box
	// spans every meridian.
	cosLat := math.Cos(center.Latitude * DegreesToRadians)
	if cosLat > 1e-6 {
		dLon := dLat / cosLat
		if dLon < 180 {
			box.LoMin = math.Max(center.Longitude-dLon, -180)
			box.LoMax = math.Min(center.Longitude+dLon, 180)
		}
	}
	return box
}

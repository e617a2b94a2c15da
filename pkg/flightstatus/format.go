package flightstatus

import (
	"math"
	"math/big"
	"strconv"
	"time"
)

// MetersToFeet converts meters to feet
const MetersToFeet = 3.28084

// MetersPerSecondToKmh converts m/s to km/h
const MetersPerSecondToKmh = 3.6

// TimestampLayout is the day.month.year layout used for feed times.
const TimestampLayout = "02.01.2006, 15:04:05"

// FormatValue formats value with exactly decimals fraction digits.
// No grouping separators are inserted. Exact ties round away from zero
// (270.25 gives "270.3"); the decision uses the exact binary value, so 1.005,
// stored just below the tie, gives "1.00".
func FormatValue(value float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'f', decimals, 64)
	}
	return new(big.Rat).SetFloat64(value).FloatString(decimals)
}

// FormatTimestamp formats epoch seconds in loc; nil loc means time.Local.
func FormatTimestamp(epoch int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(epoch, 0).In(loc).Format(TimestampLayout)
}

// FormatOptionalTimestamp formats epoch, or returns "?" when it is nil.
func FormatOptionalTimestamp(epoch *int64, loc *time.Location) string {
	if epoch == nil {
		return "?"
	}
	return FormatTimestamp(*epoch, loc)
}

package flightstatus

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "-1.000", FormatValue(-1, 3))
	assert.Equal(t, "0.0", FormatValue(0, 1))
	assert.Equal(t, "3625.0", FormatValue(1104.9*MetersToFeet, 1))
	assert.Equal(t, "425.9", FormatValue(118.3*MetersPerSecondToKmh, 1))
	assert.Equal(t, "12", FormatValue(12.3, -2))
}

func TestFormatValueTies(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		want     string
	}{
		{270.25, 1, "270.3"},
		{-270.25, 1, "-270.3"},
		{0.125, 2, "0.13"},
		{2.5, 0, "3"},
		{1.005, 2, "1.00"}, // just below the tie in binary
	}
	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.value, 'g', -1, 64), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.value, tt.decimals))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	// 2023-11-14 22:13:20 UTC
	assert.Equal(t, "14.11.2023, 23:13:20", FormatTimestamp(1700000000, zurich))
	assert.Equal(t, "14.11.2023, 22:13:20", FormatTimestamp(1700000000, time.UTC))
}

func TestFormatOptionalTimestamp(t *testing.T) {
	assert.Equal(t, "?", FormatOptionalTimestamp(nil, time.UTC))

	epoch := int64(0)
	assert.Equal(t, "01.01.1970, 00:00:00", FormatOptionalTimestamp(&epoch, time.UTC))
}

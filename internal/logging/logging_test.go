package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/opensky-overlay/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{" trace ", zerolog.TraceLevel, false},
		{"verbose", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.log")
	var mirror bytes.Buffer

	logger, closer := New(config.LoggingConfig{
		Level:      "debug",
		Output:     "file",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &mirror)

	logger.Debug().Str("icao24", "abc123").Msg("selected")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"icao24":"abc123"`)
	assert.Contains(t, string(data), `"message":"selected"`)
	assert.Contains(t, mirror.String(), "selected")
}

func TestNewLevelFilters(t *testing.T) {
	var mirror bytes.Buffer
	logger, closer := New(config.LoggingConfig{Level: "warn", Output: "file", File: filepath.Join(t.TempDir(), "x.log")}, &mirror)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, mirror.String(), "hidden")
	assert.Contains(t, mirror.String(), "shown")
}

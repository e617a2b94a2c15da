// Package logging builds the zerolog logger shared by the commands.
//
// Console output goes to stderr with colours. Terminal UIs own the screen, so
// they log to a rotated file instead.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unklstewy/opensky-overlay/pkg/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg and a closer for its file, if any.
// Extra writers receive the same events in console format (the panel client
// uses this to mirror logs into its log view).
func New(cfg config.LoggingConfig, extra ...io.Writer) (zerolog.Logger, io.Closer) {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	switch cfg.Output {
	case "file":
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // MB
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, rotated)
		closer = rotated
	default:
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
	for _, w := range extra {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
			NoColor:    true,
		})
	}

	level, levelErr := ParseLevel(cfg.Level)
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()

	if levelErr != nil {
		logger.Warn().Str("level", cfg.Level).Msg("unknown log level, using info")
	}
	return logger, closer
}

// ParseLevel maps a config level name to a zerolog level.
// An empty name is info; an unknown one is info plus an error.
func ParseLevel(name string) (zerolog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, err
	}
	return level, nil
}

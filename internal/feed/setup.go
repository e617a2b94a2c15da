package feed

import (
	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/pkg/config"
	"github.com/unklstewy/opensky-overlay/pkg/coordinates"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// NewSource creates the OpenSky client described by cfg.
func NewSource(cfg config.OpenSkyConfig) *opensky.Client {
	return opensky.NewClient(opensky.Config{
		BaseURL:     cfg.BaseURL,
		Username:    cfg.Username,
		Password:    cfg.Password,
		MinInterval: cfg.RateLimit(),
	})
}

// Observer returns the configured observer location.
func Observer(cfg config.ObserverConfig) coordinates.Geographic {
	return coordinates.Geographic{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		Altitude:  cfg.Elevation,
	}
}

// ConfigFor returns poller settings that query the configured radius around
// the observer.
func ConfigFor(cfg *config.Config, logger zerolog.Logger) Config {
	retry := opensky.DefaultRetryConfig()
	retry.MaxRetries = cfg.OpenSky.MaxRetries
	retry.Logger = logger

	return Config{
		Box:      coordinates.BoundingBoxAround(Observer(cfg.Observer), cfg.OpenSky.RadiusNM),
		Interval: cfg.OpenSky.PollInterval(),
		Retry:    retry,
		Logger:   logger,
	}
}

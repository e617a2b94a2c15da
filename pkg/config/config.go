package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	OpenSky  OpenSkyConfig  `json:"opensky"`
	Observer ObserverConfig `json:"observer"`
	Tracks   TracksConfig   `json:"tracks"`
	Overlay  OverlayConfig  `json:"overlay"`
	Auth     AuthConfig     `json:"auth"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// AllowedOrigins for CORS; empty means "*"
	AllowedOrigins []string `json:"allowed_origins"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled turns on persistence of state vectors
	Enabled bool `json:"enabled"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`

	// RetentionHours is how long state-vector history is kept
	RetentionHours int `json:"retention_hours"`
}

// OpenSkyConfig contains the state-vector feed settings.
type OpenSkyConfig struct {
	// BaseURL is the REST API root (default: https://opensky-network.org/api)
	BaseURL string `json:"base_url"`

	// Username and Password for authenticated access (optional)
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// RadiusNM around the observer used to build the query bounding box.
	// 0 queries the whole world.
	RadiusNM float64 `json:"radius_nm"`

	// PollIntervalSeconds is how often the feed is polled
	PollIntervalSeconds int `json:"poll_interval_seconds"`

	// RateLimitSeconds is the minimum time between API calls
	// Anonymous: 10 seconds, authenticated: 5 seconds
	RateLimitSeconds float64 `json:"rate_limit_seconds"`

	// MaxRetries per poll on transient errors
	MaxRetries int `json:"max_retries"`
}

// PollInterval returns the poll interval as a duration.
func (c OpenSkyConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RateLimit returns the minimum request spacing as a duration.
func (c OpenSkyConfig) RateLimit() time.Duration {
	return time.Duration(c.RateLimitSeconds * float64(time.Second))
}

// ObserverConfig contains the observer's geographic location.
// The feed query is centred on it.
type ObserverConfig struct {
	// Name is a friendly identifier for this observer location
	Name string `json:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// Elevation in meters above sea level
	Elevation float64 `json:"elevation"`
}

// TracksConfig controls the in-memory track collection.
type TracksConfig struct {
	// StaleAfterSeconds evicts tracks without updates for this long
	StaleAfterSeconds int `json:"stale_after_seconds"`

	// Capacity is the maximum number of tracks held
	Capacity int `json:"capacity"`
}

// StaleAfter returns the staleness TTL as a duration.
func (c TracksConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

// OverlayConfig controls the aircraft info overlay.
type OverlayConfig struct {
	// TimeZone is the IANA timezone used for feed timestamps (default: "Local")
	TimeZone string `json:"timezone"`

	// TickMillis is the recency counter interval (default: 1000)
	TickMillis int `json:"tick_millis"`
}

// Location resolves TimeZone, falling back to time.Local.
func (c OverlayConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local, fmt.Errorf("invalid overlay timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// TickInterval returns the recency tick interval.
func (c OverlayConfig) TickInterval() time.Duration {
	if c.TickMillis <= 0 {
		return time.Second
	}
	return time.Duration(c.TickMillis) * time.Millisecond
}

// AuthConfig contains web API authentication settings.
type AuthConfig struct {
	// Username of the single API operator account
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the operator password
	PasswordHash string `json:"password_hash"`

	// JWTSecret signs session tokens (should be loaded from environment)
	JWTSecret string `json:"jwt_secret"`

	// TokenHours is how long issued tokens stay valid
	TokenHours int `json:"token_hours"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `json:"level"`

	// Output is "console" (stderr) or "file" (rotated file)
	Output string `json:"output"`

	// File is the log file path when Output is "file"
	File string `json:"file"`

	// MaxSizeMB before the file is rotated
	MaxSizeMB int `json:"max_size_mb"`

	// MaxBackups is the number of rotated files kept
	MaxBackups int `json:"max_backups"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal over the defaults so omitted keys keep their default values
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Enabled:        false,
			Host:           "localhost",
			Port:           5432,
			Database:       "opensky",
			Username:       "opensky",
			SSLMode:        "disable",
			MaxOpenConns:   25,
			MaxIdleConns:   5,
			RetentionHours: 24,
		},
		OpenSky: OpenSkyConfig{
			BaseURL:             "https://opensky-network.org/api",
			RadiusNM:            100.0,
			PollIntervalSeconds: 10,
			RateLimitSeconds:    10.0, // anonymous quota
			MaxRetries:          3,
		},
		Observer: ObserverConfig{
			Name:      "Zurich",
			Latitude:  47.4647,
			Longitude: 8.5492,
			Elevation: 432.0,
		},
		Tracks: TracksConfig{
			StaleAfterSeconds: 120,
			Capacity:          5000,
		},
		Overlay: OverlayConfig{
			TimeZone:   "Local",
			TickMillis: 1000,
		},
		Auth: AuthConfig{
			Username:   "admin",
			TokenHours: 24,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     "console",
			File:       "logs/opensky-overlay.log",
			MaxSizeMB:  32,
			MaxBackups: 3,
		},
	}
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	if c.OpenSky.PollIntervalSeconds <= 0 {
		return fmt.Errorf("opensky.poll_interval_seconds must be positive, got %d", c.OpenSky.PollIntervalSeconds)
	}
	if c.OpenSky.RadiusNM < 0 {
		return fmt.Errorf("opensky.radius_nm must not be negative, got %.1f", c.OpenSky.RadiusNM)
	}
	if c.Observer.Latitude < -90 || c.Observer.Latitude > 90 {
		return fmt.Errorf("observer.latitude out of range: %.4f", c.Observer.Latitude)
	}
	if c.Observer.Longitude < -180 || c.Observer.Longitude > 180 {
		return fmt.Errorf("observer.longitude out of range: %.4f", c.Observer.Longitude)
	}
	if c.Tracks.Capacity <= 0 {
		return fmt.Errorf("tracks.capacity must be positive, got %d", c.Tracks.Capacity)
	}
	if c.Tracks.StaleAfterSeconds <= 0 {
		return fmt.Errorf("tracks.stale_after_seconds must be positive, got %d", c.Tracks.StaleAfterSeconds)
	}
	if c.Logging.Output != "console" && c.Logging.Output != "file" {
		return fmt.Errorf("logging.output must be \"console\" or \"file\", got %q", c.Logging.Output)
	}
	if _, err := c.Overlay.Location(); err != nil {
		return err
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("OPENSKY_OVERLAY_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("OPENSKY_OVERLAY_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if user := os.Getenv("OPENSKY_OVERLAY_OPENSKY_USERNAME"); user != "" {
		c.OpenSky.Username = user
	}
	if pass := os.Getenv("OPENSKY_OVERLAY_OPENSKY_PASSWORD"); pass != "" {
		c.OpenSky.Password = pass
	}
	if secret := os.Getenv("OPENSKY_OVERLAY_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if hash := os.Getenv("OPENSKY_OVERLAY_PASSWORD_HASH"); hash != "" {
		c.Auth.PasswordHash = hash
	}
	if level := os.Getenv("OPENSKY_OVERLAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

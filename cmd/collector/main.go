package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/opensky-overlay/internal/db"
	"github.com/unklstewy/opensky-overlay/internal/feed"
	"github.com/unklstewy/opensky-overlay/internal/logging"
	"github.com/unklstewy/opensky-overlay/pkg/config"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

const (
	cleanupInterval = 5 * time.Minute
	statsInterval   = 30 * time.Second
)

// Collector continuously polls the feed and stores every state vector in the
// database, so the web server's history endpoint has data even while no
// browser is connected.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.Logging)
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Info().
		Str("config", *configPath).
		Str("observer", cfg.Observer.Name).
		Float64("latitude", cfg.Observer.Latitude).
		Float64("longitude", cfg.Observer.Longitude).
		Float64("radius_nm", cfg.OpenSky.RadiusNM).
		Dur("interval", cfg.OpenSky.PollInterval()).
		Msg("starting collector")
	if cfg.OpenSky.RadiusNM > 250 {
		logger.Warn().Msg("large radius (>250 nm) may exhaust the API quota")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.ReconnectWithRetry(ctx, cfg.Database, 0, 2*time.Second, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize schema")
	}
	logger.Info().Msg("database connected")

	c := &Collector{
		cfg:       cfg.Database,
		db:        database,
		repo:      db.NewStateVectorRepository(database),
		retention: time.Duration(cfg.Database.RetentionHours) * time.Hour,
		logger:    logger,
	}
	defer c.Close()

	source := feed.NewSource(cfg.OpenSky)
	defer source.Close()
	poller := feed.NewPoller(source, feed.ConfigFor(cfg, logger.With().Str("component", "feed").Logger()), c)
	c.poller = poller

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return c.maintain(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("collector failed")
	}
	logger.Info().Msg("collector stopped")
}

// Collector stores polled batches and keeps the database healthy.
type Collector struct {
	cfg       config.DatabaseConfig
	retention time.Duration
	logger    zerolog.Logger
	poller    *feed.Poller

	// mu guards db and repo, which are replaced on reconnect
	mu   sync.Mutex
	db   *db.DB
	repo *db.StateVectorRepository
}

// Apply stores one batch, retrying lost connections. It implements feed.Sink.
func (c *Collector) Apply(ctx context.Context, states []opensky.StateVector, feedTime int64) error {
	return db.WithRetry(ctx, func() error {
		c.mu.Lock()
		repo := c.repo
		c.mu.Unlock()
		return repo.Apply(ctx, states, feedTime)
	}, 2, c.logger)
}

// maintain runs cleanup, reconnect checks and stats until ctx ends.
func (c *Collector) maintain(ctx context.Context) error {
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()
	stats := time.NewTicker(statsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cleanup.C:
			c.cleanup(ctx)
		case <-stats.C:
			c.logStats(ctx)
		}
	}
}

// cleanup reconnects if needed and drops rows past the retention window.
func (c *Collector) cleanup(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := db.EnsureConnection(ctx, c.db, c.cfg, c.logger)
	if err != nil {
		c.logger.Error().Err(err).Msg("database unavailable, skipping cleanup")
		return
	}
	if conn != c.db {
		c.db = conn
		c.repo = db.NewStateVectorRepository(conn)
	}

	removed, err := c.db.CleanupOldData(ctx, c.retention)
	if err != nil {
		c.logger.Error().Err(err).Msg("cleanup failed")
		return
	}
	c.logger.Info().Int64("removed", removed).Dur("retention", c.retention).Msg("cleanup completed")
}

func (c *Collector) logStats(ctx context.Context) {
	c.mu.Lock()
	database := c.db
	c.mu.Unlock()

	stats, err := database.GetStats(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read database stats")
		return
	}

	feedStats := c.poller.Stats()
	c.logger.Info().
		Int64("aircraft", stats.Aircraft).
		Int64("history_rows", stats.HistoryRows).
		Time("last_received", stats.LastReceived).
		Int("polls", feedStats.Polls).
		Int("failures", feedStats.Failures).
		Int("last_states", feedStats.LastStates).
		Msg("collector stats")
}

// Close releases the database connection.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// OpenSky Overlay Web Server
// Polls the feed and serves the track list, the selection and live overlays
// over REST and WebSocket endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/opensky-overlay/internal/api"
	"github.com/unklstewy/opensky-overlay/internal/auth"
	"github.com/unklstewy/opensky-overlay/internal/db"
	"github.com/unklstewy/opensky-overlay/internal/feed"
	"github.com/unklstewy/opensky-overlay/internal/logging"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/config"
)

var (
	configPath   = flag.String("config", "configs/config.json", "Path to configuration file")
	port         = flag.String("port", "", "HTTP server port (overrides config)")
	hashPassword = flag.String("hash-password", "", "Print the bcrypt hash of a password for auth.password_hash and exit")
)

func main() {
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.NewService(auth.Config{}).HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger, closer := logging.New(cfg.Logging)
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Str("config", *configPath).Msg("starting OpenSky overlay web server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Overlay.Location()
	if err != nil {
		return err
	}

	store := tracks.NewStore(tracks.Options{
		Capacity:   cfg.Tracks.Capacity,
		StaleAfter: cfg.Tracks.StaleAfter(),
		Logger:     logger.With().Str("component", "tracks").Logger(),
	})
	selection := tracks.NewSelection(store)
	sinks := []feed.Sink{store}

	var history api.HistoryReader
	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, 2*time.Second, logger)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
		repo := db.NewStateVectorRepository(database)
		sinks = append(sinks, repo)
		history = repo
		logger.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Database).Msg("state-vector history enabled")
	}

	var authSvc *auth.Service
	if cfg.Auth.PasswordHash != "" {
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required when auth.password_hash is set")
		}
		authSvc = auth.NewService(auth.Config{
			Username:      cfg.Auth.Username,
			PasswordHash:  cfg.Auth.PasswordHash,
			JWTSecret:     cfg.Auth.JWTSecret,
			TokenDuration: time.Duration(cfg.Auth.TokenHours) * time.Hour,
		})
	} else {
		logger.Warn().Msg("no operator password configured, API is open")
	}

	source := feed.NewSource(cfg.OpenSky)
	defer source.Close()
	poller := feed.NewPoller(source, feed.ConfigFor(cfg, logger.With().Str("component", "feed").Logger()), sinks...)

	observer := feed.Observer(cfg.Observer)
	srv := api.NewServer(api.Options{
		Store:          store,
		Selection:      selection,
		History:        history,
		Auth:           authSvc,
		Observer:       &observer,
		Location:       loc,
		TickInterval:   cfg.Overlay.TickInterval(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
		Health: func() map[string]interface{} {
			stats := poller.Stats()
			return map[string]interface{}{
				"polls":        stats.Polls,
				"failures":     stats.Failures,
				"last_states":  stats.LastStates,
				"last_success": stats.LastSuccess,
			}
		},
	})

	httpServer := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := poller.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Terminal client: a live aircraft list with the info overlay for the
// selected aircraft beside it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/opensky-overlay/internal/feed"
	"github.com/unklstewy/opensky-overlay/internal/logging"
	"github.com/unklstewy/opensky-overlay/internal/overlay"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/config"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal
	cfg.Logging.Output = "file"
	logger, closer := logging.New(cfg.Logging)
	defer closer.Close()

	loc, _ := cfg.Overlay.Location()

	store := tracks.NewStore(tracks.Options{
		Capacity:   cfg.Tracks.Capacity,
		StaleAfter: cfg.Tracks.StaleAfter(),
		Logger:     logger.With().Str("component", "tracks").Logger(),
	})
	selection := tracks.NewSelection(store)

	m := newModel(store, selection, feed.Observer(cfg.Observer), overlay.Options{
		Location: loc,
		Interval: cfg.Overlay.TickInterval(),
	}, logger)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Forward updates of the selected aircraft so its counter resets promptly
	unsubscribe := store.Subscribe(func(track *opensky.Track) {
		if track.ICAO24 == selection.ICAO24() {
			p.Send(trackUpdatedMsg{track: track})
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := feed.NewSource(cfg.OpenSky)
	defer source.Close()
	poller := feed.NewPoller(source, feed.ConfigFor(cfg, logger.With().Str("component", "feed").Logger()), store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("poller stopped")
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		<-done
		os.Exit(1)
	}
	cancel()
	<-done
}

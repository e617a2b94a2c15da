// Panel client: tview dashboard with a sky chart, the aircraft list, the info
// overlay for the selected aircraft and a live log view.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/unklstewy/opensky-overlay/internal/feed"
	"github.com/unklstewy/opensky-overlay/internal/logging"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/config"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("panel-client version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// The panel owns the terminal; logs go to the file and the log view
	logs := NewLogView(500)
	cfg.Logging.Output = "file"
	logger, closer := logging.New(cfg.Logging, logs)
	defer closer.Close()

	loc, _ := cfg.Overlay.Location()

	store := tracks.NewStore(tracks.Options{
		Capacity:   cfg.Tracks.Capacity,
		StaleAfter: cfg.Tracks.StaleAfter(),
		Logger:     logger.With().Str("component", "tracks").Logger(),
	})
	selection := tracks.NewSelection(store)

	app := NewApp(&AppConfig{
		Store:        store,
		Selection:    selection,
		Observer:     feed.Observer(cfg.Observer),
		Location:     loc,
		TickInterval: cfg.Overlay.TickInterval(),
		Logs:         logs,
		Logger:       logger,
	})

	unsubscribe := store.Subscribe(app.trackUpdated)
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

	runErr := app.Run()
	app.Stop()
	cancel()
	<-done

	if runErr != nil {
		log.Fatalf("Application error: %v", runErr)
	}
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("panel-client - Live aircraft panel with flight data overlay")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  panel-client [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default: configs/config.json)")
	fmt.Println("  -version")
	fmt.Println("        Show version information")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("KEYBOARD SHORTCUTS:")
	fmt.Println("  ↑/↓            Move in aircraft list")
	fmt.Println("  ENTER          Show flight data for aircraft")
	fmt.Println("  x              Close flight data (or click [x])")
	fmt.Println("  +/-            Zoom sky chart")
	fmt.Println("  0              Reset zoom")
	fmt.Println("  q or Ctrl+C    Quit application")
}

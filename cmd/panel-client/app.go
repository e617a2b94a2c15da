package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/internal/overlay"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/coordinates"
	"github.com/unklstewy/opensky-overlay/pkg/flightstatus"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

const (
	refreshInterval = 2 * time.Second
	minZoom         = 0.5
	maxZoom         = 4.0
)

// AppConfig holds the application dependencies
type AppConfig struct {
	Store        *tracks.Store
	Selection    *tracks.Selection
	Observer     coordinates.Geographic
	Location     *time.Location
	TickInterval time.Duration
	Logs         *LogView
	Logger       zerolog.Logger
}

// App is the tview panel: sky chart and aircraft list on the left, the info
// overlay, controls and logs on the right.
type App struct {
	store     *tracks.Store
	selection *tracks.Selection
	observer  coordinates.Geographic
	loc       *time.Location
	logger    zerolog.Logger

	// UI components
	tviewApp    *tview.Application
	sky         *SkyView
	list        *tview.List
	overlayView *tview.TextView
	controls    *tview.TextView
	logs        *LogView
	rootLayout  *tview.Flex

	// ticker drives the "seconds since position" counter of the overlay
	ticker *overlay.Ticker

	// State
	mu   sync.RWMutex
	rows []panelRow
	zoom float64

	stopChan chan struct{}
	stopOnce sync.Once
}

// panelRow is one aircraft as shown in the list and on the sky chart.
type panelRow struct {
	icao24   string
	callsign string
	feet     float64
	look     coordinates.LookAngle
	hasPos   bool
	hasData  bool
}

func (r panelRow) label() string {
	if r.callsign != "" {
		return r.callsign
	}
	return r.icao24
}

// NewApp creates a new application instance
func NewApp(cfg *AppConfig) *App {
	app := &App{
		store:     cfg.Store,
		selection: cfg.Selection,
		observer:  cfg.Observer,
		loc:       cfg.Location,
		logger:    cfg.Logger,
		logs:      cfg.Logs,
		zoom:      1.0,
		stopChan:  make(chan struct{}),
	}
	if app.loc == nil {
		app.loc = time.Local
	}

	app.ticker = overlay.NewTicker(overlay.TickerOptions{
		Interval: cfg.TickInterval,
		// The ticker goroutine must not block on the UI: the UI goroutine
		// stops the ticker on select and release.
		OnTick: func(int64) {
			go app.tviewApp.QueueUpdateDraw(app.renderOverlay)
		},
	})

	app.setupUI()
	return app
}

// setupUI initializes the user interface
func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication().EnableMouse(true)

	a.sky = NewSkyView(a)

	a.list = tview.NewList().
		ShowSecondaryText(true).
		SetHighlightFullLine(true)
	a.list.SetBorder(true).SetTitle(" Aircraft ")
	a.list.SetSelectedFunc(func(_ int, _ string, _ string, _ rune) {
		a.selectCurrent()
	})

	a.overlayView = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWrap(false)
	a.overlayView.SetBorder(true).SetTitle(" Flight Data ")
	a.overlayView.SetHighlightedFunc(func(added, _, _ []string) {
		for _, id := range added {
			if id == closeRegion {
				go a.tviewApp.QueueUpdateDraw(a.release)
			}
		}
	})

	a.createControlsPanel()
	a.createLayout()

	a.tviewApp.SetInputCapture(a.handleKeyboard)
	a.renderOverlay()
}

func (a *App) createControlsPanel() {
	a.controls = tview.NewTextView().
		SetDynamicColors(true)
	a.controls.SetBorder(true).SetTitle(" Controls ")

	help := []struct{ key, action string }{
		{"↑/↓", "Move in list"},
		{"Enter", "Show aircraft"},
		{"x", "Close overlay"},
		{"+/-", "Zoom sky chart"},
		{"0", "Reset zoom"},
		{"q", "Quit"},
	}
	var b strings.Builder
	for _, h := range help {
		fmt.Fprintf(&b, "[yellow]%-6s[-] %s\n", h.key, h.action)
	}
	a.controls.SetText(b.String())
}

func (a *App) createLayout() {
	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.sky, 0, 3, false).
		AddItem(a.list, 0, 2, true)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.overlayView, 15, 0, false).
		AddItem(a.controls, 8, 0, false)
	if a.logs != nil {
		right.AddItem(a.logs.View(), 0, 1, false)
	}

	a.rootLayout = tview.NewFlex().
		AddItem(left, 0, 3, true).
		AddItem(right, 60, 0, false)

	a.tviewApp.SetRoot(a.rootLayout, true).SetFocus(a.list)
}

// handleKeyboard processes global keys; list navigation stays with the list.
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}
	if event.Key() != tcell.KeyRune {
		return event
	}

	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
	case 'x', 'X':
		a.release()
	case '+', '=':
		a.setZoom(a.zoomLevel() * 1.25)
	case '-', '_':
		a.setZoom(a.zoomLevel() / 1.25)
	case '0':
		a.setZoom(1.0)
	default:
		return event
	}
	return nil
}

func (a *App) zoomLevel() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.zoom
}

func (a *App) setZoom(zoom float64) {
	zoom = max(minZoom, min(maxZoom, zoom))
	a.mu.Lock()
	a.zoom = zoom
	a.mu.Unlock()
	a.logger.Debug().Float64("zoom", zoom).Msg("Sky chart zoom")
}

// selectCurrent shows the aircraft under the list cursor.
func (a *App) selectCurrent() {
	a.mu.RLock()
	index := a.list.GetCurrentItem()
	var icao24 string
	if index >= 0 && index < len(a.rows) {
		icao24 = a.rows[index].icao24
	}
	a.mu.RUnlock()
	if icao24 == "" {
		return
	}

	if err := a.selection.Select(icao24); err != nil {
		a.logger.Warn().Err(err).Msg("Selection failed")
		return
	}
	// A new selection always restarts the counter
	track := a.selection.Selected()
	a.ticker.Reset(stateOf(track))
	a.logger.Info().Str("icao24", icao24).Msg("Aircraft selected")

	a.refreshList()
	a.renderOverlay()
}

// release closes the overlay for the selected aircraft.
func (a *App) release() {
	// Clear the click highlight so the next click fires again
	a.overlayView.Highlight()

	icao24 := a.selection.ICAO24()
	if icao24 == "" {
		return
	}
	a.ticker.Stop()
	if a.selection.Release(icao24) {
		a.logger.Info().Str("icao24", icao24).Msg("Aircraft released")
	}

	a.refreshList()
	a.renderOverlay()
}

// trackUpdated runs on the poller goroutine for every stored state vector.
func (a *App) trackUpdated(track *opensky.Track) {
	if track.ICAO24 != a.selection.ICAO24() {
		return
	}
	if a.ticker.Observe(track.StateVector) {
		go a.tviewApp.QueueUpdateDraw(a.renderOverlay)
	}
}

// refresh rebuilds the list and overlay from the store. It runs on the UI
// goroutine.
func (a *App) refresh() {
	// Covers expiry of the selected track, which produces no update
	a.ticker.Observe(stateOf(a.selection.Selected()))

	a.refreshList()
	a.renderOverlay()
}

func (a *App) refreshList() {
	rows := buildPanelRows(a.store.List(), a.observer)
	selected := a.selection.ICAO24()

	a.mu.Lock()
	var current string
	if index := a.list.GetCurrentItem(); index >= 0 && index < len(a.rows) {
		current = a.rows[index].icao24
	}
	a.rows = rows
	a.mu.Unlock()

	a.list.Clear()
	cursor := 0
	for i, row := range rows {
		text := fmt.Sprintf("%-8s %s", row.label(), row.icao24)
		if row.icao24 == selected {
			text = "[green]◉ " + text + "[-]"
		}
		a.list.AddItem(text, row.detail(), 0, nil)
		if row.icao24 == current {
			cursor = i
		}
	}
	if len(rows) > 0 {
		a.list.SetCurrentItem(cursor)
	}
	a.list.SetTitle(fmt.Sprintf(" Aircraft (%d) ", len(rows)))
}

func (a *App) renderOverlay() {
	snap := overlay.BuildSnapshot(a.selection.Selected(), a.ticker.Seconds(), a.loc)
	a.overlayView.SetText(renderOverlay(snap))
}

// Run starts the refresh loop and blocks until the application exits.
func (a *App) Run() error {
	go a.updateLoop()
	if a.logs != nil {
		go a.logs.Run(func() { a.tviewApp.Draw() })
	}

	a.refresh()
	a.logger.Info().Msg("Panel client started")
	return a.tviewApp.Run()
}

func (a *App) updateLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.tviewApp.QueueUpdateDraw(a.refresh)
		}
	}
}

// Stop shuts the application down.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.ticker.Stop()
		if a.logs != nil {
			a.logs.Stop()
		}
		a.tviewApp.Stop()
	})
}

func buildPanelRows(list []*opensky.Track, observer coordinates.Geographic) []panelRow {
	rows := make([]panelRow, 0, len(list))
	for _, t := range list {
		row := panelRow{icao24: t.ICAO24}
		if sv := t.StateVector; sv != nil {
			h := overlay.BuildHeader(sv)
			row.hasData = true
			row.feet = h.Altitude * flightstatus.MetersToFeet
			if sv.Callsign != nil {
				row.callsign = strings.TrimSpace(*sv.Callsign)
			}
			if pos, ok := coordinates.FromStateVector(sv, h.Altitude); ok {
				row.look = coordinates.Look(observer, pos)
				row.hasPos = true
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (r panelRow) detail() string {
	switch {
	case !r.hasData:
		return "  waiting for data"
	case !r.hasPos:
		return fmt.Sprintf("  %6.0f ft  no position", r.feet)
	default:
		return fmt.Sprintf("  %6.0f ft %5.1f nm Az:%3.0f° El:%3.0f°", r.feet, r.look.RangeNM, r.look.Azimuth, r.look.Elevation)
	}
}

func stateOf(track *opensky.Track) *opensky.StateVector {
	if track == nil {
		return nil
	}
	return track.StateVector
}

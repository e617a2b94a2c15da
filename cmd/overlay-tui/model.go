package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/internal/overlay"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/coordinates"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// Layout
const (
	listWidth    = 56
	columnGap    = 2
	headerHeight = 2 // title + blank line
	listHeader   = 2 // "Aircraft (n)" + blank line
	minListRows  = 5
	refreshEvery = 2 * time.Second
)

// refreshMsg reloads the track list.
type refreshMsg time.Time

// trackUpdatedMsg carries a new state vector for the selected aircraft.
type trackUpdatedMsg struct {
	track *opensky.Track
}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

type model struct {
	store     *tracks.Store
	selection *tracks.Selection
	observer  coordinates.Geographic
	logger    zerolog.Logger

	overlay overlay.Model
	rows    []trackRow
	cursor  int
	offset  int
	status  string

	width  int
	height int
}

func newModel(store *tracks.Store, selection *tracks.Selection, observer coordinates.Geographic, opts overlay.Options, logger zerolog.Logger) model {
	opts.OnRelease = func(icao24 string) {
		if selection.Release(icao24) {
			logger.Info().Str("icao24", icao24).Msg("aircraft released")
		}
	}
	ov := overlay.New(opts)
	ov.SetOrigin(listWidth+columnGap, headerHeight)

	m := model{
		store:     store,
		selection: selection,
		observer:  observer,
		logger:    logger,
		overlay:   ov,
		height:    24,
	}
	m.reload()
	return m
}

func (m model) Init() tea.Cmd {
	return refresh()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampCursor()
		return m, nil

	case refreshMsg:
		m.reload()
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.SetSelected(m.selection.Selected())
		return m, tea.Batch(cmd, refresh())

	case trackUpdatedMsg:
		if msg.track.ICAO24 != m.selection.ICAO24() {
			return m, nil
		}
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.SetSelected(msg.track)
		return m, cmd

	case overlay.ReleasedMsg:
		m.overlay, _ = m.overlay.SetSelected(nil)
		m.status = fmt.Sprintf("Released %s", msg.ICAO24)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.overlay = m.overlay.Unmount()
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.clampCursor()
			return m, nil
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
			m.clampCursor()
			return m, nil
		case "enter", " ":
			return m.selectRow(m.cursor)
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && msg.X < listWidth {
			row := msg.Y - headerHeight - listHeader
			if row >= 0 && row < m.visibleRows() && m.offset+row < len(m.rows) {
				m.cursor = m.offset + row
				return m.selectRow(m.cursor)
			}
			return m, nil
		}
	}

	// Everything else (close keys, clicks on the box, ticks) belongs to the overlay
	var cmd tea.Cmd
	m.overlay, cmd = m.overlay.Update(msg)
	return m, cmd
}

// selectRow makes row i the selected aircraft and shows it in the overlay.
func (m model) selectRow(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.rows) {
		return m, nil
	}
	icao24 := m.rows[i].track.ICAO24
	if err := m.selection.Select(icao24); err != nil {
		m.status = err.Error()
		m.logger.Warn().Err(err).Msg("select failed")
		return m, nil
	}
	m.logger.Info().Str("icao24", icao24).Msg("aircraft selected")
	m.status = ""

	var cmd tea.Cmd
	m.overlay, cmd = m.overlay.SetSelected(m.selection.Selected())
	return m, cmd
}

// reload rebuilds the list from the store and keeps the cursor on the same
// aircraft when it is still tracked.
func (m *model) reload() {
	var current string
	if m.cursor < len(m.rows) {
		current = m.rows[m.cursor].track.ICAO24
	}

	m.rows = buildRows(m.store.List(), m.observer)
	for i, r := range m.rows {
		if r.track.ICAO24 == current {
			m.cursor = i
			break
		}
	}
	m.clampCursor()
}

func (m model) visibleRows() int {
	n := m.height - headerHeight - listHeader - 2
	if n < minListRows {
		n = minListRows
	}
	return n
}

func (m *model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Background(lipgloss.Color("235")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("237"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
)

func (m model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("OPENSKY OVERLAY"))
	s.WriteString("\n\n")

	list := lipgloss.NewStyle().Width(listWidth).Render(m.renderList())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, strings.Repeat(" ", columnGap), m.overlay.View()))
	s.WriteString("\n\n")

	if m.status != "" {
		s.WriteString(statusStyle.Render(m.status))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("↑/↓: Move  ENTER/click: Select  X/ESC/[x]: Release  Q: Quit"))
	return s.String()
}

func (m model) renderList() string {
	var list strings.Builder
	list.WriteString(headerStyle.Render("Aircraft"))
	list.WriteString(fmt.Sprintf(" (%d)", len(m.rows)))
	list.WriteString("\n\n")

	if len(m.rows) == 0 {
		list.WriteString(helpStyle.Render("  No aircraft in range"))
		return list.String()
	}

	selected := m.selection.ICAO24()
	end := m.offset + m.visibleRows()
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		line := m.rows[i].format(i == m.cursor, m.rows[i].track.ICAO24 == selected)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		list.WriteString(line)
		if i < end-1 {
			list.WriteString("\n")
		}
	}
	return list.String()
}

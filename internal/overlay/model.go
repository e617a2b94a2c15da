package overlay

import (
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// DefaultWidth of the rendered overlay box, borders included.
const DefaultWidth = 60

const (
	closeButton   = "[x]"
	labelWidth    = 25
	placeholder   = "Waiting for aircraft selection"
	spinnerGlyph  = "⠋"
	horizontalPad = 1
)

var lastID int64

func nextID() int {
	return int(atomic.AddInt64(&lastID, 1))
}

// Options configures a Model.
type Options struct {
	// OnRelease is called with the track's ICAO24 when the overlay is closed
	OnRelease func(icao24 string)

	// Location for feed timestamps (default: time.Local)
	Location *time.Location

	// Interval between recency ticks (default: DefaultInterval)
	Interval time.Duration

	// Now is the clock used on reset (default: time.Now)
	Now func() time.Time

	// Width of the box in cells (default: DefaultWidth)
	Width int
}

// tickMsg advances the recency counter of the model with the same id, but only
// while gen is still that model's current generation.
type tickMsg struct {
	id  int
	gen int
}

// ReleasedMsg is emitted after the overlay's close action.
type ReleasedMsg struct {
	ICAO24 string
}

// Model is the bubbletea overlay component. The parent passes the selected
// track with SetSelected; Model resets its counter whenever the observed state
// vector pointer changes.
type Model struct {
	opts Options
	id   int

	track    *opensky.Track
	observed *opensky.StateVector
	recency  Recency
	gen      int

	// Screen position of the box's top-left cell, for mouse hits
	originX int
	originY int
}

// New returns an empty overlay showing the placeholder.
func New(opts Options) Model {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	return Model{opts: opts, id: nextID()}
}

// Init implements tea.Model. The chain starts on the first SetSelected.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetOrigin records where the parent draws the box.
func (m *Model) SetOrigin(x, y int) {
	m.originX = x
	m.originY = y
}

// SetSelected observes track. If its state vector differs from the one last
// observed the current tick chain is abandoned and, when a state vector is
// present, a new one is started.
func (m Model) SetSelected(track *opensky.Track) (Model, tea.Cmd) {
	m.track = track

	var sv *opensky.StateVector
	if track != nil {
		sv = track.StateVector
	}
	if sv == m.observed {
		return m, nil
	}

	m.observed = sv
	m.gen++
	m.recency = Recency{}
	if sv == nil {
		return m, nil
	}
	m.recency.Reset(m.opts.Now(), sv.TimePosition)
	return m, m.tick()
}

// Unmount stops the tick chain. Outstanding tick messages are ignored.
func (m Model) Unmount() Model {
	m.gen++
	m.track = nil
	m.observed = nil
	return m
}

// Selected returns the observed track, or nil.
func (m Model) Selected() *opensky.Track {
	return m.track
}

// Seconds returns the recency counter.
func (m Model) Seconds() int64 {
	return m.recency.Seconds
}

// Snapshot returns the current overlay content.
func (m Model) Snapshot() Snapshot {
	return BuildSnapshot(m.track, m.recency.Seconds, m.opts.Location)
}

func (m Model) tick() tea.Cmd {
	id, gen := m.id, m.gen
	return tea.Tick(m.opts.Interval, func(time.Time) tea.Msg {
		return tickMsg{id: id, gen: gen}
	})
}

// Update handles ticks, the close keys and mouse clicks on the close button.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if msg.id != m.id || msg.gen != m.gen || m.observed == nil {
			return m, nil
		}
		m.recency.Tick()
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "x", "esc":
			return m, m.release()
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && m.closeHit(msg.X, msg.Y) {
			return m, m.release()
		}
	}
	return m, nil
}

// release runs the close action. It is a no-op without a state vector.
func (m Model) release() tea.Cmd {
	if m.track == nil || m.track.StateVector == nil {
		return nil
	}
	icao24 := m.track.ICAO24
	if m.opts.OnRelease != nil {
		m.opts.OnRelease(icao24)
	}
	return func() tea.Msg {
		return ReleasedMsg{ICAO24: icao24}
	}
}

// contentWidth is the usable width inside border and padding.
func (m Model) contentWidth() int {
	return m.opts.Width - 2 - 2*horizontalPad
}

// closeHit reports whether the cell (x, y) lies on the close button, which is
// right-aligned on the header row.
func (m Model) closeHit(x, y int) bool {
	if m.track == nil || m.track.StateVector == nil {
		return false
	}
	row := m.originY + 1
	last := m.originX + 1 + horizontalPad + m.contentWidth() - 1
	first := last - lipgloss.Width(closeButton) + 1
	return y == row && x >= first && x <= last
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, horizontalPad)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	countryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	closeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the placeholder or the populated overlay.
func (m Model) View() string {
	box := boxStyle.Width(m.opts.Width - 2)
	snap := m.Snapshot()
	if !snap.Present {
		return box.Render(dimStyle.Render(spinnerGlyph + " " + placeholder))
	}

	h := snap.Header
	left := titleStyle.Render(h.Glyph+" "+h.Arrow+" "+h.Callsign) + "  " + countryStyle.Render(h.OriginCountry)
	gap := m.contentWidth() - lipgloss.Width(left) - lipgloss.Width(closeButton)
	if gap < 1 {
		gap = 1
	}

	var s strings.Builder
	s.WriteString(left)
	s.WriteString(strings.Repeat(" ", gap))
	s.WriteString(closeStyle.Render(closeButton))
	s.WriteString("\n")
	s.WriteString(dimStyle.Render(strings.Repeat("─", m.contentWidth())))

	label := labelStyle.Width(labelWidth)
	for _, f := range snap.Fields {
		s.WriteString("\n")
		s.WriteString(label.Render(f.Label))
		s.WriteString(valueStyle.Render(f.Value))
	}
	return box.Render(s.String())
}

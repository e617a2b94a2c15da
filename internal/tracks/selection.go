package tracks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// Selection is the single aircraft the overlay is showing.
type Selection struct {
	store *Store

	mu     sync.RWMutex
	icao24 string
}

// NewSelection returns an empty selection over store.
func NewSelection(store *Store) *Selection {
	return &Selection{store: store}
}

// Select makes icao24 the selected aircraft.
func (s *Selection) Select(icao24 string) error {
	icao24 = strings.ToLower(icao24)
	if s.store.Get(icao24) == nil {
		return fmt.Errorf("select %s: %w", icao24, ErrUnknownTrack)
	}
	s.mu.Lock()
	s.icao24 = icao24
	s.mu.Unlock()
	return nil
}

// ICAO24 returns the selected address, or "" when nothing is selected.
func (s *Selection) ICAO24() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.icao24
}

// Selected returns the selected track as currently stored. It is nil when
// nothing is selected or the track has expired.
func (s *Selection) Selected() *opensky.Track {
	icao24 := s.ICAO24()
	if icao24 == "" {
		return nil
	}
	return s.store.Get(icao24)
}

// Release clears the selection if icao24 is the selected aircraft and
// reports whether it was.
func (s *Selection) Release(icao24 string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.icao24 == "" || s.icao24 != strings.ToLower(icao24) {
		return false
	}
	s.icao24 = ""
	return true
}

// Package tracks holds the set of currently tracked aircraft and the operator's
// selection. Tracks expire when the feed stops reporting them.
package tracks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// ErrUnknownTrack is returned when selecting an aircraft that is not tracked.
var ErrUnknownTrack = errors.New("unknown track")

// Listener is notified after a track's state vector was replaced.
type Listener func(track *opensky.Track)

// Store is a bounded, expiring collection of tracks keyed by ICAO24.
//
// Tracks are never mutated in place: every update stores a new *Track holding a
// new *StateVector, so readers can keep the pointers they got and compare them.
type Store struct {
	cache  *expirable.LRU[string, *opensky.Track]
	logger zerolog.Logger
	now    func() time.Time

	// writeMu serializes read-modify-write in Upsert
	writeMu sync.Mutex

	listenMu  sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// Options configures a Store.
type Options struct {
	// Capacity is the maximum number of tracks; the least recently updated is
	// dropped first
	Capacity int

	// StaleAfter expires tracks not updated for this long
	StaleAfter time.Duration

	Logger zerolog.Logger

	// Now stamps LastUpdated (default: time.Now)
	Now func() time.Time
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = 5000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		logger:    opts.Logger,
		now:       opts.Now,
		listeners: make(map[int]Listener),
	}
	// Runs under the cache lock: log only
	onEvict := func(icao24 string, _ *opensky.Track) {
		s.logger.Debug().Str("icao24", icao24).Msg("track dropped")
	}
	s.cache = expirable.NewLRU[string, *opensky.Track](opts.Capacity, onEvict, opts.StaleAfter)
	return s
}

// Upsert stores sv as the newest state vector of its track and returns the
// track. The track is created if needed.
func (s *Store) Upsert(sv opensky.StateVector) *opensky.Track {
	icao24 := strings.ToLower(sv.ICAO24)
	sv.ICAO24 = icao24

	s.writeMu.Lock()
	track := &opensky.Track{
		ICAO24:      icao24,
		StateVector: &sv,
		LastUpdated: s.now(),
	}
	s.cache.Add(icao24, track)
	s.writeMu.Unlock()

	s.notify(track)
	return track
}

// Apply upserts a batch of state vectors. It satisfies feed.Sink.
func (s *Store) Apply(_ context.Context, states []opensky.StateVector, _ int64) error {
	for _, sv := range states {
		s.Upsert(sv)
	}
	return nil
}

// Add registers an empty track that waits for its first state vector.
// An existing track is left alone.
func (s *Store) Add(icao24 string) *opensky.Track {
	icao24 = strings.ToLower(icao24)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if existing, ok := s.cache.Peek(icao24); ok {
		return existing
	}
	track := &opensky.Track{ICAO24: icao24, LastUpdated: s.now()}
	s.cache.Add(icao24, track)
	return track
}

// Get returns the track for icao24, or nil.
func (s *Store) Get(icao24 string) *opensky.Track {
	track, ok := s.cache.Peek(strings.ToLower(icao24))
	if !ok {
		return nil
	}
	return track
}

// List returns all live tracks ordered by callsign, then ICAO24. Tracks
// without a callsign sort last.
func (s *Store) List() []*opensky.Track {
	list := s.live()
	sort.Slice(list, func(i, j int) bool {
		ci, cj := callsignOf(list[i]), callsignOf(list[j])
		if ci != cj {
			if ci == "" || cj == "" {
				return cj == ""
			}
			return ci < cj
		}
		return list[i].ICAO24 < list[j].ICAO24
	})
	return list
}

func callsignOf(t *opensky.Track) string {
	if t.StateVector == nil || t.StateVector.Callsign == nil {
		return ""
	}
	return *t.StateVector.Callsign
}

// Remove drops a track and reports whether it existed.
func (s *Store) Remove(icao24 string) bool {
	return s.cache.Remove(strings.ToLower(icao24))
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	return len(s.live())
}

// live returns the unexpired tracks in no particular order. The cache keeps
// expired entries until its purge runs, and Values leaves nil slots for them.
func (s *Store) live() []*opensky.Track {
	values := s.cache.Values()
	list := values[:0]
	for _, t := range values {
		if t != nil {
			list = append(list, t)
		}
	}
	return list
}

// Subscribe registers fn for track updates and returns a function that
// removes it. fn runs on the updating goroutine.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenMu.Unlock()

	return func() {
		s.listenMu.Lock()
		delete(s.listeners, id)
		s.listenMu.Unlock()
	}
}

func (s *Store) notify(track *opensky.Track) {
	s.listenMu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenMu.RUnlock()

	for _, fn := range fns {
		fn(track)
	}
}

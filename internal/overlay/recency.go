// Package overlay renders the information overlay for one selected aircraft
// track and keeps its "seconds since last position" counter ticking.
//
// The pure pieces (Recency, BuildHeader, BuildFields, BuildSnapshot) are shared
// by three hosts: the bubbletea Model, the goroutine Ticker used by the web
// API and the tview panel.
package overlay

import (
	"time"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// DefaultInterval is the recency tick interval.
const DefaultInterval = time.Second

// Recency is the locally incremented seconds-since-position counter.
type Recency struct {
	Seconds int64
}

// Reset sets the counter to now minus timePosition. A nil timePosition uses
// now itself, so the counter starts at zero.
func (r *Recency) Reset(now time.Time, timePosition *int64) {
	nowSec := now.Unix()
	base := nowSec
	if timePosition != nil {
		base = *timePosition
	}
	r.Seconds = nowSec - base
}

// Tick advances the counter by one interval.
func (r *Recency) Tick() {
	r.Seconds++
}

// initialSeconds is the counter value a fresh observation of sv starts with.
func initialSeconds(now time.Time, sv *opensky.StateVector) int64 {
	var r Recency
	if sv != nil {
		r.Reset(now, sv.TimePosition)
	}
	return r.Seconds
}

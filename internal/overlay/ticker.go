package overlay

import (
	"sync"
	"time"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// TickerOptions configures a Ticker.
type TickerOptions struct {
	// Interval between increments (default: DefaultInterval)
	Interval time.Duration

	// Now is the clock used on reset (default: time.Now)
	Now func() time.Time

	// OnTick receives the counter after every increment. It runs on the
	// ticker goroutine and must not call Reset, Observe or Stop.
	OnTick func(seconds int64)
}

// Ticker is the goroutine-driven recency counter for hosts without a message
// loop of their own (websocket sessions, the tview panel).
//
// At most one ticking goroutine exists per Ticker: Reset and Stop wait for the
// previous goroutine to exit before returning.
type Ticker struct {
	interval time.Duration
	now      func() time.Time
	onTick   func(int64)

	// lifecycle serializes Reset/Stop; mu guards the counter
	lifecycle sync.Mutex
	mu        sync.Mutex
	seconds   int64
	gen       uint64
	observed  *opensky.StateVector

	stop chan struct{}
	done chan struct{}
}

// NewTicker returns a stopped Ticker.
func NewTicker(opts TickerOptions) *Ticker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ticker{
		interval: opts.Interval,
		now:      opts.Now,
		onTick:   opts.OnTick,
	}
}

// Observe resets the ticker only when sv is a different state vector than the
// one last observed. It reports whether a reset happened.
func (t *Ticker) Observe(sv *opensky.StateVector) bool {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	same := sv == t.observed
	t.mu.Unlock()
	if same {
		return false
	}
	t.resetLocked(sv)
	return true
}

// Reset cancels the running goroutine, recomputes the counter from sv and,
// when sv is not nil, starts ticking again. It returns the new counter value.
func (t *Ticker) Reset(sv *opensky.StateVector) int64 {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	return t.resetLocked(sv)
}

// Stop cancels the running goroutine. It is safe to call more than once.
func (t *Ticker) Stop() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.stopLocked()

	t.mu.Lock()
	t.observed = nil
	t.mu.Unlock()
}

// Seconds returns the current counter value.
func (t *Ticker) Seconds() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seconds
}

// Running reports whether a ticking goroutine is active.
func (t *Ticker) Running() bool {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	return t.stop != nil
}

func (t *Ticker) resetLocked(sv *opensky.StateVector) int64 {
	t.stopLocked()

	seconds := initialSeconds(t.now(), sv)

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.seconds = seconds
	t.observed = sv
	t.mu.Unlock()

	if sv == nil {
		return seconds
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(gen, t.stop, t.done)
	return seconds
}

func (t *Ticker) stopLocked() {
	if t.stop == nil {
		return
	}

	// Invalidate first so a tick racing with the close cannot increment
	t.mu.Lock()
	t.gen++
	t.mu.Unlock()

	close(t.stop)
	<-t.done
	t.stop = nil
	t.done = nil
}

func (t *Ticker) run(gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tk.C:
		}

		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.seconds++
		seconds := t.seconds
		t.mu.Unlock()

		if t.onTick != nil {
			t.onTick(seconds)
		}
	}
}

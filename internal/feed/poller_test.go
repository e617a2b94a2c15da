package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/config"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// fakeSource returns queued results in order, repeating the last one.
type fakeSource struct {
	mu      sync.Mutex
	results []fakeResult
	calls   int
	boxes   []opensky.BoundingBox
}

type fakeResult struct {
	states []opensky.StateVector
	err    error
}

func (f *fakeSource) GetStates(_ context.Context, box opensky.BoundingBox) ([]opensky.StateVector, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boxes = append(f.boxes, box)
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r.states, 1700000000 + int64(f.calls), r.err
}

func (f *fakeSource) GetState(context.Context, string) (*opensky.StateVector, error) {
	return nil, nil
}

func (f *fakeSource) Close() error { return nil }

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func noRetry() opensky.RetryConfig {
	return opensky.RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func states(icaos ...string) []opensky.StateVector {
	out := make([]opensky.StateVector, len(icaos))
	for i, icao := range icaos {
		out[i] = opensky.StateVector{ICAO24: icao}
	}
	return out
}

func TestPollOnceAppliesToStore(t *testing.T) {
	source := &fakeSource{results: []fakeResult{{states: states("abc123", "def456")}}}
	store := tracks.NewStore(tracks.Options{Capacity: 10, StaleAfter: time.Minute})
	box := opensky.BoundingBox{LaMin: 46, LoMin: 7, LaMax: 48, LoMax: 10}

	p := NewPoller(source, Config{Box: box, Retry: noRetry(), Logger: zerolog.Nop()}, store)
	require.NoError(t, p.PollOnce(context.Background()))

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, []opensky.BoundingBox{box}, source.boxes)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Polls)
	assert.Equal(t, 2, stats.LastStates)
	assert.Equal(t, int64(1700000001), stats.LastFeedTime)
}

func TestPollOnceSourceError(t *testing.T) {
	source := &fakeSource{results: []fakeResult{{err: errors.New("boom")}}}
	applied := false
	sink := SinkFunc(func(context.Context, []opensky.StateVector, int64) error {
		applied = true
		return nil
	})

	p := NewPoller(source, Config{Retry: noRetry(), Logger: zerolog.Nop()}, sink)
	err := p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, applied)
	assert.Equal(t, 1, p.Stats().Failures)
}

func TestPollOnceRetriesTransientErrors(t *testing.T) {
	source := &fakeSource{results: []fakeResult{
		{err: &opensky.RateLimitError{StatusCode: 429, RetryAfter: time.Millisecond, Message: "Rate limit exceeded"}},
		{states: states("abc123")},
	}}
	retry := noRetry()
	retry.MaxRetries = 2
	retry.RespectRetryAfter = true

	store := tracks.NewStore(tracks.Options{Capacity: 10, StaleAfter: time.Minute})
	p := NewPoller(source, Config{Retry: retry, Logger: zerolog.Nop()}, store)
	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, 2, source.Calls())
	assert.NotNil(t, store.Get("abc123"))
}

func TestPollOnceSinkFailureDoesNotStopOthers(t *testing.T) {
	source := &fakeSource{results: []fakeResult{{states: states("abc123")}}}
	failing := SinkFunc(func(context.Context, []opensky.StateVector, int64) error {
		return errors.New("database down")
	})
	store := tracks.NewStore(tracks.Options{Capacity: 10, StaleAfter: time.Minute})

	p := NewPoller(source, Config{Retry: noRetry(), Logger: zerolog.Nop()}, failing, store)
	err := p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database down")
	assert.NotNil(t, store.Get("abc123"))
	assert.Equal(t, 1, p.Stats().SinkFailures)
}

func TestRunKeepsPollingAfterErrors(t *testing.T) {
	source := &fakeSource{results: []fakeResult{
		{err: errors.New("boom")},
		{states: states("abc123")},
	}}
	store := tracks.NewStore(tracks.Options{Capacity: 10, StaleAfter: time.Minute})
	p := NewPoller(source, Config{Interval: 5 * time.Millisecond, Retry: noRetry(), Logger: zerolog.Nop()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.Get("abc123") != nil }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, p.Stats().Failures, 1)
}

func TestConfigFor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OpenSky.RadiusNM = 60
	cfg.OpenSky.MaxRetries = 5

	pc := ConfigFor(cfg, zerolog.Nop())
	assert.Equal(t, cfg.OpenSky.PollInterval(), pc.Interval)
	assert.Equal(t, 5, pc.Retry.MaxRetries)
	assert.InDelta(t, cfg.Observer.Latitude-1, pc.Box.LaMin, 1e-9)
	assert.InDelta(t, cfg.Observer.Latitude+1, pc.Box.LaMax, 1e-9)

	cfg.OpenSky.RadiusNM = 0
	assert.True(t, ConfigFor(cfg, zerolog.Nop()).Box.IsZero())
}

// Package feed polls a state-vector data source and hands every batch to a set
// of sinks (the track store, the database).
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// Sink receives every successfully fetched batch.
type Sink interface {
	Apply(ctx context.Context, states []opensky.StateVector, feedTime int64) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, states []opensky.StateVector, feedTime int64) error

// Apply calls f.
func (f SinkFunc) Apply(ctx context.Context, states []opensky.StateVector, feedTime int64) error {
	return f(ctx, states, feedTime)
}

// Stats are the poller's running counters.
type Stats struct {
	Polls        int
	Failures     int
	SinkFailures int
	LastStates   int
	LastFeedTime int64
	LastSuccess  time.Time
	LastError    string
}

// Poller periodically fetches state vectors for one bounding box.
type Poller struct {
	source   opensky.DataSource
	box      opensky.BoundingBox
	interval time.Duration
	retry    opensky.RetryConfig
	sinks    []Sink
	logger   zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// Config configures a Poller.
type Config struct {
	Box      opensky.BoundingBox
	Interval time.Duration
	Retry    opensky.RetryConfig
	Logger   zerolog.Logger
}

// NewPoller creates a poller delivering to sinks in order.
func NewPoller(source opensky.DataSource, cfg Config, sinks ...Sink) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Poller{
		source:   source,
		box:      cfg.Box,
		interval: cfg.Interval,
		retry:    cfg.Retry,
		sinks:    sinks,
		logger:   cfg.Logger,
	}
}

// Run polls immediately and then on every interval until ctx is cancelled.
// Poll errors are logged and counted; they never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Bool("worldwide", p.box.IsZero()).
		Msg("feed poller started")

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("feed poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll wraps PollOnce with panic recovery so one bad batch cannot stop the loop.
func (p *Poller) poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("panic in feed poll, retrying next cycle")
		}
	}()
	if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn().Err(err).Msg("feed poll failed")
	}
}

// PollOnce fetches one batch and applies it to every sink. A failing sink does
// not stop the others; the first sink error is returned.
func (p *Poller) PollOnce(ctx context.Context) error {
	type batch struct {
		states []opensky.StateVector
		time   int64
	}

	b, err := opensky.RetryWithBackoffResult(ctx, p.retry, func() (batch, error) {
		states, feedTime, err := p.source.GetStates(ctx, p.box)
		return batch{states, feedTime}, err
	})

	p.mu.Lock()
	p.stats.Polls++
	if err != nil {
		p.stats.Failures++
		p.stats.LastError = err.Error()
		p.mu.Unlock()
		return fmt.Errorf("failed to fetch states: %w", err)
	}
	p.stats.LastStates = len(b.states)
	p.stats.LastFeedTime = b.time
	p.stats.LastSuccess = time.Now()
	p.stats.LastError = ""
	p.mu.Unlock()

	var firstErr error
	for i, sink := range p.sinks {
		if err := sink.Apply(ctx, b.states, b.time); err != nil {
			p.mu.Lock()
			p.stats.SinkFailures++
			p.mu.Unlock()
			p.logger.Error().Err(err).Int("sink", i).Msg("sink rejected batch")
			if firstErr == nil {
				firstErr = fmt.Errorf("sink %d: %w", i, err)
			}
		}
	}

	p.logger.Debug().Int("states", len(b.states)).Int64("feed_time", b.time).Msg("feed polled")
	return firstErr
}

// Stats returns a copy of the running counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Package progress reports feed loading throughput on the daemon log.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Reporter periodically logs how many items have loaded and at what rate.
type Reporter struct {
	logger   zerolog.Logger
	interval time.Duration

	loaded atomic.Int64
	failed atomic.Int64

	mu        sync.Mutex
	startTime time.Time
	stopCh    chan struct{}
	stopped   bool
}

// NewReporter creates a reporter logging through the given logger.
func NewReporter(logger zerolog.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reporter{
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// ItemLoaded records one successfully loaded item.
func (r *Reporter) ItemLoaded() {
	r.loaded.Add(1)
}

// ItemFailed records one failed item.
func (r *Reporter) ItemFailed() {
	r.failed.Add(1)
}

// Loaded returns the number of loaded items.
func (r *Reporter) Loaded() int64 {
	return r.loaded.Load()
}

// Failed returns the number of failed items.
func (r *Reporter) Failed() int64 {
	return r.failed.Load()
}

// Start begins periodic logging. Call Stop to end it.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.startTime = time.Now()
	r.mu.Unlock()

	go r.loop()
}

// Stop ends periodic logging. Safe to call more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.stopCh)
}

func (r *Reporter) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	r.mu.Lock()
	elapsed := time.Since(r.startTime)
	r.mu.Unlock()

	loaded := r.loaded.Load()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(loaded) / elapsed.Seconds()
	}

	r.logger.Info().
		Int64("loaded", loaded).
		Int64("failed", r.failed.Load()).
		Float64("items_per_sec", rate).
		Msg("Feed progress")
}

package feed

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Common errors returned by the controller.
var (
	// ErrNoContent is returned by Initialize when the URL source has no rows.
	// The controller stays empty and OnReady is never fired.
	ErrNoContent = errors.New("url source returned no rows")
)

// Window describes a row window requested from the URL source.
// Start and End are 1-based and inclusive.
type Window struct {
	Start int
	End   int
}

// URLSource supplies paginated image URLs.
type URLSource interface {
	// FetchPage fetches the rows in the given window.
	// Returning an empty slice with no error means the source is exhausted.
	FetchPage(ctx context.Context, w Window) ([]string, error)
}

// Fetcher downloads and decodes a single image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// Sink receives ordered feed events from the controller.
type Sink interface {
	// OnReady fires once, after the initial page fetch and initial image
	// load have completed.
	OnReady()

	// OnResourceLoaded delivers a decoded image for the given buffer index.
	OnResourceLoaded(index int, img image.Image)

	// OnResourceFailed reports that the image at the given index could not
	// be loaded. The slot stays empty; there is no retry.
	OnResourceFailed(index int)
}

// Direction is the scroll axis direction reported with a position update.
type Direction int

const (
	// DirectionForward is scrolling toward unseen content.
	DirectionForward Direction = iota

	// DirectionBackward is scrolling toward already-rendered content.
	DirectionBackward
)

// Config holds controller configuration.
type Config struct {
	// BatchSize is the number of images loaded per batch.
	BatchSize int

	// PageSize is the number of rows requested per URL page.
	PageSize int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize: 5,
		PageSize:  100,
	}
}

// Controller is the prefetch controller. All state mutation happens inside
// controller-owned operations; the two in-flight flags are the only
// concurrency control and enforce at-most-one in-flight per operation kind.
type Controller struct {
	source  URLSource
	fetcher Fetcher
	sink    Sink
	config  Config
	logger  zerolog.Logger

	mu                    sync.Mutex
	urls                  []string
	consumed              int
	loadingImages         bool
	fetchingURLs          bool
	nextURLFetchThreshold int
}

// New creates a new prefetch controller.
func New(source URLSource, fetcher Fetcher, sink Sink, cfg Config) (*Controller, error) {
	if source == nil {
		return nil, fmt.Errorf("url source is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}

	logger := log.With().
		Str("component", "feed-controller").
		Str("session", uuid.NewString()).
		Logger()

	return &Controller{
		source:  source,
		fetcher: fetcher,
		sink:    sink,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Initialize fetches the first URL page and loads up to initialLoadCount
// images synchronously before firing OnReady. An empty first page is
// non-fatal to the process but leaves the controller empty: ErrNoContent is
// returned and OnReady never fires.
func (c *Controller) Initialize(ctx context.Context, initialLoadCount int) error {
	w := c.nextWindow()

	rows, err := c.source.FetchPage(ctx, w)
	if err != nil {
		c.logger.Error().Err(err).
			Int("start", w.Start).
			Int("end", w.End).
			Msg("Initial page fetch failed")
		return fmt.Errorf("fetch initial page: %w", err)
	}

	added := c.appendValid(rows)
	if added == 0 {
		c.logger.Warn().Msg("URL source returned no rows")
		return ErrNoContent
	}

	c.mu.Lock()
	c.nextURLFetchThreshold = urlFetchThreshold(len(c.urls))
	c.mu.Unlock()

	c.logger.Info().
		Int("urls", added).
		Int("initial_load", initialLoadCount).
		Msg("Feed initialized")

	// Bounded synchronous preload before the ready signal.
	if reqs := c.prepareBatch(initialLoadCount); reqs != nil {
		c.runBatch(ctx, reqs)
	}

	c.sink.OnReady()
	return nil
}

// OnScrollPositionChanged reports a normalized scroll position in [0,1].
// Scrolling forward past the dynamic threshold triggers the next image
// batch. The call never blocks on network I/O: batches run asynchronously,
// and the loadingImages flag suppresses duplicate triggers while one is in
// flight.
func (c *Controller) OnScrollPositionChanged(ctx context.Context, pos float64, dir Direction) {
	if dir != DirectionForward {
		return
	}

	c.mu.Lock()
	if c.loadingImages || c.consumed >= len(c.urls) {
		c.mu.Unlock()
		return
	}
	threshold := DynamicThreshold(c.consumed)
	c.mu.Unlock()

	if pos < threshold {
		return
	}

	c.logger.Debug().
		Float64("position", pos).
		Float64("threshold", threshold).
		Msg("Scroll threshold crossed")

	// A started batch is never cancelled, even if the caller's context is
	// request-scoped.
	batchCtx := context.WithoutCancel(ctx)
	if reqs := c.prepareBatch(c.config.BatchSize); reqs != nil {
		go c.runBatch(batchCtx, reqs)
	}
}

// LoadNextBatch loads the next batch of images synchronously and returns the
// number of fetches issued. It is a no-op (returning 0) when nothing remains
// or a batch is already in flight.
func (c *Controller) LoadNextBatch(ctx context.Context) int {
	reqs := c.prepareBatch(c.config.BatchSize)
	if reqs == nil {
		return 0
	}
	c.runBatch(ctx, reqs)
	return len(reqs)
}

// BufferLen returns the current URL buffer length.
func (c *Controller) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}

// Consumed returns the number of URLs that have had a fetch attempt issued.
func (c *Controller) Consumed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}

// Loading reports whether an image batch is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingImages
}

// FetchingURLs reports whether a URL-page fetch is in flight.
func (c *Controller) FetchingURLs() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchingURLs
}

// URLFetchThreshold returns the consumption count at which the next URL page
// will be fetched.
func (c *Controller) URLFetchThreshold() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextURLFetchThreshold
}

// nextWindow computes the next page window from the total accumulated buffer
// length. The source is paginated by count: rows are assumed to be neither
// skipped nor duplicated, so the next window starts right after the last
// buffered row.
func (c *Controller) nextWindow() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := len(c.urls) + 1
	return Window{Start: start, End: start + c.config.PageSize - 1}
}

// maybeFetchMoreURLs fetches the next URL page iff consumption has reached
// the 90% threshold and no page fetch is in flight. It is invoked whenever
// consumption advances.
func (c *Controller) maybeFetchMoreURLs(ctx context.Context) {
	c.mu.Lock()
	if c.fetchingURLs || c.consumed < c.nextURLFetchThreshold {
		c.mu.Unlock()
		return
	}
	c.fetchingURLs = true
	start := len(c.urls) + 1
	w := Window{Start: start, End: start + c.config.PageSize - 1}
	c.mu.Unlock()

	go c.fetchPage(context.WithoutCancel(ctx), w)
}

// fetchPage performs a single URL-page fetch. Failures are logged and not
// retried; the next attempt happens on the next threshold crossing.
func (c *Controller) fetchPage(ctx context.Context, w Window) {
	defer func() {
		c.mu.Lock()
		c.fetchingURLs = false
		c.mu.Unlock()
	}()

	rows, err := c.source.FetchPage(ctx, w)
	if err != nil {
		urlPagesTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).
			Int("start", w.Start).
			Int("end", w.End).
			Msg("URL page fetch failed")
		return
	}

	if len(rows) == 0 {
		// Source exhausted. Not an error: buffer growth just stops.
		urlPagesTotal.WithLabelValues("empty").Inc()
		c.logger.Debug().Int("start", w.Start).Msg("URL source exhausted")
		return
	}

	added := c.appendValid(rows)

	// The threshold recompute must use the post-append length, so a
	// late-arriving page does not immediately re-trigger.
	c.mu.Lock()
	c.nextURLFetchThreshold = urlFetchThreshold(len(c.urls))
	total := len(c.urls)
	c.mu.Unlock()

	urlPagesTotal.WithLabelValues("ok").Inc()
	c.logger.Info().
		Int("added", added).
		Int("buffer_len", total).
		Msg("URL page appended")
}

// urlFetchThreshold computes the consumption count that triggers the next
// page fetch: 90% of the buffer, rounded down.
func urlFetchThreshold(bufferLen int) int {
	return bufferLen * 9 / 10
}

// Package fetcher provides the HTTP image fetcher: it downloads an image
// URL, optionally through the Redis byte cache, and returns the decoded
// image. Failures carry a FetchError classification; there is no retry -
// a failed item is simply an absent slot in the feed.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	// Decoders for the image formats the feed serves.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scrollfeed/scrollfeed/pkg/cache"
)

// Prometheus metrics for image fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_fetch_requests_total",
		Help: "Total image fetch requests by status",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_fetch_duration_seconds",
		Help:    "Image fetch duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_fetch_errors_total",
		Help: "Total image fetch errors by kind",
	}, []string{"kind"})

	fetchBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_fetch_bytes_total",
		Help: "Total image bytes downloaded",
	})
)

// Config holds the fetcher configuration.
type Config struct {
	// Timeout per image download.
	Timeout time.Duration

	// UserAgent header sent with every request.
	UserAgent string

	// MaxBytes caps the accepted image payload size.
	MaxBytes int64

	// Cache is the optional Redis byte cache consulted before the network.
	Cache *cache.Manager

	// CacheTTL is how long downloaded bytes stay cached.
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "scrollfeed/1.0",
		MaxBytes:  16 << 20, // 16 MiB
		CacheTTL:  time.Hour,
	}
}

// Client downloads and decodes images. It implements feed.Fetcher.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new image fetcher.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 << 20
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "image-fetcher").Logger(),
	}
}

// Fetch downloads the image at rawURL and returns it decoded.
func (c *Client) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	startTime := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(startTime).Seconds())
	}()

	if c.config.Cache != nil {
		if img := c.fromCache(ctx, rawURL); img != nil {
			fetchRequestsTotal.WithLabelValues("cache_hit").Inc()
			return img, nil
		}
	}

	body, contentType, err := c.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(KindDecode)).Inc()
		return nil, &FetchError{URL: rawURL, Kind: KindDecode, Err: err}
	}

	if c.config.Cache != nil {
		entry := &cache.Entry{
			Data:        body,
			ContentType: contentType,
			Expires:     time.Now().Add(c.config.CacheTTL),
			FetchedAt:   time.Now(),
		}
		if err := c.config.Cache.Set(ctx, cache.KeyForURL(rawURL), entry); err != nil {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache image")
		}
	}

	c.logger.Debug().
		Str("url", rawURL).
		Str("format", format).
		Int("bytes", len(body)).
		Msg("Image fetched")

	return img, nil
}

// fromCache returns the decoded cached image, or nil on miss. A cached
// payload that no longer decodes is dropped so the next fetch goes to the
// network.
func (c *Client) fromCache(ctx context.Context, rawURL string) image.Image {
	key := cache.KeyForURL(rawURL)

	entry, err := c.config.Cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Cache get error")
		}
		return nil
	}

	img, _, err := image.Decode(bytes.NewReader(entry.Data))
	if err != nil {
		c.logger.Warn().Err(err).Str("url", rawURL).Msg("Dropping undecodable cache entry")
		_ = c.config.Cache.Delete(ctx, key)
		return nil
	}

	return img
}

// download performs the HTTP GET and returns the raw payload.
func (c *Client) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(KindConnection)).Inc()
		return nil, "", &FetchError{URL: rawURL, Kind: KindConnection, Err: err}
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(KindConnection)).Inc()
		fetchRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, "", &FetchError{URL: rawURL, Kind: KindConnection, Err: err}
	}
	defer resp.Body.Close()

	fetchRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		fetchErrorsTotal.WithLabelValues(string(KindProtocol)).Inc()
		return nil, "", &FetchError{URL: rawURL, Kind: KindProtocol, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes+1))
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(KindConnection)).Inc()
		return nil, "", &FetchError{URL: rawURL, Kind: KindConnection, Err: err}
	}

	if int64(len(body)) > c.config.MaxBytes {
		fetchErrorsTotal.WithLabelValues(string(KindProtocol)).Inc()
		return nil, "", &FetchError{
			URL:  rawURL,
			Kind: KindProtocol,
			Err:  fmt.Errorf("payload exceeds %d bytes", c.config.MaxBytes),
		}
	}

	if len(body) == 0 {
		fetchErrorsTotal.WithLabelValues(string(KindEmptyPayload)).Inc()
		return nil, "", &FetchError{URL: rawURL, Kind: KindEmptyPayload}
	}

	fetchBytesTotal.Add(float64(len(body)))

	return body, resp.Header.Get("Content-Type"), nil
}

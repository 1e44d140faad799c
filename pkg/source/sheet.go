package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scrollfeed/scrollfeed/pkg/feed"
	"github.com/scrollfeed/scrollfeed/pkg/quota"
)

// Prometheus metrics for source operations.
var (
	sourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_source_requests_total",
		Help: "Total URL source requests by status",
	}, []string{"status"})

	sourceRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_source_request_duration_seconds",
		Help:    "URL source request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

// Config holds the sheet source configuration.
type Config struct {
	// BaseURL is the values API root.
	BaseURL string

	// SpreadsheetID identifies the sheet holding the URL column.
	SpreadsheetID string

	// Sheet is the tab name.
	Sheet string

	// Column is the column letter holding the image URLs.
	Column string

	// APIKey authorizes read access to the published sheet.
	APIKey string

	// Timeout per page fetch.
	Timeout time.Duration

	// Quota optionally gates page fetches on the shared read quota.
	Quota *quota.Tracker
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(spreadsheetID, apiKey string) Config {
	return Config{
		BaseURL:       "https://sheets.googleapis.com/v4/spreadsheets",
		SpreadsheetID: spreadsheetID,
		Sheet:         "Sheet1",
		Column:        "A",
		APIKey:        apiKey,
		Timeout:       15 * time.Second,
	}
}

// SheetSource fetches image URL rows from a spreadsheet values API.
// It implements feed.URLSource.
type SheetSource struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewSheet creates a new sheet-backed URL source.
func NewSheet(cfg Config) (*SheetSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	if cfg.Sheet == "" {
		cfg.Sheet = "Sheet1"
	}
	if cfg.Column == "" {
		cfg.Column = "A"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := log.With().Str("component", "sheet-source").Logger()

	return &SheetSource{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// valuesResponse mirrors the values API payload.
type valuesResponse struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// rangeSpec renders the window as an A1-notation range for the URL column.
func (s *SheetSource) rangeSpec(w feed.Window) string {
	col := s.config.Column
	return fmt.Sprintf("%s!%s%d:%s%d", s.config.Sheet, col, w.Start, col, w.End)
}

// FetchPage fetches the rows in the given window. A window past the end of
// the sheet returns an empty slice with no error.
func (s *SheetSource) FetchPage(ctx context.Context, w feed.Window) ([]string, error) {
	startTime := time.Now()
	defer func() {
		sourceRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if s.config.Quota != nil {
		allowed, err := s.config.Quota.ShouldAllowRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !allowed {
			sourceRequestsTotal.WithLabelValues("quota_blocked").Inc()
			return nil, fmt.Errorf("page fetch blocked: source quota critical")
		}
	}

	rangeSpec := s.rangeSpec(w)
	reqURL := fmt.Sprintf("%s/%s/values/%s",
		strings.TrimRight(s.config.BaseURL, "/"),
		s.config.SpreadsheetID,
		url.PathEscape(rangeSpec))
	if s.config.APIKey != "" {
		reqURL += "?key=" + url.QueryEscape(s.config.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	s.logger.Debug().
		Str("range", rangeSpec).
		Msg("Fetching URL page")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		sourceRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("fetch page %s: %w", rangeSpec, err)
	}
	defer resp.Body.Close()

	if s.config.Quota != nil {
		if err := s.config.Quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	if resp.StatusCode != http.StatusOK {
		sourceRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return nil, fmt.Errorf("fetch page %s: source returned status %d", rangeSpec, resp.StatusCode)
	}

	var payload valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		sourceRequestsTotal.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("decode page %s: %w", rangeSpec, err)
	}

	sourceRequestsTotal.WithLabelValues("200").Inc()

	// A window past the last row comes back with no values at all.
	rows := make([]string, 0, len(payload.Values))
	for _, row := range payload.Values {
		if len(row) == 0 {
			continue
		}
		if v := strings.TrimSpace(row[0]); v != "" {
			rows = append(rows, v)
		}
	}

	s.logger.Debug().
		Str("range", rangeSpec).
		Int("rows", len(rows)).
		Msg("URL page fetched")

	return rows, nil
}

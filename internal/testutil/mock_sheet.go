// Package testutil provides testing utilities for scrollfeed.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
)

// rangePattern matches A1-notation ranges like "Sheet1!A11:A110".
var rangePattern = regexp.MustCompile(`^(.+)!([A-Z]+)(\d+):([A-Z]+)(\d+)$`)

// MockSheet is a configurable mock spreadsheet values server. It serves
// windows of the configured row list the way the real values API does:
// requests past the last row return a payload without a "values" field.
type MockSheet struct {
	server *httptest.Server

	mu           sync.Mutex
	rows         []string
	failStatus   int // when non-zero, every request fails with this status
	quotaHeaders map[string]string

	// Tracking
	RequestCount int
	LastRange    string
}

// NewMockSheet creates a mock values server seeded with the given rows.
func NewMockSheet(rows []string) *MockSheet {
	mock := &MockSheet{rows: rows}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server's base URL.
func (m *MockSheet) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSheet) Close() {
	m.server.Close()
}

// AppendRows adds rows to the sheet.
func (m *MockSheet) AppendRows(rows ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
}

// FailWith makes every subsequent request fail with the given status.
// Pass 0 to restore normal behavior.
func (m *MockSheet) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatus = status
}

// SetQuotaHeaders sets rate limit headers returned with every response.
func (m *MockSheet) SetQuotaHeaders(remaining, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotaHeaders = map[string]string{
		"X-RateLimit-Remaining": strconv.Itoa(remaining),
		"X-RateLimit-Reset":     strconv.Itoa(resetSeconds),
	}
}

// Requests returns how many requests the server has seen.
func (m *MockSheet) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

type valuesPayload struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values,omitempty"`
}

func (m *MockSheet) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	failStatus := m.failStatus
	for k, v := range m.quotaHeaders {
		w.Header().Set(k, v)
	}
	rows := m.rows
	m.mu.Unlock()

	if failStatus != 0 {
		http.Error(w, http.StatusText(failStatus), failStatus)
		return
	}

	// The range is the last path segment: /{id}/values/{range}
	rangeSpec := r.URL.Path
	if idx := lastSlash(rangeSpec); idx >= 0 {
		rangeSpec = rangeSpec[idx+1:]
	}

	match := rangePattern.FindStringSubmatch(rangeSpec)
	if match == nil {
		http.Error(w, fmt.Sprintf("bad range %q", rangeSpec), http.StatusBadRequest)
		return
	}

	start, _ := strconv.Atoi(match[3])
	end, _ := strconv.Atoi(match[5])

	m.mu.Lock()
	m.LastRange = rangeSpec
	m.mu.Unlock()

	payload := valuesPayload{
		Range:          rangeSpec,
		MajorDimension: "ROWS",
	}
	for i := start; i <= end && i <= len(rows); i++ {
		payload.Values = append(payload.Values, []string{rows[i-1]})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

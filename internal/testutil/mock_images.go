package testutil

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// ImageBehavior defines how the mock image server answers one path.
type ImageBehavior struct {
	StatusCode int           // default 200
	Empty      bool          // serve a 200 with no body
	Garbage    bool          // serve bytes that do not decode
	Delay      time.Duration // artificial latency
}

// MockImages is a mock image origin. Every path serves a small PNG unless a
// behavior overrides it.
type MockImages struct {
	server *httptest.Server

	mu        sync.Mutex
	behaviors map[string]ImageBehavior
	requests  int
	payload   []byte
}

// NewMockImages creates a new mock image server.
func NewMockImages() *MockImages {
	var buf bytes.Buffer
	// Errors are impossible for an in-memory RGBA encode.
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)))

	mock := &MockImages{
		behaviors: make(map[string]ImageBehavior),
		payload:   buf.Bytes(),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server's base URL.
func (m *MockImages) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockImages) Close() {
	m.server.Close()
}

// SetBehavior overrides how the given path is served.
func (m *MockImages) SetBehavior(path string, b ImageBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors[path] = b
}

// Requests returns how many requests the server has seen.
func (m *MockImages) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *MockImages) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests++
	b := m.behaviors[r.URL.Path]
	payload := m.payload
	m.mu.Unlock()

	if b.Delay > 0 {
		time.Sleep(b.Delay)
	}

	if b.StatusCode != 0 && b.StatusCode != http.StatusOK {
		http.Error(w, http.StatusText(b.StatusCode), b.StatusCode)
		return
	}

	if b.Empty {
		w.WriteHeader(http.StatusOK)
		return
	}

	if b.Garbage {
		w.Write([]byte("definitely not an image"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(payload)
}

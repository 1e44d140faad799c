package feed

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource serves pre-baked pages keyed by window start.
type fakeSource struct {
	mu    sync.Mutex
	pages map[int][]string
	err   error
	calls int
}

func (s *fakeSource) FetchPage(ctx context.Context, w Window) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.pages[w.Start], nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeFetcher returns a stub image for every URL, with optional per-URL
// failures and delays.
type fakeFetcher struct {
	failures map[string]error
	delays   map[string]time.Duration
	calls    atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	f.calls.Add(1)
	if d, ok := f.delays[url]; ok {
		time.Sleep(d)
	}
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

// sinkEvent records a single sink callback.
type sinkEvent struct {
	index  int
	failed bool
}

// recordSink records events in delivery order.
type recordSink struct {
	mu     sync.Mutex
	ready  bool
	events []sinkEvent
}

func (s *recordSink) OnReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

func (s *recordSink) OnResourceLoaded(index int, _ image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{index: index})
}

func (s *recordSink) OnResourceFailed(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{index: index, failed: true})
}

func (s *recordSink) snapshot() (bool, []sinkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]sinkEvent, len(s.events))
	copy(events, s.events)
	return s.ready, events
}

// urls generates n sequential test URLs.
func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://img.example.com/%d.jpg", i+1)
	}
	return out
}

// waitUntil polls cond until it holds or the timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestController(t *testing.T, source URLSource, fetcher Fetcher, sink Sink, cfg Config) *Controller {
	t.Helper()
	ctrl, err := New(source, fetcher, sink, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return ctrl
}

func TestNew_Validation(t *testing.T) {
	source := &fakeSource{}
	fetcher := &fakeFetcher{}
	sink := &recordSink{}

	tests := []struct {
		name    string
		source  URLSource
		fetcher Fetcher
		sink    Sink
		wantErr bool
	}{
		{name: "valid", source: source, fetcher: fetcher, sink: sink},
		{name: "nil source", fetcher: fetcher, sink: sink, wantErr: true},
		{name: "nil fetcher", source: source, sink: sink, wantErr: true},
		{name: "nil sink", source: source, fetcher: fetcher, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.source, tt.fetcher, tt.sink, DefaultConfig())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitialize_PreloadsAndSignalsReady(t *testing.T) {
	source := &fakeSource{pages: map[int][]string{1: urls(10)}}
	sink := &recordSink{}
	ctrl := newTestController(t, source, &fakeFetcher{}, sink, DefaultConfig())

	if err := ctrl.Initialize(context.Background(), 3); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	ready, events := sink.snapshot()
	if !ready {
		t.Error("OnReady not fired")
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.index != i || ev.failed {
			t.Errorf("event %d = %+v, want loaded index %d", i, ev, i)
		}
	}
	if got := ctrl.Consumed(); got != 3 {
		t.Errorf("Consumed() = %d, want 3", got)
	}
	if got := ctrl.URLFetchThreshold(); got != 9 {
		t.Errorf("URLFetchThreshold() = %d, want 9", got)
	}
}

func TestInitialize_EmptySource(t *testing.T) {
	source := &fakeSource{pages: map[int][]string{}}
	sink := &recordSink{}
	ctrl := newTestController(t, source, &fakeFetcher{}, sink, DefaultConfig())

	err := ctrl.Initialize(context.Background(), 5)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("Initialize() error = %v, want ErrNoContent", err)
	}

	ready, events := sink.snapshot()
	if ready {
		t.Error("OnReady fired for empty source")
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestInitialize_SourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("sheet unavailable")}
	ctrl := newTestController(t, source, &fakeFetcher{}, &recordSink{}, DefaultConfig())

	if err := ctrl.Initialize(context.Background(), 5); err == nil {
		t.Fatal("Initialize() succeeded, want error")
	}
}

func TestLoadNextBatch_ConsumesBatchSize(t *testing.T) {
	// Buffer u1..u10 with batch size 5: exactly u1..u5 load and
	// consumption advances to 5.
	source := &fakeSource{pages: map[int][]string{1: urls(10)}}
	sink := &recordSink{}
	fetcher := &fakeFetcher{}
	ctrl := newTestController(t, source, fetcher, sink, Config{BatchSize: 5, PageSize: 100})

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	n := ctrl.LoadNextBatch(context.Background())
	if n != 5 {
		t.Fatalf("LoadNextBatch() = %d, want 5", n)
	}
	if got := ctrl.Consumed(); got != 5 {
		t.Errorf("Consumed() = %d, want 5", got)
	}

	_, events := sink.snapshot()
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	for i, ev := range events {
		if ev.index != i {
			t.Errorf("event %d has index %d, want %d", i, ev.index, i)
		}
	}
}

func TestLoadNextBatch_NeverExceedsRemaining(t *testing.T) {
	source := &fakeSource{pages: map[int][]string{1: urls(3)}}
	ctrl := newTestController(t, source, &fakeFetcher{}, &recordSink{}, Config{BatchSize: 5, PageSize: 100})

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if n := ctrl.LoadNextBatch(context.Background()); n != 3 {
		t.Errorf("LoadNextBatch() = %d, want 3", n)
	}
	if n := ctrl.LoadNextBatch(context.Background()); n != 0 {
		t.Errorf("LoadNextBatch() on exhausted buffer = %d, want 0", n)
	}
}

func TestBatch_OrderedDeliveryWithFailure(t *testing.T) {
	// Item at index 3 fails; earlier items are slow, later ones fast.
	// Delivery order must still follow the buffer order.
	rows := urls(5)
	source := &fakeSource{pages: map[int][]string{1: rows}}
	fetcher := &fakeFetcher{
		failures: map[string]error{rows[3]: errors.New("connection refused")},
		delays: map[string]time.Duration{
			rows[0]: 50 * time.Millisecond,
			rows[4]: time.Millisecond,
		},
	}
	sink := &recordSink{}
	ctrl := newTestController(t, source, fetcher, sink, Config{BatchSize: 5, PageSize: 100})

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	ctrl.LoadNextBatch(context.Background())

	_, events := sink.snapshot()
	want := []sinkEvent{
		{index: 0}, {index: 1}, {index: 2},
		{index: 3, failed: true},
		{index: 4},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
	if ctrl.Loading() {
		t.Error("loading flag still set after batch completed with a failure")
	}
}

func TestScroll_SingleInFlightBatch(t *testing.T) {
	// A burst of concurrent scroll events past the threshold must trigger
	// exactly one batch.
	source := &fakeSource{pages: map[int][]string{1: urls(10)}}
	fetcher := &fakeFetcher{delays: map[string]time.Duration{}}
	for _, u := range urls(10) {
		fetcher.delays[u] = 30 * time.Millisecond
	}
	sink := &recordSink{}
	ctrl := newTestController(t, source, fetcher, sink, Config{BatchSize: 5, PageSize: 100})

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.OnScrollPositionChanged(context.Background(), 0.99, DirectionForward)
		}()
	}
	wg.Wait()

	waitUntil(t, time.Second, func() bool { return !ctrl.Loading() && ctrl.Consumed() == 5 })

	if got := fetcher.calls.Load(); got != 5 {
		t.Errorf("fetcher called %d times, want 5 (single batch)", got)
	}
}

func TestScroll_IgnoresBelowThresholdAndBackward(t *testing.T) {
	source := &fakeSource{pages: map[int][]string{1: urls(10)}}
	fetcher := &fakeFetcher{}
	ctrl := newTestController(t, source, fetcher, &recordSink{}, DefaultConfig())

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	ctrl.OnScrollPositionChanged(context.Background(), 0.5, DirectionForward)
	ctrl.OnScrollPositionChanged(context.Background(), 0.99, DirectionBackward)
	time.Sleep(50 * time.Millisecond)

	if got := fetcher.calls.Load(); got != 0 {
		t.Errorf("fetcher called %d times, want 0", got)
	}
	if got := ctrl.Consumed(); got != 0 {
		t.Errorf("Consumed() = %d, want 0", got)
	}
}

func TestURLRefetch_ThresholdUsesPostAppendLength(t *testing.T) {
	// Consuming 9 of 10 crosses the 90% threshold; the appended page of 20
	// grows the buffer to 30 and the recomputed threshold is floor(0.9*30).
	source := &fakeSource{pages: map[int][]string{
		1:  urls(10),
		11: urls(30)[10:],
	}}
	ctrl := newTestController(t, source, &fakeFetcher{}, &recordSink{}, Config{BatchSize: 9, PageSize: 10})

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if got := ctrl.URLFetchThreshold(); got != 9 {
		t.Fatalf("initial URLFetchThreshold() = %d, want 9", got)
	}

	ctrl.LoadNextBatch(context.Background())

	waitUntil(t, time.Second, func() bool { return !ctrl.FetchingURLs() && ctrl.BufferLen() == 30 })

	if got := ctrl.BufferLen(); got != 30 {
		t.Errorf("BufferLen() = %d, want 30", got)
	}
	if got := ctrl.URLFetchThreshold(); got != 27 {
		t.Errorf("URLFetchThreshold() = %d, want 27", got)
	}
}

func TestURLRefetch_EmptyPageStopsGrowth(t *testing.T) {
	source := &fakeSource{pages: map[int][]string{1: urls(10)}}
	ctrl := newTestController(t, source, &fakeFetcher{}, &recordSink{}, Config{BatchSize: 9, PageSize: 10})

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	ctrl.LoadNextBatch(context.Background())

	waitUntil(t, time.Second, func() bool { return !ctrl.FetchingURLs() })

	if got := ctrl.BufferLen(); got != 10 {
		t.Errorf("BufferLen() = %d, want 10 (unchanged)", got)
	}
	if got := source.callCount(); got != 2 {
		t.Errorf("source called %d times, want 2 (no auto-retry)", got)
	}
}

func TestAppendValid_DropsInvalidRows(t *testing.T) {
	source := &fakeSource{pages: map[int][]string{1: {
		"https://img.example.com/a.jpg",
		"ftp://img.example.com/b.jpg",
		"not a url",
		"/relative/path.jpg",
		"http://img.example.com/c.jpg",
	}}}
	ctrl := newTestController(t, source, &fakeFetcher{}, &recordSink{}, DefaultConfig())

	if err := ctrl.Initialize(context.Background(), 0); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if got := ctrl.BufferLen(); got != 2 {
		t.Errorf("BufferLen() = %d, want 2", got)
	}
}

// Package sink provides presentation sinks for the feed controller. The
// daemon's sink persists decoded images into a gocloud blob bucket and
// records item outcomes, standing in for the scrolling UI of a client.
package sink

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"

	"github.com/scrollfeed/scrollfeed/internal/history"
	"github.com/scrollfeed/scrollfeed/internal/progress"
)

// Item statuses.
const (
	StatusLoaded = "loaded"
	StatusFailed = "failed"
)

// Item is the externally visible state of one feed slot.
type Item struct {
	Index    int       `json:"index"`
	Status   string    `json:"status"`
	Key      string    `json:"key,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

// BucketSink implements feed.Sink by writing decoded images into a blob
// bucket as PNG. History and progress are optional.
type BucketSink struct {
	bucket   *blob.Bucket
	history  *history.Store
	progress *progress.Reporter
	session  string
	timeout  time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	ready bool
	items map[int]Item
}

// NewBucket creates a sink writing into bucket. history and reporter may be
// nil. session tags history records.
func NewBucket(bucket *blob.Bucket, hist *history.Store, reporter *progress.Reporter, session string) *BucketSink {
	return &BucketSink{
		bucket:   bucket,
		history:  hist,
		progress: reporter,
		session:  session,
		timeout:  30 * time.Second,
		logger:   log.With().Str("component", "bucket-sink").Logger(),
		items:    make(map[int]Item),
	}
}

// OnReady implements feed.Sink.
func (s *BucketSink) OnReady() {
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	s.logger.Info().Msg("Feed ready")
}

// Ready reports whether the feed has signaled readiness.
func (s *BucketSink) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// blobKey names the stored object for a feed index.
func (s *BucketSink) blobKey(index int) string {
	return fmt.Sprintf("items/%08d.png", index)
}

// OnResourceLoaded implements feed.Sink: the image is re-encoded as PNG and
// written to the bucket.
func (s *BucketSink) OnResourceLoaded(index int, img image.Image) {
	key := s.blobKey(index)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.write(ctx, key, img); err != nil {
		s.logger.Warn().Err(err).Int("index", index).Msg("Failed to store image")
		s.OnResourceFailed(index)
		return
	}

	item := Item{Index: index, Status: StatusLoaded, Key: key, LoadedAt: time.Now()}
	s.mu.Lock()
	s.items[index] = item
	s.mu.Unlock()

	if s.progress != nil {
		s.progress.ItemLoaded()
	}
	s.record(item)

	s.logger.Debug().Int("index", index).Str("key", key).Msg("Image stored")
}

// OnResourceFailed implements feed.Sink. The slot stays empty.
func (s *BucketSink) OnResourceFailed(index int) {
	item := Item{Index: index, Status: StatusFailed, LoadedAt: time.Now()}
	s.mu.Lock()
	s.items[index] = item
	s.mu.Unlock()

	if s.progress != nil {
		s.progress.ItemFailed()
	}
	s.record(item)
}

// Items returns all known items in index order.
func (s *BucketSink) Items() []Item {
	s.mu.Lock()
	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })
	return items
}

func (s *BucketSink) write(ctx context.Context, key string, img image.Image) error {
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return fmt.Errorf("open writer %s: %w", key, err)
	}

	if err := png.Encode(w, img); err != nil {
		w.Close()
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer %s: %w", key, err)
	}

	return nil
}

func (s *BucketSink) record(item Item) {
	if s.history == nil {
		return
	}
	rec := history.Record{
		Session: s.session,
		Index:   item.Index,
		Status:  item.Status,
		Key:     item.Key,
		At:      item.LoadedAt,
	}
	if err := s.history.Put(rec); err != nil {
		s.logger.Warn().Err(err).Int("index", item.Index).Msg("Failed to record history")
	}
}

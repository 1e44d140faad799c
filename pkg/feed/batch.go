package feed

import (
	"context"
	"image"
	"time"
)

// loadRequest is one slot of an image batch.
type loadRequest struct {
	index int
	url   string
	done  chan loadResult
}

type loadResult struct {
	img image.Image
	err error
}

// prepareBatch reserves the next batch under the lock: it captures up to max
// unconsumed URLs, advances the consumption count and sets the in-flight
// flag. Returns nil if nothing remains or a batch is already in flight.
// Consumption counts fetch attempts issued, not successes.
func (c *Controller) prepareBatch(max int) []loadRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loadingImages {
		return nil
	}

	n := len(c.urls) - c.consumed
	if n > max {
		n = max
	}
	if n <= 0 {
		return nil
	}

	reqs := make([]loadRequest, n)
	for i := 0; i < n; i++ {
		reqs[i] = loadRequest{
			index: c.consumed + i,
			url:   c.urls[c.consumed+i],
			done:  make(chan loadResult, 1),
		}
	}

	c.consumed += n
	c.loadingImages = true
	return reqs
}

// runBatch executes a prepared batch: all fetches start concurrently, but
// results are awaited strictly in index order so images reach the sink in
// the order their URLs were listed. Per-item failures are logged and the
// slot is discarded; the batch always runs to completion and the flag is
// cleared regardless of individual failures.
func (c *Controller) runBatch(ctx context.Context, reqs []loadRequest) {
	start := time.Now()
	batchesTotal.Inc()

	for _, req := range reqs {
		go func(req loadRequest) {
			img, err := c.fetcher.Fetch(ctx, req.url)
			req.done <- loadResult{img: img, err: err}
		}(req)
	}

	// Consumption just advanced; see whether the URL buffer needs topping
	// up. This may overlap with the image loads below.
	c.maybeFetchMoreURLs(ctx)

	loaded := 0
	for _, req := range reqs {
		res := <-req.done
		if res.err != nil {
			itemsTotal.WithLabelValues("failed").Inc()
			c.logger.Warn().Err(res.err).
				Int("index", req.index).
				Str("url", req.url).
				Msg("Image load failed")
			c.sink.OnResourceFailed(req.index)
			continue
		}
		itemsTotal.WithLabelValues("loaded").Inc()
		c.sink.OnResourceLoaded(req.index, res.img)
		loaded++
	}

	c.mu.Lock()
	c.loadingImages = false
	c.mu.Unlock()

	batchDuration.Observe(time.Since(start).Seconds())
	c.logger.Debug().
		Int("requested", len(reqs)).
		Int("loaded", loaded).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")
}

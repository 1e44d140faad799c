// Package feed implements the buffered prefetch controller for
// infinite-scroll image feeds.
//
// The controller owns a paginated URL buffer, tracks how much of it has been
// consumed, and decides when to fetch more images and when to fetch the next
// page of URLs. It knows nothing about how pages or images are fetched, or
// how images are rendered - those are collaborators behind the URLSource,
// Fetcher and Sink interfaces.
//
// Example usage:
//
//	ctrl, err := feed.New(source, fetcher, sink, feed.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	if err := ctrl.Initialize(ctx, 5); err != nil {
//		return err
//	}
//	// On every render tick:
//	ctrl.OnScrollPositionChanged(ctx, pos, feed.DirectionForward)
//
// The controller:
//   - Loads an initial bounded set of images before signaling OnReady
//   - Computes a dynamic scroll threshold that grows with consumption
//   - Issues image batches concurrently but delivers results in index order
//   - Refetches the URL page when consumption crosses 90% of the buffer
//   - Guarantees at most one in-flight image batch and one in-flight
//     URL-page fetch at any time
package feed

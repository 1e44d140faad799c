// Package source implements the paginated URL source backed by a
// spreadsheet values API.
//
// Image URLs live in a single column of a published sheet. The controller
// asks for 100-row windows and the source renders them as A1-notation
// ranges, e.g. "Sheet1!A11:A110". Pagination is by accumulated count: the
// sheet is assumed to never skip or duplicate rows, so the next window
// always starts right after the last buffered row. This scheme is part of
// the external contract and must not be replaced with a server-side cursor.
//
// Example usage:
//
//	cfg := source.DefaultConfig("1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", apiKey)
//	sheet, err := source.NewSheet(cfg)
//	if err != nil {
//		return err
//	}
//	rows, err := sheet.FetchPage(ctx, feed.Window{Start: 1, End: 100})
//
// When a quota.Tracker is configured, page fetches are gated on the shared
// read quota before any request is made.
package source

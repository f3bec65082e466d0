// Package finder implements the paginated search-and-fetch controller behind
// the image finder.
//
// A Controller holds the current query, page, accumulated results and a busy
// flag. Two entry points change that state and each schedules exactly one
// fetch through a Searcher:
//
//	ctrl, err := finder.New(pexelsClient, notifier, finder.DefaultConfig())
//	ctrl.Start()              // page 1 of the default query
//	ctrl.SubmitQuery("cats")  // reset to page 1 of "cats"
//	ctrl.LoadMore()           // append page 2
//
// Page 1 replaces the results, later pages are appended. Any failure leaves
// the results untouched, logs the cause and sends a single notification.
//
// Fetches are never cancelled while the controller is open. Each one is tagged
// with the state generation it was issued for; a response that arrives after
// the state has moved on (for example page 1 of an older query) is dropped.
//
// # Metrics
//
//   - finder_fetches_total{outcome} - success, failure, stale
//   - finder_fetches_in_flight - outstanding fetches
package finder

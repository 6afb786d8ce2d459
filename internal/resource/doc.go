// Package resource centralizes the limits the tile store enforces outside
// its own cache budgets.
//
//   - Memory: resident layer payload bytes are charged here. Crossing the
//     optional limit makes the tile tree evict payloads before loading more.
//   - Persistence workers: a weighted semaphore bounds how many roots are
//     written concurrently by PersistAll.
//   - IO: a token bucket throttles persistence writes so flushing a large
//     dirty tree does not starve other disk users.
//
// All methods are safe for concurrent use, and all of them are no-ops on a
// nil *Controller.
package resource

// Package crawler implements the resumable crawl engine: the pagination
// walker, the article fetcher, the retry coordinator and the persistent
// crawl state (ledger of saved articles plus the queue of failed URLs).
//
// Execution is strictly sequential. State is loaded once, mutated in memory
// and flushed after every listing page and after every retry pass, so an
// interrupted run loses at most the page that was in flight.
package crawler

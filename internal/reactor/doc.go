// Package reactor provides the single-goroutine event loop that serializes
// every connection and timer event of a fetch run. Handlers posted to a Loop
// run one at a time in the order they were posted, so state touched only
// from handlers needs no locking.
package reactor

// Package fetch implements the per-connection state machine that downloads
// one poem: Connecting, then Receiving, then Closed with exactly one
// Outcome. The payload is unframed; the server closing the connection marks
// the end of the poem.
//
// Attempts on even ports get a deadline (see EvenPortPolicy). When it fires
// the connection is reset and the attempt closes as TimedOut; a clean close
// that is processed first cancels the deadline instead.
package fetch

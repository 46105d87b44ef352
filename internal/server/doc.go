// Package server implements the slow poetry server used to exercise the
// client: each listener writes a poem a few bytes at a time, pausing between
// writes, and can be told to hang instead of closing. An optional gRPC admin
// endpoint reports per-listener health.
package server

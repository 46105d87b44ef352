// Package poetry runs one fetch attempt per address on a shared event loop
// and collects their outcomes until every attempt has resolved.
package poetry

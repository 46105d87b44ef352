// Package metrics defines the Prometheus collectors for fetch outcomes and
// poetry server activity. Collectors are registered on a caller-supplied
// registry so tests and binaries do not share global state.
package metrics

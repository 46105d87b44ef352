package aggregate

import (
	"fmt"
	"sync"

	"getpoetry/internal/config"
	"getpoetry/internal/fetch"
)

// Failure records an attempt that produced no poem.
type Failure struct {
	Address config.Address
	Kind    fetch.Kind
	Err     error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Address, f.Err)
}

// Result is the partitioned outcome of a run. Both slices are in
// completion order.
type Result struct {
	Poems    []string
	Failures []Failure
}

// Aggregator counts resolved attempts and signals completion once all
// expected attempts have reported.
type Aggregator struct {
	mu         sync.Mutex
	registered bool
	expected   int
	resolved   int
	poems      []string
	failures   []Failure
	done       chan struct{}
}

// New creates an Aggregator. Register must be called before Report.
func New() *Aggregator {
	return &Aggregator{
		done: make(chan struct{}),
	}
}

// Register sets the number of attempts being tracked. Zero completes
// immediately. Calling it twice is a programming error.
func (a *Aggregator) Register(expected int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.registered {
		panic("aggregate: Register called twice")
	}
	if expected < 0 {
		panic(fmt.Sprintf("aggregate: negative expected count %d", expected))
	}

	a.registered = true
	a.expected = expected
	a.poems = make([]string, 0, expected)
	if expected == 0 {
		close(a.done)
	}
}

// Report records one terminal outcome. Reporting before Register or after
// completion is a programming error.
func (a *Aggregator) Report(addr config.Address, o fetch.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.registered {
		panic("aggregate: Report called before Register")
	}
	if a.resolved >= a.expected {
		panic(fmt.Sprintf("aggregate: report for %s after all %d attempts resolved", addr, a.expected))
	}

	if o.Kind == fetch.KindPoem {
		a.poems = append(a.poems, o.Poem)
	} else {
		a.failures = append(a.failures, Failure{Address: addr, Kind: o.Kind, Err: o.Err})
	}

	a.resolved++
	if a.resolved == a.expected {
		close(a.done)
	}
}

// Done is closed exactly once, when every expected attempt has reported.
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

// Resolved returns the resolved and expected counts.
func (a *Aggregator) Resolved() (resolved, expected int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolved, a.expected
}

// Result returns a copy of what has been collected so far.
func (a *Aggregator) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Result{
		Poems:    append([]string(nil), a.poems...),
		Failures: append([]Failure(nil), a.failures...),
	}
}

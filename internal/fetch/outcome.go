package fetch

import (
	"time"

	"getpoetry/internal/config"
)

// Kind tags an Outcome.
type Kind int

const (
	KindPoem Kind = iota
	KindTimedOut
	KindConnectionFailed
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindPoem:
		return "POEM"
	case KindTimedOut:
		return "TIMED_OUT"
	case KindConnectionFailed:
		return "CONNECTION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the terminal result of one attempt.
type Outcome struct {
	Kind Kind
	Poem string
	Err  error
}

// Poem returns a successful outcome carrying text.
func Poem(text string) Outcome {
	return Outcome{Kind: KindPoem, Poem: text}
}

// TimedOut returns the outcome of an attempt whose deadline fired.
func TimedOut() Outcome {
	return Outcome{Kind: KindTimedOut, Err: ErrTimedOut}
}

// ConnectionFailed returns the outcome of an attempt that never connected.
func ConnectionFailed(err *ConnectError) Outcome {
	return Outcome{Kind: KindConnectionFailed, Err: err}
}

// Failed reports whether the outcome carries no poem.
func (o Outcome) Failed() bool {
	return o.Kind != KindPoem
}

// Resolution is what an attempt publishes once it is closed.
type Resolution struct {
	Address config.Address
	Outcome Outcome
	Elapsed time.Duration
	// Bytes is the number of payload bytes received, including those
	// discarded by a timeout.
	Bytes int
}

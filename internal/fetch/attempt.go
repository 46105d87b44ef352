package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"getpoetry/internal/config"
	"getpoetry/internal/deadline"
	"getpoetry/internal/reactor"
)

const defaultReadSize = 4096

// State is the position of an Attempt in its lifecycle.
type State int32

const (
	Connecting State = iota
	Receiving
	Closed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Receiving:
		return "RECEIVING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Dialer opens the TCP connection for an attempt.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures an Attempt.
type Option func(*Attempt)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(a *Attempt) { a.dialer = d }
}

// WithDeadlinePolicy replaces the default even-port policy.
func WithDeadlinePolicy(p Policy) Option {
	return func(a *Attempt) { a.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Attempt) { a.logger = l }
}

// WithReadSize sets the read buffer size.
func WithReadSize(n int) Option {
	return func(a *Attempt) {
		if n > 0 {
			a.readSize = n
		}
	}
}

// Attempt fetches one poem. Every transition runs on the scheduler; the
// dial and read goroutines only post events to it.
type Attempt struct {
	addr     config.Address
	sched    reactor.Scheduler
	results  chan<- Resolution
	dialer   Dialer
	policy   Policy
	logger   *slog.Logger
	readSize int

	state   atomic.Int32
	timer   *deadline.Timer
	started time.Time
	ctx     context.Context

	// Owned by the scheduler goroutine.
	conn      net.Conn
	unwatch   func() bool
	buf       bytes.Buffer
	received  int
	timedOut  bool
	cancelled bool
	resolved  bool
}

// NewAttempt creates an attempt that will publish exactly one Resolution on
// results. results must have a free slot for it when the attempt closes.
func NewAttempt(addr config.Address, sched reactor.Scheduler, results chan<- Resolution, opts ...Option) *Attempt {
	a := &Attempt{
		addr:     addr,
		sched:    sched,
		results:  results,
		dialer:   &net.Dialer{Timeout: config.DefaultDialTimeout},
		policy:   EvenPortPolicy(config.DefaultTimeout),
		logger:   slog.New(slog.DiscardHandler),
		readSize: defaultReadSize,
		timer:    deadline.New(sched),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Address returns the target address.
func (a *Attempt) Address() config.Address {
	return a.addr
}

// State returns the current state.
func (a *Attempt) State() State {
	return State(a.state.Load())
}

// Timer exposes the deadline timer so callers can tell a cancelled deadline
// from one that fired.
func (a *Attempt) Timer() *deadline.Timer {
	return a.timer
}

// Start begins connecting. It does not block. Cancelling ctx aborts the
// dial or, once connected, the connection.
func (a *Attempt) Start(ctx context.Context) {
	a.started = time.Now()
	a.ctx = ctx
	go a.dial(ctx)
}

func (a *Attempt) dial(ctx context.Context) {
	conn, err := a.dialer.DialContext(ctx, "tcp", a.addr.String())
	if err != nil {
		a.sched.Post(func() { a.onConnectFailed(err) })
		return
	}
	if !a.sched.Post(func() { a.onConnected(conn) }) {
		conn.Close()
	}
}

func (a *Attempt) read(conn net.Conn) {
	buf := make([]byte, a.readSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if !a.sched.Post(func() { a.onData(chunk) }) {
				conn.Close()
				return
			}
		}
		if err != nil {
			a.sched.Post(func() { a.onClosed(err) })
			return
		}
	}
}

func (a *Attempt) onConnectFailed(err error) {
	a.mustBe(Connecting, "connect failure")
	cerr := newConnectError(a.addr, err)
	a.logger.Debug("attempt.connect_failed", "addr", a.addr.String(), "reason", cerr.Reason.String(), "error", err)
	a.resolve(ConnectionFailed(cerr))
}

func (a *Attempt) onConnected(conn net.Conn) {
	a.mustBe(Connecting, "connect")
	a.conn = conn
	a.state.Store(int32(Receiving))
	// onCancel is queued before the abort, so it precedes the close event.
	a.unwatch = context.AfterFunc(a.ctx, func() {
		a.sched.Post(a.onCancel)
		abort(conn)
	})

	if d, ok := a.policy(a.addr); ok {
		if err := a.timer.Arm(d, a.onDeadline); err != nil {
			panic(fmt.Sprintf("fetch: %s: %v", a.addr, err))
		}
		a.logger.Debug("attempt.connected", "addr", a.addr.String(), "deadline", d)
	} else {
		a.logger.Debug("attempt.connected", "addr", a.addr.String())
	}

	go a.read(conn)
}

func (a *Attempt) onData(p []byte) {
	if a.State() != Receiving {
		return
	}
	a.received += len(p)
	if a.timedOut {
		return
	}
	a.buf.Write(p)
}

func (a *Attempt) onDeadline() {
	if a.State() != Receiving {
		return
	}
	a.timedOut = true
	a.logger.Debug("attempt.deadline_fired", "addr", a.addr.String(), "received", a.received)
	abort(a.conn)
}

func (a *Attempt) onCancel() {
	if a.State() != Receiving {
		return
	}
	a.cancelled = true
	a.timer.Cancel()
}

func (a *Attempt) onClosed(err error) {
	a.mustBe(Receiving, "close")
	a.unwatch()
	a.conn.Close()

	// The run was abandoned; nobody is waiting for this result.
	if a.cancelled {
		a.state.Store(int32(Closed))
		a.logger.Debug("attempt.cancelled", "addr", a.addr.String(), "received", a.received)
		return
	}

	if a.timedOut {
		a.resolve(TimedOut())
		return
	}

	a.timer.Cancel()
	if !errors.Is(err, io.EOF) {
		a.logger.Debug("attempt.connection_lost", "addr", a.addr.String(), "error", err)
	}
	a.resolve(Poem(a.buf.String()))
}

func (a *Attempt) resolve(o Outcome) {
	if a.resolved {
		panic(fmt.Sprintf("fetch: attempt for %s resolved twice", a.addr))
	}
	a.resolved = true
	a.state.Store(int32(Closed))

	res := Resolution{
		Address: a.addr,
		Outcome: o,
		Elapsed: time.Since(a.started),
		Bytes:   a.received,
	}
	select {
	case a.results <- res:
	default:
		panic(fmt.Sprintf("fetch: no room to publish result for %s", a.addr))
	}
}

func (a *Attempt) mustBe(want State, event string) {
	if got := a.State(); got != want {
		panic(fmt.Sprintf("fetch: %s event for %s in state %s", event, a.addr, got))
	}
}

// abort closes conn without a graceful shutdown.
func abort(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetLinger(0)
	}
	conn.Close()
}

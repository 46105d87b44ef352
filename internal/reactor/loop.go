package reactor

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Scheduler dispatches events one at a time.
type Scheduler interface {
	// Post enqueues fn. It returns false if the scheduler no longer runs events.
	Post(fn func()) bool
	// AfterFunc posts fn after d. The returned stop function reports whether
	// it prevented the post.
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// Loop is a Scheduler backed by a single goroutine. Handlers never run
// concurrently with each other.
type Loop struct {
	mu      sync.Mutex
	pending *queue.Queue
	stopped bool

	wake     chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
}

// NewLoop creates a loop. Call Run to start dispatching.
func NewLoop() *Loop {
	return &Loop{
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Post enqueues fn behind every event posted before it.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending.Add(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc arms a runtime timer whose expiry is posted onto the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return t.Stop
}

// Pending returns the number of queued events.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Length()
}

// Run dispatches events until Stop is called. Only the first call runs.
func (l *Loop) Run() {
	started := false
	l.runOnce.Do(func() { started = true })
	if !started {
		<-l.done
		return
	}
	defer close(l.done)

	for {
		fn, ok := l.next()
		if ok {
			fn()
			continue
		}

		select {
		case <-l.stopCh:
			return
		case <-l.wake:
		}
	}
}

// Stop stops dispatching and drops queued events. It waits for the
// running handler, if any, to return. Must not be called from a handler.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		for l.pending.Length() > 0 {
			l.pending.Remove()
		}
		l.mu.Unlock()
		close(l.stopCh)
	})

	started := true
	l.runOnce.Do(func() {
		started = false
		close(l.done)
	})
	if started {
		<-l.done
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped || l.pending.Length() == 0 {
		return nil, false
	}
	return l.pending.Remove().(func()), true
}

package deadline

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"getpoetry/internal/reactor"
)

// State is the lifecycle position of a Timer.
type State int32

const (
	Idle State = iota
	Armed
	Fired
	Cancelled
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Armed:
		return "ARMED"
	case Fired:
		return "FIRED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ErrAlreadyArmed is returned when Arm is called on a used Timer.
var ErrAlreadyArmed = errors.New("deadline timer already armed")

// Timer is a one-shot deadline. Expiry is delivered through the scheduler,
// and at most one of fire or cancel ever takes effect.
type Timer struct {
	sched reactor.Scheduler
	state atomic.Int32

	mu     sync.Mutex
	stop   func() bool
	onFire func()
}

// New creates an idle timer bound to sched.
func New(sched reactor.Scheduler) *Timer {
	return &Timer{sched: sched}
}

// Arm schedules onFire to run on the scheduler after d.
func (t *Timer) Arm(d time.Duration, onFire func()) error {
	if !t.state.CompareAndSwap(int32(Idle), int32(Armed)) {
		return ErrAlreadyArmed
	}
	t.mu.Lock()
	t.onFire = onFire
	t.mu.Unlock()

	stop := t.sched.AfterFunc(d, t.fire)

	t.mu.Lock()
	t.stop = stop
	cancelled := t.State() == Cancelled
	t.mu.Unlock()
	// A Cancel that ran before stop was stored could not stop the runtime timer.
	if cancelled {
		stop()
	}
	return nil
}

// Cancel prevents a pending firing. It returns true only for the call that
// moved the timer from Armed to Cancelled. Arm and Cancel may race; a Cancel
// that wins still stops the runtime timer once Arm has created it.
func (t *Timer) Cancel() bool {
	if !t.state.CompareAndSwap(int32(Armed), int32(Cancelled)) {
		return false
	}
	t.mu.Lock()
	stop := t.stop
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
	return true
}

// State returns the current state.
func (t *Timer) State() State {
	return State(t.state.Load())
}

// fire runs on the scheduler. A cancel processed earlier wins.
func (t *Timer) fire() {
	if !t.state.CompareAndSwap(int32(Armed), int32(Fired)) {
		return
	}
	t.mu.Lock()
	onFire := t.onFire
	t.mu.Unlock()
	if onFire != nil {
		onFire()
	}
}

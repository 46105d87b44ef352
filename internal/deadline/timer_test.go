package deadline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"getpoetry/internal/reactor"
)

// manualScheduler runs posted events inline and holds timers until expire
// is called.
type manualScheduler struct {
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	expired bool
}

func (s *manualScheduler) Post(fn func()) bool {
	fn()
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	mt := &manualTimer{d: d, fn: fn}
	s.timers = append(s.timers, mt)
	return func() bool {
		if mt.stopped || mt.expired {
			return false
		}
		mt.stopped = true
		return true
	}
}

// expire delivers the timer callback even if it was stopped, simulating an
// expiry already in flight when Cancel ran.
func (s *manualScheduler) expire(i int) {
	mt := s.timers[i]
	mt.expired = true
	s.Post(mt.fn)
}

func TestTimer_FiresOnce(t *testing.T) {
	sched := &manualScheduler{}
	timer := New(sched)

	fired := 0
	if err := timer.Arm(3*time.Second, func() { fired++ }); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if timer.State() != Armed {
		t.Errorf("Expected ARMED, got %s", timer.State())
	}
	if len(sched.timers) != 1 || sched.timers[0].d != 3*time.Second {
		t.Fatalf("Expected one 3s timer, got %+v", sched.timers)
	}

	sched.expire(0)
	sched.expire(0)

	if fired != 1 {
		t.Errorf("Expected one firing, got %d", fired)
	}
	if timer.State() != Fired {
		t.Errorf("Expected FIRED, got %s", timer.State())
	}
}

func TestTimer_CancelBeforeFire(t *testing.T) {
	sched := &manualScheduler{}
	timer := New(sched)

	fired := false
	timer.Arm(time.Second, func() { fired = true })

	if !timer.Cancel() {
		t.Error("Expected first Cancel to take effect")
	}
	if !sched.timers[0].stopped {
		t.Error("Expected the underlying timer to be stopped")
	}

	// An expiry that was already in flight must not mutate anything.
	sched.expire(0)

	if fired {
		t.Error("Timer fired after cancel")
	}
	if timer.State() != Cancelled {
		t.Errorf("Expected CANCELLED, got %s", timer.State())
	}
}

func TestTimer_CancelIsIdempotent(t *testing.T) {
	sched := &manualScheduler{}
	timer := New(sched)
	timer.Arm(time.Second, func() {})

	if !timer.Cancel() {
		t.Fatal("Expected first Cancel to take effect")
	}
	if timer.Cancel() {
		t.Error("Second Cancel should be a no-op")
	}
	if timer.State() != Cancelled {
		t.Errorf("Expected CANCELLED, got %s", timer.State())
	}
}

func TestTimer_CancelAfterFire(t *testing.T) {
	sched := &manualScheduler{}
	timer := New(sched)

	fired := 0
	timer.Arm(time.Second, func() { fired++ })
	sched.expire(0)

	if timer.Cancel() {
		t.Error("Cancel after fire should be a no-op")
	}
	if timer.State() != Fired {
		t.Errorf("Expected FIRED, got %s", timer.State())
	}
	if fired != 1 {
		t.Errorf("Expected one firing, got %d", fired)
	}
}

func TestTimer_CancelIdleTimer(t *testing.T) {
	timer := New(&manualScheduler{})
	if timer.Cancel() {
		t.Error("Cancel on an idle timer should be a no-op")
	}
	if timer.State() != Idle {
		t.Errorf("Expected IDLE, got %s", timer.State())
	}
}

func TestTimer_ArmTwice(t *testing.T) {
	timer := New(&manualScheduler{})
	if err := timer.Arm(time.Second, func() {}); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if err := timer.Arm(time.Second, func() {}); err != ErrAlreadyArmed {
		t.Errorf("Expected ErrAlreadyArmed, got %v", err)
	}
}

func TestTimer_OnRealLoop(t *testing.T) {
	loop := reactor.NewLoop()
	go loop.Run()
	defer loop.Stop()

	fired := make(chan struct{})
	timer := New(loop)
	timer.Arm(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Timer never fired")
	}
	if timer.State() != Fired {
		t.Errorf("Expected FIRED, got %s", timer.State())
	}
}

func TestTimer_CancelOnRealLoop(t *testing.T) {
	loop := reactor.NewLoop()
	go loop.Run()
	defer loop.Stop()

	timer := New(loop)
	timer.Arm(20*time.Millisecond, func() { t.Error("Cancelled timer fired") })

	cancelled := make(chan bool, 1)
	loop.Post(func() { cancelled <- timer.Cancel() })

	if !<-cancelled {
		t.Error("Expected Cancel to take effect")
	}
	time.Sleep(60 * time.Millisecond)
}

func TestTimer_ArmAndCancelFromDifferentGoroutines(t *testing.T) {
	loop := reactor.NewLoop()
	go loop.Run()
	defer loop.Stop()

	for i := 0; i < 200; i++ {
		timer := New(loop)
		var fired atomic.Int32
		var cancelled atomic.Bool

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := timer.Arm(time.Millisecond, func() { fired.Add(1) }); err != nil {
				t.Errorf("Arm failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			cancelled.Store(timer.Cancel())
		}()
		wg.Wait()

		// A Cancel that lost to Arm's Idle state leaves the timer armed.
		if !cancelled.Load() {
			timer.Cancel()
		}
		time.Sleep(5 * time.Millisecond)

		switch timer.State() {
		case Cancelled:
			if fired.Load() != 0 {
				t.Fatalf("iteration %d: cancelled timer fired", i)
			}
		case Fired:
			if fired.Load() != 1 {
				t.Fatalf("iteration %d: fired %d times", i, fired.Load())
			}
		default:
			t.Fatalf("iteration %d: unexpected state %s", i, timer.State())
		}
	}
}

package reactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_DispatchesInPostOrder(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	const n = 100
	var got []int
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		i := i
		require.True(t, loop.Post(func() {
			got = append(got, i)
			if i == n-1 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for events")
	}

	for i := 0; i < n; i++ {
		assert.Equal(t, i, got[i])
	}
}

func TestLoop_HandlersNeverOverlap(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	var active, overlaps int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				wg.Add(1)
				loop.Post(func() {
					defer wg.Done()
					if atomic.AddInt32(&active, 1) != 1 {
						atomic.AddInt32(&overlaps, 1)
					}
					time.Sleep(10 * time.Microsecond)
					atomic.AddInt32(&active, -1)
				})
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

func TestLoop_PostAfterStop(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	loop.Stop()

	assert.False(t, loop.Post(func() { t.Error("Handler ran after stop") }))
	assert.Zero(t, loop.Pending())

	select {
	case <-loop.Done():
	default:
		t.Error("Expected Done to be closed after Stop")
	}
}

func TestLoop_StopWithoutRun(t *testing.T) {
	loop := NewLoop()
	loop.Post(func() {})
	loop.Stop()
	loop.Stop()

	assert.Zero(t, loop.Pending())

	finished := make(chan struct{})
	go func() {
		loop.Run()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately on a stopped loop")
	}
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	fired := make(chan time.Time, 1)
	start := time.Now()
	loop.AfterFunc(20*time.Millisecond, func() {
		fired <- time.Now()
	})

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 20*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("AfterFunc never fired")
	}
}

func TestLoop_AfterFuncStop(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	stop := loop.AfterFunc(50*time.Millisecond, func() {
		t.Error("Stopped timer fired")
	})
	assert.True(t, stop())
	assert.False(t, stop())

	time.Sleep(100 * time.Millisecond)
}

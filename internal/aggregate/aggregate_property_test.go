package aggregate

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"getpoetry/internal/fetch"
)

// TestAggregator_CompletesAfterExactlyN tests that Done closes on the Nth
// report and not before, for any report order.
func TestAggregator_CompletesAfterExactlyN(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, n := range []int{1, 2, 3, 5, 8, 13, 50} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			for trial := 0; trial < 20; trial++ {
				outcomes := make([]fetch.Outcome, n)
				for i := range outcomes {
					switch rng.Intn(3) {
					case 0:
						outcomes[i] = fetch.Poem(fmt.Sprintf("poem-%d", i))
					case 1:
						outcomes[i] = fetch.TimedOut()
					default:
						outcomes[i] = fetch.ConnectionFailed(&fetch.ConnectError{Addr: addr(9000 + i)})
					}
				}
				order := rng.Perm(n)

				agg := New()
				agg.Register(n)
				wantPoems, wantFailures := 0, 0
				for k, idx := range order {
					if isDone(agg) {
						t.Fatalf("Done after %d of %d reports", k, n)
					}
					agg.Report(addr(9000+idx), outcomes[idx])
					if outcomes[idx].Failed() {
						wantFailures++
					} else {
						wantPoems++
					}
				}

				if !isDone(agg) {
					t.Fatalf("Not done after %d reports", n)
				}
				res := agg.Result()
				if len(res.Poems) != wantPoems || len(res.Failures) != wantFailures {
					t.Errorf("Got %d poems/%d failures, want %d/%d",
						len(res.Poems), len(res.Failures), wantPoems, wantFailures)
				}
			}
		})
	}
}

// TestAggregator_ConcurrentReporters tests the count stays exact when
// reports come from many goroutines.
func TestAggregator_ConcurrentReporters(t *testing.T) {
	const n = 200

	agg := New()
	agg.Register(n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				agg.Report(addr(10000+i), fetch.Poem("p"))
			} else {
				agg.Report(addr(10000+i), fetch.TimedOut())
			}
		}(i)
	}
	wg.Wait()

	<-agg.Done()
	resolved, expected := agg.Resolved()
	if resolved != n || expected != n {
		t.Errorf("Resolved() = %d/%d, want %d/%d", resolved, expected, n, n)
	}
	res := agg.Result()
	if len(res.Poems) != n/2 || len(res.Failures) != n/2 {
		t.Errorf("Got %d poems/%d failures", len(res.Poems), len(res.Failures))
	}
}

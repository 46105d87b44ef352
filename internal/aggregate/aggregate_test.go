package aggregate

import (
	"errors"
	"testing"

	"getpoetry/internal/config"
	"getpoetry/internal/fetch"
)

func addr(port int) config.Address {
	return config.Address{Host: "127.0.0.1", Port: port}
}

func isDone(a *Aggregator) bool {
	select {
	case <-a.Done():
		return true
	default:
		return false
	}
}

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("Expected panic")
		}
	}()
	fn()
}

func TestAggregator_PartitionsOutcomes(t *testing.T) {
	agg := New()
	agg.Register(3)

	agg.Report(addr(9001), fetch.Poem("Roses are red"))
	agg.Report(addr(9002), fetch.TimedOut())
	if isDone(agg) {
		t.Fatal("Done before all attempts reported")
	}
	agg.Report(addr(9003), fetch.ConnectionFailed(&fetch.ConnectError{Addr: addr(9003), Err: errors.New("refused")}))

	if !isDone(agg) {
		t.Fatal("Expected Done after all attempts reported")
	}

	res := agg.Result()
	if len(res.Poems) != 1 || res.Poems[0] != "Roses are red" {
		t.Errorf("Unexpected poems %v", res.Poems)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("Expected 2 failures, got %d", len(res.Failures))
	}
	if res.Failures[0].Address != addr(9002) || res.Failures[0].Kind != fetch.KindTimedOut {
		t.Errorf("Unexpected first failure %+v", res.Failures[0])
	}
	if !errors.Is(res.Failures[0].Err, fetch.ErrTimedOut) {
		t.Errorf("Expected ErrTimedOut, got %v", res.Failures[0].Err)
	}
	if res.Failures[1].Kind != fetch.KindConnectionFailed {
		t.Errorf("Unexpected second failure %+v", res.Failures[1])
	}

	resolved, expected := agg.Resolved()
	if resolved != 3 || expected != 3 {
		t.Errorf("Resolved() = %d/%d, want 3/3", resolved, expected)
	}
}

func TestAggregator_PoemsInCompletionOrder(t *testing.T) {
	agg := New()
	agg.Register(3)

	agg.Report(addr(9003), fetch.Poem("third dispatched"))
	agg.Report(addr(9001), fetch.Poem("first dispatched"))
	agg.Report(addr(9002), fetch.Poem("second dispatched"))

	want := []string{"third dispatched", "first dispatched", "second dispatched"}
	got := agg.Result().Poems
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Poems[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAggregator_ZeroExpectedCompletesImmediately(t *testing.T) {
	agg := New()
	agg.Register(0)

	if !isDone(agg) {
		t.Error("Expected Done for zero attempts")
	}
	expectPanic(t, func() { agg.Report(addr(9001), fetch.Poem("late")) })
}

func TestAggregator_ReportAfterCompletionPanics(t *testing.T) {
	agg := New()
	agg.Register(1)
	agg.Report(addr(9001), fetch.Poem("only"))

	expectPanic(t, func() { agg.Report(addr(9001), fetch.Poem("again")) })

	if res := agg.Result(); len(res.Poems) != 1 {
		t.Errorf("Extra report mutated the result: %v", res.Poems)
	}
}

func TestAggregator_MisuseBeforeRegister(t *testing.T) {
	agg := New()
	expectPanic(t, func() { agg.Report(addr(9001), fetch.Poem("early")) })

	agg.Register(1)
	expectPanic(t, func() { agg.Register(1) })
	expectPanic(t, func() { New().Register(-1) })
}

func TestAggregator_ResultIsACopy(t *testing.T) {
	agg := New()
	agg.Register(2)
	agg.Report(addr(9001), fetch.Poem("original"))

	res := agg.Result()
	res.Poems[0] = "mutated"

	if agg.Result().Poems[0] != "original" {
		t.Error("Result should not alias internal state")
	}
}

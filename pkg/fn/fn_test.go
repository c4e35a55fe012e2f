package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
)

func TestResult_OkErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok result misreported")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected unwrap: %d, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("Err result misreported")
	}
	if _, err := e.Unwrap(); err == nil {
		t.Fatal("Err result lost its error")
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	ctx := context.Background()
	fail := func(_ context.Context, _ int) Result[string] {
		return Err[string](errors.New("stage one failed"))
	}
	var called bool
	next := func(_ context.Context, s string) Result[int] {
		called = true
		return Ok(len(s))
	}

	r := Then(fail, next)(ctx, 1)
	if r.IsOk() {
		t.Fatal("expected composed stage to fail")
	}
	if called {
		t.Fatal("second stage must not run after a failure")
	}
}

func TestThen_PassesValue(t *testing.T) {
	ctx := context.Background()
	itoa := func(_ context.Context, n int) Result[string] { return Ok(strconv.Itoa(n)) }
	length := func(_ context.Context, s string) Result[int] { return Ok(len(s)) }

	r := Then(itoa, length)(ctx, 1234)
	v, err := r.Unwrap()
	if err != nil || v != 4 {
		t.Fatalf("got %d, %v", v, err)
	}
}

func TestCollect_FirstError(t *testing.T) {
	boom := errors.New("boom")
	rs := []Result[int]{Ok(1), Err[int](boom), Ok(3)}
	c := Collect(rs)
	if _, err := c.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestParMapResult_OrderAndBound(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	var active, peak int64
	out := ParMapResult(items, 4, func(n int) Result[int] {
		cur := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
				break
			}
		}
		defer atomic.AddInt64(&active, -1)
		return Ok(n * 2)
	})

	for i, r := range out {
		v, err := r.Unwrap()
		if err != nil || v != i*2 {
			t.Fatalf("index %d: got %d, %v", i, v, err)
		}
	}
	if atomic.LoadInt64(&peak) > 4 {
		t.Fatalf("concurrency exceeded bound: %d", peak)
	}
}

func TestParMapResult_Empty(t *testing.T) {
	out := ParMapResult(nil, 4, func(n int) Result[int] { return Ok(n) })
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}

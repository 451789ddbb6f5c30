package jitterbuffer

import "testing"

func TestJitterAnalyzerObserveStableStreamHoldsDepth(t *testing.T) {
	a := NewJitterAnalyzer(3, 9)
	var ts uint32
	var arrival uint32
	for i := 0; i < 50; i++ {
		a.Observe(ts, arrival)
		ts += 160 // 20ms @ 8kHz
		arrival += 20
	}
	if got := a.NextDepth(4, 1000); got != 4 {
		t.Fatalf("expected stable stream to hold depth, got %d", got)
	}
}

func TestJitterAnalyzerIncreaseOnBurstyArrivals(t *testing.T) {
	a := NewJitterAnalyzer(3, 9)
	a.SetOptions(20, 2000, 1, 2.0)

	var ts uint32
	var arrival uint32
	for i := 0; i < 10; i++ {
		a.Observe(ts, arrival)
		ts += 160
		arrival += 20
	}
	// Large arrival jitter burst: ttd samples grow significantly.
	for i := 0; i < 10; i++ {
		ts += 160
		arrival += 20 + uint32(i*15)
		a.Observe(ts, arrival)
	}

	next := a.NextDepth(4, 5000)
	if next <= 4 {
		t.Fatalf("expected analyzer to recommend a depth increase, got %d", next)
	}
}

func TestJitterAnalyzerDecreaseDebounced(t *testing.T) {
	a := NewJitterAnalyzer(3, 9)
	// An 80ms decrease threshold is 4 frames of hysteresis and an 80ms
	// debounce window, so a stable stream at depth 9 is eligible to shrink.
	a.SetOptions(20, 80, 1, 2.0)

	var ts uint32
	var arrival uint32
	for i := 0; i < 30; i++ {
		a.Observe(ts, arrival)
		ts += 160
		arrival += 20
	}

	first := a.NextDepth(9, 1000)
	if first != 8 {
		t.Fatalf("expected the first evaluation to decrease depth to 8, got %d", first)
	}
	second := a.NextDepth(first, 1050) // within debounce window
	if second != first {
		t.Fatalf("expected debounce to hold depth steady, got %d after %d", second, first)
	}
}

func TestJitterAnalyzerLateArrivalSuppressesDecrease(t *testing.T) {
	a := NewJitterAnalyzer(3, 9)
	// Without the late arrival, this stable stream would shrink 9 -> 8 under
	// an 80ms (4-frame) decrease threshold.
	a.SetOptions(20, 80, 1, 2.0)

	var ts uint32
	var arrival uint32
	for i := 0; i < 30; i++ {
		a.Observe(ts, arrival)
		ts += 160
		arrival += 20
	}

	a.NoteLateArrival(0)
	got := a.NextDepth(9, 10000)
	if got != 9 {
		t.Fatalf("expected late arrival to suppress decrease, got %d", got)
	}
}

func TestJitterAnalyzerResetClearsBase(t *testing.T) {
	a := NewJitterAnalyzer(3, 9)
	a.Observe(1000, 100)
	a.Reset()
	v := a.Observe(5000, 100)
	if v != 0 {
		t.Fatalf("expected first sample after reset to be zero ttd, got %d", v)
	}
}

package testutil

import (
	"math"
	"testing"
)

func TestTimeAxis(t *testing.T) {
	times := TimeAxis(1e-3, 10e3, 5)
	if len(times) != 5 {
		t.Fatalf("len = %d, want 5", len(times))
	}
	if times[0] != 1e-3 {
		t.Fatalf("times[0] = %v, want 1e-3", times[0])
	}
	for i := 1; i < len(times); i++ {
		if dt := times[i] - times[i-1]; math.Abs(dt-1e-4) > 1e-12 {
			t.Fatalf("spacing at %d = %v, want 1e-4", i, dt)
		}
	}
}

func TestSineWithPhase(t *testing.T) {
	s := SineWithPhase(1000, 48000, 1.0, 0, 48)
	if len(s) != 48 {
		t.Fatalf("len = %d, want 48", len(s))
	}
	// First sample of a sine at phase 0 should be 0.
	if s[0] != 0 {
		t.Fatalf("s[0] = %v, want 0", s[0])
	}
	// All values in [-1, 1].
	for i, v := range s {
		if v < -1 || v > 1 {
			t.Fatalf("s[%d] = %v out of range", i, v)
		}
	}

	// A quarter-turn offset starts the tone at its crest.
	c := SineWithPhase(1000, 48000, 0.5, math.Pi/2, 48)
	if math.Abs(c[0]-0.5) > 1e-15 {
		t.Fatalf("c[0] = %v, want 0.5", c[0])
	}
}

func TestDecayingSine(t *testing.T) {
	const (
		amp   = 1.0
		decay = 2e-3
	)
	s := DecayingSine(1000, 48000, amp, decay, math.Pi/2, 480)
	if s[0] != amp {
		t.Fatalf("s[0] = %v, want %v", s[0], amp)
	}
	for i, v := range s {
		if math.Abs(v) > amp {
			t.Fatalf("s[%d] = %v exceeds amplitude", i, v)
		}
	}

	// The record spans five relaxation times; the tail must sit far
	// below the head.
	var head, tail float64
	for i, v := range s {
		if a := math.Abs(v); i < len(s)/4 && a > head {
			head = a
		} else if a > tail && i >= 3*len(s)/4 {
			tail = a
		}
	}
	if tail >= head/10 {
		t.Fatalf("tail peak %v not well below head peak %v", tail, head)
	}
}

func TestDeterministicNoise(t *testing.T) {
	a := DeterministicNoise(42, 1.0, 64)
	b := DeterministicNoise(42, 1.0, 64)
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise not deterministic at index %d", i)
		}
	}
	for i, v := range a {
		if v < -1 || v > 1 {
			t.Fatalf("a[%d] = %v out of range", i, v)
		}
	}
}

func TestDeterministicNoiseDifferentSeeds(t *testing.T) {
	a := DeterministicNoise(1, 1.0, 16)
	b := DeterministicNoise(2, 1.0, 16)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical noise")
	}
}

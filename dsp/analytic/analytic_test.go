package analytic

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-nmr/internal/testutil"
)

const (
	testRate = 10e3
	testFreq = 1.2e3
	testLen  = 4096 // power of two, no padding artifacts
)

// interior trims the edge regions where the finite-length Hilbert
// transform rings.
func interior(data []float64) []float64 {
	margin := len(data) / 16
	return data[margin : len(data)-margin]
}

func TestTransformErrors(t *testing.T) {
	if _, err := Transform(make([]float64, 3), make([]float64, 4)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Transform with mismatched lengths = %v, want ErrDimensionMismatch", err)
	}
	if _, err := Transform([]float64{0}, []float64{1}); !errors.Is(err, ErrTooShort) {
		t.Fatalf("Transform with one sample = %v, want ErrTooShort", err)
	}
	times := testutil.TimeAxis(0, testRate, 16)
	flux := testutil.SineWithPhase(testFreq, testRate, 1, 0, 16)
	if _, err := TransformBand(times, flux, 500, 100); !errors.Is(err, ErrInvalidBand) {
		t.Fatalf("TransformBand with inverted band = %v, want ErrInvalidBand", err)
	}
	if _, err := TransformBand([]float64{1, 1, 1}, []float64{0, 0, 0}, 10, 100); !errors.Is(err, ErrInvalidTimeAxis) {
		t.Fatalf("TransformBand with flat time axis = %v, want ErrInvalidTimeAxis", err)
	}
}

func TestTransformPreservesWaveform(t *testing.T) {
	times := testutil.TimeAxis(0, testRate, testLen)
	flux := testutil.SineWithPhase(testFreq, testRate, 0.8, 0.3, testLen)

	s, err := Transform(times, flux)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, s.Real(), flux, 1e-9)
	testutil.RequireFinite(t, s.Imag())
}

func TestTransformPureToneEnvelope(t *testing.T) {
	const amp = 0.8
	times := testutil.TimeAxis(0, testRate, testLen)
	flux := testutil.SineWithPhase(testFreq, testRate, amp, 0.3, testLen)

	s, err := Transform(times, flux)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	for i, v := range interior(s.Envelope()) {
		if math.Abs(v-amp) > 0.01*amp {
			t.Fatalf("envelope sample %d = %g, want %g within 1%%", i, v, amp)
		}
	}
}

func TestPhaseMatchesInstantaneousPhase(t *testing.T) {
	const phase0 = 0.3
	times := testutil.TimeAxis(0, testRate, testLen)
	flux := testutil.SineWithPhase(testFreq, testRate, 1, phase0, testLen)

	s, err := Transform(times, flux)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	// The analytic phase of sin(theta) is theta - pi/2.
	phase := s.Phase()
	margin := testLen / 16
	for i := margin; i < testLen-margin; i++ {
		want := 2*math.Pi*testFreq*times[i] + phase0 - math.Pi/2
		if math.Abs(phase[i]-want) > 0.05 {
			t.Fatalf("phase[%d] = %g, want %g", i, phase[i], want)
		}
	}
}

func TestPhaseGrowthMatchesFrequency(t *testing.T) {
	times := testutil.TimeAxis(0, testRate, testLen)
	flux := testutil.SineWithPhase(testFreq, testRate, 1, 0.3, testLen)

	s, err := Transform(times, flux)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	phase := s.Phase()
	i0, i1 := testLen/16, testLen-testLen/16-1
	growth := phase[i1] - phase[i0]
	want := 2 * math.Pi * testFreq * (times[i1] - times[i0])

	// One sample's worth of slope as the acceptance band.
	if tol := 2 * math.Pi * testFreq / testRate; math.Abs(growth-want) > tol {
		t.Fatalf("phase growth = %g, want %g within %g", growth, want, tol)
	}
}

func TestEnvelopeTracksDecay(t *testing.T) {
	const (
		amp = 1.0
		tau = 40e-3
	)
	times := testutil.TimeAxis(0, testRate, testLen)
	flux := testutil.DecayingSine(testFreq, testRate, amp, tau, 0.3, testLen)

	s, err := Transform(times, flux)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	env := s.Envelope()
	margin := testLen / 16
	for i := margin; i < testLen/2; i++ {
		want := amp * math.Exp(-times[i]/tau)
		if math.Abs(env[i]-want) > 0.02*amp {
			t.Fatalf("envelope[%d] = %g, want %g", i, env[i], want)
		}
	}
}

func TestTransformZeroInput(t *testing.T) {
	times := testutil.TimeAxis(0, testRate, 256)
	flux := make([]float64, 256)

	s, err := Transform(times, flux)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	for i, v := range s.Envelope() {
		if v != 0 {
			t.Fatalf("envelope[%d] = %g for zero input", i, v)
		}
	}
	for i, v := range s.Phase() {
		if v != 0 {
			t.Fatalf("phase[%d] = %g for zero input", i, v)
		}
	}
}

func TestUnwrapJumps(t *testing.T) {
	const slope = 0.5
	want := make([]float64, 400)
	wrapped := make([]float64, 400)
	for i := range want {
		want[i] = slope * float64(i)
		wrapped[i] = math.Mod(want[i]+math.Pi, 2*math.Pi) - math.Pi
	}

	testutil.RequireSliceNearlyEqual(t, UnwrapJumps(wrapped), want, 1e-9)
}

func TestTransformBandRejectsInterference(t *testing.T) {
	times := testutil.TimeAxis(0, testRate, testLen)
	clean := testutil.SineWithPhase(testFreq, testRate, 1, 0.3, testLen)
	dirty := make([]float64, testLen)
	spur := testutil.SineWithPhase(3e3, testRate, 0.2, 1.1, testLen)
	for i := range dirty {
		dirty[i] = clean[i] + spur[i]
	}

	s, err := TransformBand(times, dirty, 800, 1600)
	if err != nil {
		t.Fatalf("TransformBand failed: %v", err)
	}

	for i, v := range interior(s.Envelope()) {
		if math.Abs(v-1) > 0.05 {
			t.Fatalf("band-limited envelope sample %d = %g, want 1 within 5%%", i, v)
		}
	}

	phase := UnwrapJumps(s.PhaseWrapped())
	i0, i1 := testLen/16, testLen-testLen/16-1
	growth := phase[i1] - phase[i0]
	want := 2 * math.Pi * testFreq * (times[i1] - times[i0])
	if math.Abs(growth-want) > 0.01*want {
		t.Fatalf("band-limited phase growth = %g, want %g", growth, want)
	}
}

func BenchmarkTransform(b *testing.B) {
	times := testutil.TimeAxis(0, testRate, 8192)
	flux := testutil.DecayingSine(testFreq, testRate, 1, 40e-3, 0, 8192)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Transform(times, flux); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPhase(b *testing.B) {
	times := testutil.TimeAxis(0, testRate, 8192)
	flux := testutil.DecayingSine(testFreq, testRate, 1, 40e-3, 0, 8192)
	s, err := Transform(times, flux)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Phase()
	}
}

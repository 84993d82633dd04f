package fidfit

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-nmr/calib"
	"github.com/cwbudde/algo-nmr/dsp/analytic"
	"github.com/cwbudde/algo-nmr/internal/testutil"
)

// legacyRecord builds a station-style record: a constant baseline, a
// quiet head, then an exponentially decaying tone.
func legacyRecord(rate, freq, startAt, decay, baseline float64, n int) (times, flux []float64) {
	times = testutil.TimeAxis(0, rate, n)
	flux = make([]float64, n)
	for i, t := range times {
		flux[i] = baseline
		if t >= startAt {
			td := t - startAt
			flux[i] += math.Exp(-td/decay) * math.Sin(2*math.Pi*freq*td)
		}
	}
	noise := testutil.DeterministicNoise(21, 1e-4, n)
	for i := range flux {
		flux[i] += noise[i]
	}
	return times, flux
}

func TestLegacyFitRecoversFrequency(t *testing.T) {
	// 1.2 kHz at 10 kHz sampling: the box width computes to zero
	// samples, so the chain runs without the smoothing pass and the
	// regression slope is exact up to the noise floor.
	times, flux := legacyRecord(10e3, 1.2e3, 10e-3, 40e-3, 0.5, 2048)
	lf := NewLegacyFitter(LegacyConfig{BaselineEnd: 50})

	res, err := lf.Fit(times, flux, 0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	testutil.RequireNear(t, res.Frequency, 1.2e3, 5.0)

	// Window bounds are on the shifted axis, 420 us past the raw one.
	if res.Start < 10.4e-3 || res.Start > 11.2e-3 {
		t.Errorf("Start = %g s, want just past the signal onset", res.Start)
	}
	if res.End < 45e-3 || res.End > 56e-3 {
		t.Errorf("End = %g s, want near one relaxation time", res.End)
	}
	if res.Points < 120 || res.Points > 200 {
		t.Errorf("Points = %d, want the reduced window population", res.Points)
	}
	if res.Coeffs != nil {
		t.Errorf("Coeffs = %v, want nil for the linear chain", res.Coeffs)
	}
}

func TestLegacyFitSmoothedBand(t *testing.T) {
	// 50 kHz at 500 kHz sampling exercises the box-smoothing pass
	// (width 10 samples). The range-confined box biases the window
	// head, so the tolerance stays loose.
	times, flux := legacyRecord(500e3, 50e3, 1e-3, 2e-3, 0.5, 4096)
	lf := NewLegacyFitter(LegacyConfig{})

	res, err := lf.Fit(times, flux, 0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	testutil.RequireNear(t, res.Frequency, 50e3, 200.0)
	if res.Start < 1.3e-3 || res.Start > 1.8e-3 {
		t.Errorf("Start = %g s", res.Start)
	}
	if res.End < 3.0e-3 || res.End > 3.9e-3 {
		t.Errorf("End = %g s", res.End)
	}
}

func TestLegacyFitBandFilterRejectsSpur(t *testing.T) {
	times, flux := legacyRecord(500e3, 50e3, 1e-3, 2e-3, 0.5, 4096)
	for i, tm := range times {
		flux[i] += 0.3 * math.Sin(2*math.Pi*150e3*tm)
	}
	lf := NewLegacyFitter(LegacyConfig{FilterLow: 20e3, FilterHigh: 90e3})

	res, err := lf.Fit(times, flux, 0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	testutil.RequireNear(t, res.Frequency, 50e3, 200.0)
}

func TestLegacyFitFrequencyTemplate(t *testing.T) {
	times, flux := legacyRecord(10e3, 1.2e3, 10e-3, 40e-3, 0.5, 2048)
	lf := NewLegacyFitter(LegacyConfig{
		BaselineEnd: 50,
		Freq:        calib.FrequencyTemplate{500.0},
	})

	res, err := lf.Fit(times, flux, 0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	testutil.RequireNear(t, res.Frequency, 1.2e3+500, 5.0)

	if _, err := lf.Fit(times, flux, 1); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("missing offset: got %v, want ErrNoTemplate", err)
	}
}

func TestLegacyFitPhaseTemplate(t *testing.T) {
	times, flux := legacyRecord(10e3, 1.2e3, 10e-3, 40e-3, 0.5, 2048)

	plain, err := NewLegacyFitter(LegacyConfig{BaselineEnd: 50}).Fit(times, flux, 0)
	if err != nil {
		t.Fatalf("plain Fit: %v", err)
	}

	// A constant reference row shifts the phase but not its slope.
	row := make([]float64, len(times))
	for i := range row {
		row[i] = 2.0
	}
	lf := NewLegacyFitter(LegacyConfig{BaselineEnd: 50, Phase: calib.PhaseTemplate{row}})
	shifted, err := lf.Fit(times, flux, 0)
	if err != nil {
		t.Fatalf("template Fit: %v", err)
	}
	testutil.RequireNear(t, shifted.Frequency, plain.Frequency, 1e-6)
	testutil.RequireNear(t, shifted.Phase0, plain.Phase0-2.0, 1e-6)

	short := NewLegacyFitter(LegacyConfig{BaselineEnd: 50, Phase: calib.PhaseTemplate{row[:64]}})
	if _, err := short.Fit(times, flux, 0); !errors.Is(err, ErrTemplateMismatch) {
		t.Errorf("short row: got %v, want ErrTemplateMismatch", err)
	}
	if _, err := lf.Fit(times, flux, 1); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("missing row: got %v, want ErrNoTemplate", err)
	}
}

func TestLegacyFitRangeTemplate(t *testing.T) {
	times, flux := legacyRecord(10e3, 1.2e3, 10e-3, 40e-3, 0.5, 2048)
	lf := NewLegacyFitter(LegacyConfig{
		BaselineEnd: 50,
		Ranges:      calib.RangeTemplate{2: {Begin: 15e-3, End: 40e-3}},
	})

	res, err := lf.Fit(times, flux, 2)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Start != 15e-3 || res.End != 40e-3 {
		t.Errorf("window = [%g, %g], want the template window", res.Start, res.End)
	}
	testutil.RequireNear(t, res.Frequency, 1.2e3, 5.0)

	if _, err := lf.Fit(times, flux, 3); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("missing range: got %v, want ErrNoTemplate", err)
	}
}

func TestLegacyFitBaselineInsensitive(t *testing.T) {
	times, lo := legacyRecord(10e3, 1.2e3, 10e-3, 40e-3, 0.5, 2048)
	_, hi := legacyRecord(10e3, 1.2e3, 10e-3, 40e-3, 10.0, 2048)
	lf := NewLegacyFitter(LegacyConfig{BaselineEnd: 50})

	resLo, err := lf.Fit(times, lo, 0)
	if err != nil {
		t.Fatalf("baseline 0.5: %v", err)
	}
	resHi, err := lf.Fit(times, hi, 0)
	if err != nil {
		t.Fatalf("baseline 10: %v", err)
	}
	testutil.RequireNear(t, resHi.Frequency, resLo.Frequency, 0.01)
}

func TestLegacyFitZeroRecord(t *testing.T) {
	times := testutil.TimeAxis(0, 10e3, 1024)
	flux := make([]float64, 1024)

	if _, err := NewLegacyFitter(LegacyConfig{}).Fit(times, flux, 0); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("got %v, want ErrNoSignal", err)
	}
}

func TestLegacyFitBadInput(t *testing.T) {
	lf := NewLegacyFitter(LegacyConfig{})

	_, err := lf.Fit(make([]float64, 10), make([]float64, 9), 0)
	if !errors.Is(err, analytic.ErrDimensionMismatch) {
		t.Errorf("length mismatch: got %v", err)
	}
	_, err = lf.Fit([]float64{0}, []float64{0}, 0)
	if !errors.Is(err, analytic.ErrTooShort) {
		t.Errorf("single sample: got %v", err)
	}
}

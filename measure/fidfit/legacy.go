package fidfit

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-nmr/calib"
	"github.com/cwbudde/algo-nmr/dsp/analytic"
	"github.com/cwbudde/algo-nmr/dsp/smooth"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultLegacyT0         = -420e-6
	defaultBaselineEnd      = 400
	defaultSmoothIterations = 2
	defaultMaxSmoothWidth   = 1000
	defaultLengthReduction  = 0.4

	// Box width falls back to one period at this frequency when the
	// first-pass estimate leaves the trusted band.
	fallbackSmoothFreq = 51e3
	smoothFreqLow      = 20e3
	smoothFreqHigh     = 100e3
)

// LegacyConfig holds parameters of the station analyzer chain. Zero
// values select the station defaults.
type LegacyConfig struct {
	// T0 shifts the record time axis; the station trigger fired this
	// long after the timestamp origin. Seconds, typically negative.
	T0 float64

	// BaselineStart and BaselineEnd bound the sample index range whose
	// mean is subtracted as the constant baseline. An empty range
	// skips the subtraction.
	BaselineStart int
	BaselineEnd   int

	// FilterLow and FilterHigh bound the demodulation band in hertz.
	// Both zero demodulates the full spectrum.
	FilterLow  float64
	FilterHigh float64

	// SmoothIterations is the number of box-smoothing passes over the
	// fit window.
	SmoothIterations int

	// MaxSmoothWidth caps the box window in samples.
	MaxSmoothWidth int

	// LengthReduction is the leading fraction of the window kept for
	// the final regression.
	LengthReduction float64

	// EdgeIgnore and Frac drive the fallback window search used when a
	// probe has no range template entry. Same meaning as in Config.
	EdgeIgnore float64
	Frac       float64

	// Phase, Freq and Ranges hold the per-probe calibration tables,
	// each optional: a nil phase table skips the subtraction, a nil
	// frequency table applies no offset, and a nil range table enables
	// the fallback window search.
	Phase  calib.PhaseTemplate
	Freq   calib.FrequencyTemplate
	Ranges calib.RangeTemplate
}

// LegacyFitter reproduces the station analyzer chain: constant-baseline
// subtraction, band-limited demodulation, per-probe template correction
// and linear regression of the unwrapped phase in cycles, refined by a
// reduced-window refit after ranged box smoothing. Known defects of the
// historical chain (inverted window masks, a doubled edge advance) are
// corrected here, so results differ slightly from archived output.
//
// A LegacyFitter is stateless and safe for concurrent use.
type LegacyFitter struct {
	cfg LegacyConfig
}

// NewLegacyFitter creates a station-chain fitter.
func NewLegacyFitter(cfg LegacyConfig) *LegacyFitter {
	return &LegacyFitter{cfg: normalizeLegacyConfig(cfg)}
}

func normalizeLegacyConfig(cfg LegacyConfig) LegacyConfig {
	if cfg.T0 == 0 {
		cfg.T0 = defaultLegacyT0
	}
	if cfg.BaselineEnd <= 0 {
		cfg.BaselineEnd = defaultBaselineEnd
	}
	if cfg.SmoothIterations <= 0 {
		cfg.SmoothIterations = defaultSmoothIterations
	}
	if cfg.MaxSmoothWidth <= 0 {
		cfg.MaxSmoothWidth = defaultMaxSmoothWidth
	}
	if cfg.LengthReduction <= 0 || cfg.LengthReduction > 1 {
		cfg.LengthReduction = defaultLengthReduction
	}
	if cfg.EdgeIgnore <= 0 {
		cfg.EdgeIgnore = defaultEdgeIgnore
	}
	if cfg.Frac <= 0 {
		cfg.Frac = defaultFrac
	}
	return cfg
}

// Fit extracts the frequency of one record through the station chain.
// The reported frequency is in hertz and includes the per-probe
// frequency-template offset when a table is configured. Phase0 refers
// to the shifted time origin.
func (lf *LegacyFitter) Fit(times, flux []float64, probe int) (FitResult, error) {
	n := len(times)
	if n != len(flux) {
		return FitResult{}, fmt.Errorf("%w: %d vs %d", analytic.ErrDimensionMismatch, n, len(flux))
	}
	if n < 2 {
		return FitResult{}, fmt.Errorf("%w: got %d", analytic.ErrTooShort, n)
	}

	shifted := make([]float64, n)
	for i, t := range times {
		shifted[i] = t - lf.cfg.T0
	}

	// Constant baseline from a fixed index range at the record head.
	work := append([]float64(nil), flux...)
	lo := clampIndex(lf.cfg.BaselineStart, 0, n)
	hi := clampIndex(lf.cfg.BaselineEnd, lo, n)
	if hi > lo {
		var mean float64
		for _, v := range work[lo:hi] {
			mean += v
		}
		mean /= float64(hi - lo)
		for i := range work {
			work[i] -= mean
		}
	}

	var (
		sig *analytic.Signal
		err error
	)
	if lf.cfg.FilterLow != 0 || lf.cfg.FilterHigh != 0 {
		sig, err = analytic.TransformBand(shifted, work, lf.cfg.FilterLow, lf.cfg.FilterHigh)
	} else {
		sig, err = analytic.Transform(shifted, work)
	}
	if err != nil {
		return FitResult{}, err
	}
	env := sig.Envelope()
	phase := analytic.UnwrapJumps(sig.PhaseWrapped())

	if lf.cfg.Phase != nil {
		row, ok := lf.cfg.Phase.Row(probe)
		if !ok {
			return FitResult{}, fmt.Errorf("fidfit: probe %d: %w", probe, ErrNoTemplate)
		}
		if len(row) != n {
			return FitResult{}, fmt.Errorf("fidfit: probe %d row has %d samples, record has %d: %w",
				probe, len(row), n, ErrTemplateMismatch)
		}
		for i := range phase {
			phase[i] -= row[i]
		}
	}

	var offset float64
	if lf.cfg.Freq != nil {
		v, ok := lf.cfg.Freq.Offset(probe)
		if !ok {
			return FitResult{}, fmt.Errorf("fidfit: probe %d: %w", probe, ErrNoTemplate)
		}
		offset = v
	}

	begin, end, err := lf.window(shifted, env, probe)
	if err != nil {
		return FitResult{}, err
	}

	// First pass: the slope of the phase in cycles over the window is
	// the frequency in hertz.
	regT, regC := maskCycles(shifted, phase, begin, end)
	if len(regT) < 2 {
		return FitResult{}, fmt.Errorf("fidfit: window [%gs, %gs] holds %d samples: %w",
			begin, end, len(regT), ErrNoSignal)
	}
	_, slope := stat.LinearRegression(regT, regC, nil, false)
	fEstimate := slope + offset

	dt := shifted[1] - shifted[0]
	widthSamples := (1 / fallbackSmoothFreq) / dt
	if fEstimate >= smoothFreqLow && fEstimate <= smoothFreqHigh {
		widthSamples = 1 / fEstimate / dt
	}
	width := int(widthSamples)
	if width > lf.cfg.MaxSmoothWidth {
		width = lf.cfg.MaxSmoothWidth
	}
	iLo, iHi := indexRange(shifted, begin, end)
	smoothed := smooth.BoxRange(phase, iLo, iHi, width-1, lf.cfg.SmoothIterations)

	// Refit over the leading fraction of the window.
	reducedEnd := begin + (end-begin)*lf.cfg.LengthReduction
	refT, refC := maskCycles(shifted, smoothed, begin, reducedEnd)
	if len(refT) < 2 {
		return FitResult{}, fmt.Errorf("fidfit: reduced window [%gs, %gs] holds %d samples: %w",
			begin, reducedEnd, len(refT), ErrNoSignal)
	}
	alpha, beta := stat.LinearRegression(refT, refC, nil, false)

	var residual float64
	for i, x := range refT {
		r := (alpha + beta*x - refC[i]) * 2 * math.Pi
		residual += r * r
	}

	return FitResult{
		Start:     begin,
		End:       end,
		Frequency: beta + offset,
		Phase0:    alpha * 2 * math.Pi,
		Residual:  residual,
		Points:    len(refT),
	}, nil
}

func (lf *LegacyFitter) window(times, env []float64, probe int) (float64, float64, error) {
	if lf.cfg.Ranges != nil {
		r, ok := lf.cfg.Ranges.Range(probe)
		if !ok {
			return 0, 0, fmt.Errorf("fidfit: probe %d: %w", probe, ErrNoTemplate)
		}
		return r.Begin, r.End, nil
	}

	// No range table: open the window one edge margin past the
	// envelope peak and walk to the threshold crossing.
	dt := times[1] - times[0]
	nIgnore := int(lf.cfg.EdgeIgnore / dt)
	n := len(times)
	if 2*nIgnore >= n {
		return 0, 0, fmt.Errorf("fidfit: record of %d samples inside an edge margin of %d: %w",
			n, nIgnore, ErrNoSignal)
	}

	iPeak := nIgnore
	for i := nIgnore; i < n-nIgnore; i++ {
		if env[i] > env[iPeak] {
			iPeak = i
		}
	}
	if env[iPeak] <= 0 {
		return 0, 0, fmt.Errorf("fidfit: empty envelope: %w", ErrNoSignal)
	}
	thres := lf.cfg.Frac * env[iPeak]

	iBegin := iPeak + nIgnore
	if iBegin >= n {
		iBegin = n - 1
	}
	iEnd := n - 1
	for i := iBegin + 1; i < n; i++ {
		if env[i] < thres {
			iEnd = i
			break
		}
	}
	if iEnd <= iBegin {
		return 0, 0, fmt.Errorf("fidfit: no window after the envelope peak at %gs: %w",
			times[iPeak], ErrNoSignal)
	}
	return times[iBegin], times[iEnd], nil
}

// maskCycles collects the strict-interior window samples with the phase
// converted from radians to cycles.
func maskCycles(times, phase []float64, begin, end float64) (x, cycles []float64) {
	for i, t := range times {
		if t > begin && t < end {
			x = append(x, t)
			cycles = append(cycles, phase[i]/(2*math.Pi))
		}
	}
	return x, cycles
}

// indexRange maps a time window onto sample indices: the first sample at
// or after begin through the last sample at or before end.
func indexRange(times []float64, begin, end float64) (lo, hi int) {
	lo = len(times)
	for i, t := range times {
		if t >= begin {
			lo = i
			break
		}
	}
	hi = -1
	for i := len(times) - 1; i >= 0; i-- {
		if times[i] <= end {
			hi = i
			break
		}
	}
	return lo, hi
}

func clampIndex(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

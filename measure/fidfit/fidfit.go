package fidfit

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-nmr/calib"
	"github.com/cwbudde/algo-nmr/dsp/analytic"
	"github.com/cwbudde/algo-nmr/dsp/smooth"
	"github.com/cwbudde/algo-nmr/stats/series"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Errors returned by the fitters.
var (
	ErrNoSignal         = errors.New("fidfit: no usable signal in record")
	ErrNoConvergence    = errors.New("fidfit: phase fit did not converge")
	ErrNoTemplate       = errors.New("fidfit: probe missing from template")
	ErrTemplateMismatch = errors.New("fidfit: template row does not match record length")
	ErrUnknownModel     = errors.New("fidfit: unknown phase model")
)

const (
	defaultEdgeIgnore    = 0.1e-3
	defaultTol           = 1e-5
	defaultSmoothPeriods = 3

	maxIterations      = 1000
	convergeIterations = 10
	startJitter        = 0.1
)

// defaultFrac is the envelope threshold relative to the window peak; one
// relaxation time into the decay the envelope has fallen to this value.
var defaultFrac = math.Exp(-1)

// Config holds fitter parameters. Zero values select the documented
// defaults.
type Config struct {
	// Pretrigger is the record time spent before the excitation
	// trigger, in seconds. Samples before it estimate the noise floor,
	// and fitted phase offsets refer to this instant.
	Pretrigger float64

	// ReadoutLength caps the end of the usable record, in seconds.
	// Zero leaves the record end unconstrained. Echo fitters place the
	// echo center at 2*ReadoutLength - Pretrigger.
	ReadoutLength float64

	// EdgeIgnore trims the record borders, where the demodulation
	// carries transform artifacts, from the window search. Seconds.
	EdgeIgnore float64

	// Frac sets the envelope threshold of the fit window as a fraction
	// of the in-window envelope peak.
	Frac float64

	// Tol is the absolute chi-square improvement below which the
	// minimizer counts as converged.
	Tol float64

	// Model selects the polynomial phase model.
	Model Model

	// DisableSmoothing fits the raw accumulated phase instead of the
	// moving-average smoothed one.
	DisableSmoothing bool

	// SmoothPeriods is the smoothing window length in estimated
	// oscillation periods.
	SmoothPeriods int

	// Seed seeds the optimizer start-point jitter stream.
	Seed int64

	// Phase optionally holds per-probe reference phases subtracted
	// from the phase series before fitting.
	Phase calib.PhaseTemplate

	// Ranges optionally holds per-probe fit windows, bypassing the
	// envelope-driven window search.
	Ranges calib.RangeTemplate
}

// FitResult reports one fitted record.
type FitResult struct {
	// Start and End bound the fit window, in seconds.
	Start float64
	End   float64

	// Frequency is the extracted frequency in hertz.
	Frequency float64

	// Phase0 is the fitted phase at the fit origin (the trigger, or
	// the echo center for echo fits), in radians.
	Phase0 float64

	// Residual is the weighted sum of squared phase residuals at the
	// minimum.
	Residual float64

	// Points is the number of samples inside the fit window.
	Points int

	// Noise is the pretrigger noise floor used for chi-square
	// weighting; zero when no estimate was available.
	Noise float64

	// Coeffs holds the fitted model coefficients over normalized
	// window time; nil for the linear legacy fit.
	Coeffs []float64
}

// Fitter extracts precession frequencies from free-induction-decay
// records by fitting a polynomial to the demodulated phase. Construct
// with NewFitter or NewEchoFitter.
//
// A Fitter draws optimizer start points from a private seeded stream,
// so a single Fitter must not be shared between goroutines.
type Fitter struct {
	cfg  Config
	rng  *rand.Rand
	echo bool
}

// NewFitter creates a fitter that places the fit window over the decay
// following the trigger.
func NewFitter(cfg Config) *Fitter {
	cfg = normalizeConfig(cfg)
	return &Fitter{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewEchoFitter creates a fitter that places the fit window around the
// spin-echo center at 2*ReadoutLength - Pretrigger.
func NewEchoFitter(cfg Config) *Fitter {
	f := NewFitter(cfg)
	f.echo = true
	return f
}

func normalizeConfig(cfg Config) Config {
	if cfg.EdgeIgnore <= 0 {
		cfg.EdgeIgnore = defaultEdgeIgnore
	}
	if cfg.Frac <= 0 {
		cfg.Frac = defaultFrac
	}
	if cfg.Tol <= 0 {
		cfg.Tol = defaultTol
	}
	if cfg.SmoothPeriods <= 0 {
		cfg.SmoothPeriods = defaultSmoothPeriods
	}
	return cfg
}

// Fit extracts the precession frequency of one record. times must be an
// increasing axis matching flux; probe selects template rows when
// templates are configured. The reported frequency is in hertz.
func (f *Fitter) Fit(times, flux []float64, probe int) (FitResult, error) {
	nParams := f.cfg.Model.Params()
	if nParams == 0 {
		return FitResult{}, fmt.Errorf("fidfit: model %d: %w", int(f.cfg.Model), ErrUnknownModel)
	}

	sig, err := analytic.Transform(times, flux)
	if err != nil {
		return FitResult{}, err
	}
	env := sig.Envelope()
	phaseRaw := sig.Phase()

	noise := series.NoiseBefore(times, flux, f.cfg.Pretrigger)

	start, end, err := f.window(times, env, probe)
	if err != nil {
		return FitResult{}, err
	}
	t0 := f.origin()

	// Linear seed for the optimizer from the raw phase inside the
	// window.
	var regT, regPhase []float64
	for i, t := range times {
		if t > start && t < end {
			regT = append(regT, t-t0)
			regPhase = append(regPhase, phaseRaw[i])
		}
	}
	if len(regT) < nParams {
		return FitResult{}, fmt.Errorf("fidfit: window [%gs, %gs] holds %d samples, model %v needs %d: %w",
			start, end, len(regT), f.cfg.Model, nParams, ErrNoSignal)
	}
	offsetEst, slopeEst := stat.LinearRegression(regT, regPhase, nil, false)

	var phase []float64
	if f.cfg.DisableSmoothing {
		phase = append([]float64(nil), phaseRaw...)
	} else {
		dt := times[1] - times[0]
		window := smooth.WindowFromPeriods(f.cfg.SmoothPeriods, slopeEst, dt)
		phase = smooth.MovingAverage(phaseRaw, window)
	}

	if f.cfg.Phase != nil {
		row, ok := f.cfg.Phase.Row(probe)
		if !ok {
			return FitResult{}, fmt.Errorf("fidfit: probe %d: %w", probe, ErrNoTemplate)
		}
		if len(row) != len(phase) {
			return FitResult{}, fmt.Errorf("fidfit: probe %d row has %d samples, record has %d: %w",
				probe, len(row), len(phase), ErrTemplateMismatch)
		}
		for i := range phase {
			phase[i] -= row[i]
		}
	}

	width := end - start
	unitWeights := noise <= 0

	var tn, ph, w []float64
	for i, t := range times {
		if t > start && t < end {
			tn = append(tn, (t-t0)/width)
			ph = append(ph, phase[i])
			wi := 1.0
			if !unitWeights {
				wi = env[i] / noise
				wi *= wi
			}
			w = append(w, wi)
		}
	}

	exps := f.cfg.Model.exponents()
	objective := func(p []float64) float64 {
		var sum float64
		for i, t := range tn {
			r := evalExponents(exps, t, p) - ph[i]
			sum += r * r * w[i]
		}
		return sum
	}
	gradient := func(grad, p []float64) {
		for k := range grad {
			grad[k] = 0
		}
		for i, t := range tn {
			c := 2 * w[i] * (evalExponents(exps, t, p) - ph[i])
			for k, e := range exps {
				grad[k] += c * intPow(t, e)
			}
		}
	}

	x0 := make([]float64, nParams)
	for i := range x0 {
		x0[i] = f.rng.NormFloat64() * startJitter
	}
	x0[0] = offsetEst * (1 + x0[0])
	x0[1] = slopeEst * width * (1 + x0[1])

	problem := optimize.Problem{Func: objective, Grad: gradient}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   f.cfg.Tol,
			Iterations: convergeIterations,
		},
		MajorIterations: maxIterations,
	}
	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if err != nil {
		return FitResult{}, fmt.Errorf("fidfit: probe %d window [%gs, %gs]: %v: %w",
			probe, start, end, err, ErrNoConvergence)
	}
	if serr := res.Status.Err(); serr != nil {
		return FitResult{}, fmt.Errorf("fidfit: probe %d window [%gs, %gs]: %v: %w",
			probe, start, end, serr, ErrNoConvergence)
	}

	coeffs := append([]float64(nil), res.X...)
	return FitResult{
		Start:     start,
		End:       end,
		Frequency: coeffs[1] / width / (2 * math.Pi),
		Phase0:    coeffs[0],
		Residual:  res.F,
		Points:    len(tn),
		Noise:     noise,
		Coeffs:    coeffs,
	}, nil
}

// origin returns the time the normalized fit coordinate is measured
// from: the trigger for decays, the echo center for echoes.
func (f *Fitter) origin() float64 {
	if f.echo {
		return 2*f.cfg.ReadoutLength - f.cfg.Pretrigger
	}
	return f.cfg.Pretrigger
}

func (f *Fitter) window(times, env []float64, probe int) (float64, float64, error) {
	if f.cfg.Ranges != nil {
		r, ok := f.cfg.Ranges.Range(probe)
		if !ok {
			return 0, 0, fmt.Errorf("fidfit: probe %d: %w", probe, ErrNoTemplate)
		}
		return r.Begin, r.End, nil
	}
	if f.echo {
		return f.echoWindow(times, env)
	}
	return f.decayWindow(times, env)
}

// decayWindow bounds the fit window over a free decay: the window opens
// at the first edge-trimmed sample whose envelope clears the threshold
// and closes at the first later sample that falls outside.
func (f *Fitter) decayWindow(times, env []float64) (float64, float64, error) {
	tMin := times[0]
	if f.cfg.Pretrigger > tMin {
		tMin = f.cfg.Pretrigger
	}
	tMax := times[len(times)-1]
	if f.cfg.ReadoutLength > 0 && f.cfg.ReadoutLength < tMax {
		tMax = f.cfg.ReadoutLength
	}
	edge := f.cfg.EdgeIgnore
	inEdge := func(t float64) bool { return t > tMin+edge && t < tMax-edge }

	var peak float64
	for i, t := range times {
		if inEdge(t) && env[i] > peak {
			peak = env[i]
		}
	}
	if peak <= 0 {
		return 0, 0, fmt.Errorf("fidfit: no envelope between %gs and %gs: %w", tMin, tMax, ErrNoSignal)
	}
	thres := f.cfg.Frac * peak

	iStart := -1
	for i, t := range times {
		if inEdge(t) && env[i] > thres {
			iStart = i
			break
		}
	}
	if iStart < 0 {
		return 0, 0, fmt.Errorf("fidfit: envelope never clears %g between %gs and %gs: %w",
			thres, tMin, tMax, ErrNoSignal)
	}

	end := times[len(times)-1]
	for i := iStart + 1; i < len(times); i++ {
		if !inEdge(times[i]) || env[i] <= thres {
			end = times[i]
			break
		}
	}
	return times[iStart], end, nil
}

// echoWindow bounds the fit window around a spin echo: from the latest
// below-threshold envelope sample before the echo center to the earliest
// one after it.
func (f *Fitter) echoWindow(times, env []float64) (float64, float64, error) {
	center := f.origin()

	iCenter := 0
	best := math.Inf(1)
	for i, t := range times {
		if d := math.Abs(t - center); d < best {
			best = d
			iCenter = i
		}
	}
	thres := f.cfg.Frac * env[iCenter]
	if thres <= 0 {
		return 0, 0, fmt.Errorf("fidfit: no echo envelope at %gs: %w", center, ErrNoSignal)
	}

	start := math.NaN()
	for i := iCenter; i >= 0; i-- {
		if times[i] < center && env[i] < thres {
			start = times[i]
			break
		}
	}
	end := math.NaN()
	for i := iCenter; i < len(times); i++ {
		if times[i] > center && env[i] < thres {
			end = times[i]
			break
		}
	}
	if math.IsNaN(start) || math.IsNaN(end) {
		return 0, 0, fmt.Errorf("fidfit: echo at %gs never falls below %g: %w", center, thres, ErrNoSignal)
	}
	return start, end, nil
}

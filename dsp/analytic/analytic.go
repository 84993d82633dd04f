package analytic

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by the analytic-signal constructors.
var (
	ErrDimensionMismatch = errors.New("analytic: time and flux lengths differ")
	ErrTooShort          = errors.New("analytic: need at least two samples")
	ErrInvalidBand       = errors.New("analytic: filter band must satisfy 0 <= low < high")
	ErrInvalidTimeAxis   = errors.New("analytic: time axis must be increasing")
)

// jumpThreshold flags a cycle slip between adjacent phase samples. Three
// quarter turns keeps ordinary sample-to-sample phase advance below the
// threshold while catching atan2 wrap-arounds.
const jumpThreshold = 3 * math.Pi / 2

// Signal is the analytic-signal decomposition of a sampled waveform: the
// in-phase part, the quadrature part obtained through the FFT Hilbert
// transform, and the waveform the decomposition was built from. A Signal
// owns copies of all of its slices.
type Signal struct {
	times []float64
	flux  []float64
	re    []float64
	im    []float64
}

// Transform builds the analytic signal of flux sampled at times. The
// spectrum is computed on a power-of-two length (zero padded when
// needed), negative-frequency bins are zeroed, positive ones doubled, DC
// and Nyquist kept, and the inverse transform is truncated back to the
// input length. Padding leaves small artifacts in the quadrature part
// near both ends; downstream fit windows mask an edge margin anyway.
func Transform(times, flux []float64) (*Signal, error) {
	if len(times) != len(flux) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(times), len(flux))
	}
	if len(flux) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooShort, len(flux))
	}
	return transform(times, flux, nil)
}

// TransformBand is Transform with the spectrum confined to the band
// [lowHz, highHz] before the analytic construction. The sample spacing is
// taken from the first interval of the time axis.
func TransformBand(times, flux []float64, lowHz, highHz float64) (*Signal, error) {
	if len(times) != len(flux) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(times), len(flux))
	}
	if len(flux) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooShort, len(flux))
	}
	if lowHz < 0 || lowHz >= highHz {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidBand, lowHz, highHz)
	}
	dt := times[1] - times[0]
	if dt <= 0 {
		return nil, fmt.Errorf("%w: dt = %g", ErrInvalidTimeAxis, dt)
	}
	band := [2]float64{lowHz, highHz}
	return transform(times, flux, &band)
}

func transform(times, flux []float64, band *[2]float64) (*Signal, error) {
	n := len(flux)
	fftSize := nextPowerOf2(n)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("analytic: create FFT plan: %w", err)
	}

	padded := make([]complex128, fftSize)
	for i, v := range flux {
		padded[i] = complex(v, 0)
	}

	spec := make([]complex128, fftSize)
	if err := plan.Forward(spec, padded); err != nil {
		return nil, fmt.Errorf("analytic: forward FFT: %w", err)
	}

	if band != nil {
		binWidth := 1 / ((times[1] - times[0]) * float64(fftSize))
		zeroOutOfBand(spec, binWidth, band[0], band[1])
	}
	applyAnalyticMask(spec)

	out := make([]complex128, fftSize)
	if err := plan.Inverse(out, spec); err != nil {
		return nil, fmt.Errorf("analytic: inverse FFT: %w", err)
	}

	s := &Signal{
		times: append([]float64(nil), times...),
		flux:  make([]float64, n),
		re:    make([]float64, n),
		im:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.re[i] = real(out[i])
		s.im[i] = imag(out[i])
	}
	if band != nil {
		// The band-limited waveform replaces the raw one, so the
		// sign-count phase stays consistent with re and im.
		copy(s.flux, s.re)
	} else {
		copy(s.flux, flux)
	}
	return s, nil
}

// applyAnalyticMask zeroes negative-frequency bins and doubles positive
// ones; DC and Nyquist are kept as they are.
func applyAnalyticMask(spec []complex128) {
	half := len(spec) / 2
	for k := 1; k < half; k++ {
		spec[k] *= 2
	}
	for k := half + 1; k < len(spec); k++ {
		spec[k] = 0
	}
}

// zeroOutOfBand zeroes every bin whose frequency magnitude falls outside
// [lowHz, highHz]. Only bins up to Nyquist matter here; the analytic mask
// clears the mirror half afterwards.
func zeroOutOfBand(spec []complex128, binWidth, lowHz, highHz float64) {
	half := len(spec) / 2
	for k := 0; k <= half; k++ {
		f := float64(k) * binWidth
		if f < lowHz || f > highHz {
			spec[k] = 0
		}
	}
}

// Len returns the number of samples.
func (s *Signal) Len() int { return len(s.flux) }

// Times returns a copy of the time axis.
func (s *Signal) Times() []float64 { return append([]float64(nil), s.times...) }

// Flux returns a copy of the waveform the decomposition was built from;
// for band-limited signals this is the filtered waveform.
func (s *Signal) Flux() []float64 { return append([]float64(nil), s.flux...) }

// Real returns a copy of the in-phase part.
func (s *Signal) Real() []float64 { return append([]float64(nil), s.re...) }

// Imag returns a copy of the quadrature part.
func (s *Signal) Imag() []float64 { return append([]float64(nil), s.im...) }

// Envelope returns the instantaneous amplitude sqrt(re^2 + im^2).
func (s *Signal) Envelope() []float64 {
	out := make([]float64, len(s.re))
	vecmath.Magnitude(out, s.re, s.im)
	return out
}

// Phase returns the accumulated instantaneous phase
//
//	phi[i] = atan(im[i]/re[i]) + pi * w[i]
//
// where w[i] counts the sign changes of the waveform up to sample i. The
// atan term tracks phase inside a half cycle; every sign change advances
// the winding count by half a turn, which keeps the sum growing
// monotonically for a clean oscillation.
func (s *Signal) Phase() []float64 {
	out := make([]float64, len(s.re))
	var acc float64
	for i := range out {
		var base float64
		switch {
		case s.re[i] != 0:
			base = math.Atan(s.im[i] / s.re[i])
		case s.im[i] > 0:
			base = math.Pi / 2
		case s.im[i] < 0:
			base = -math.Pi / 2
		}
		if i > 0 && sgn(s.flux[i]) != sgn(s.flux[i-1]) {
			acc += math.Pi
		}
		out[i] = base + acc
	}
	return out
}

// PhaseWrapped returns the per-sample atan2 phase in (-pi, pi].
func (s *Signal) PhaseWrapped() []float64 {
	out := make([]float64, len(s.re))
	for i := range out {
		out[i] = math.Atan2(s.im[i], s.re[i])
	}
	return out
}

// UnwrapJumps removes +-2*pi cycle slips from a wrapped phase series:
// whenever the step between adjacent samples exceeds jumpThreshold
// (about 4.71 rad), a full turn is folded into the running offset.
func UnwrapJumps(phase []float64) []float64 {
	out := make([]float64, len(phase))
	var offset float64
	for i, p := range phase {
		if i > 0 {
			switch d := p - phase[i-1]; {
			case d > jumpThreshold:
				offset -= 2 * math.Pi
			case d < -jumpThreshold:
				offset += 2 * math.Pi
			}
		}
		out[i] = p + offset
	}
	return out
}

func sgn(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func nextPowerOf2(n int) int {
	if n <= 0 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// Package spectral estimates the dominant frequency of a sampled decay
// record from its magnitude spectrum. The estimate is resolution-limited
// by the record length, so it cross-checks and seeds the phase-fit
// pipeline rather than replacing it.
package spectral

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by the spectral estimators.
var (
	ErrTooShort    = errors.New("spectral: need at least two samples")
	ErrInvalidBand = errors.New("spectral: analysis band must satisfy 0 <= low < high")
	ErrNoPeak      = errors.New("spectral: spectrum holds no power in the analysis band")
)

// centroidFloor excludes bins far below the peak from the centroid and
// spread sums, so spectrally distant noise does not drag the estimate.
const centroidFloor = 0.1

// Estimate holds spectral statistics of one record.
type Estimate struct {
	// Resolution is the bin spacing of the padded transform in Hz.
	Resolution float64

	// Peak is the interpolated frequency of the strongest bin in Hz.
	Peak float64

	// PeakMag approximates the amplitude of a tone at the peak.
	PeakMag float64

	// Centroid is the magnitude-weighted mean frequency over the bins
	// above the centroid floor, in Hz.
	Centroid float64

	// Spread is the magnitude-weighted RMS width around the centroid,
	// in Hz.
	Spread float64

	// Bandwidth is the 3 dB width around the peak in Hz, interpolated
	// between bins.
	Bandwidth float64

	// SNR is the peak magnitude over the median in-band magnitude.
	// Infinite when more than half of the band is empty.
	SNR float64
}

// Analyze computes the magnitude spectrum of flux (zero padded to a
// power of two) and derives the estimate over the full band up to
// Nyquist. The DC bin never counts as the peak.
func Analyze(flux []float64, sampleRate float64) (Estimate, error) {
	return AnalyzeBand(flux, sampleRate, 0, sampleRate/2)
}

// AnalyzeBand is Analyze confined to bins inside [lowHz, highHz],
// mirroring the demodulation filter band of the readout chain.
func AnalyzeBand(flux []float64, sampleRate, lowHz, highHz float64) (Estimate, error) {
	n := len(flux)
	if n < 2 {
		return Estimate{}, fmt.Errorf("%w: got %d", ErrTooShort, n)
	}
	if lowHz < 0 || lowHz >= highHz {
		return Estimate{}, fmt.Errorf("%w: [%g, %g]", ErrInvalidBand, lowHz, highHz)
	}

	mag, binWidth, err := magnitudeSpectrum(flux, sampleRate)
	if err != nil {
		return Estimate{}, err
	}

	// Band bin bounds; bin 0 stays out of the peak search.
	kLo := int(math.Ceil(lowHz / binWidth))
	if kLo < 1 {
		kLo = 1
	}
	kHi := int(math.Floor(highHz / binWidth))
	if kHi > len(mag)-1 {
		kHi = len(mag) - 1
	}
	if kLo > kHi {
		return Estimate{}, fmt.Errorf("%w: [%g, %g] outside the sampled band", ErrInvalidBand, lowHz, highHz)
	}

	kPeak := kLo
	for k := kLo; k <= kHi; k++ {
		if mag[k] > mag[kPeak] {
			kPeak = k
		}
	}
	if mag[kPeak] == 0 {
		return Estimate{}, fmt.Errorf("%w: [%g, %g]", ErrNoPeak, lowHz, highHz)
	}

	e := Estimate{
		Resolution: binWidth,
		Peak:       interpolatePeak(mag, kPeak, binWidth),
		PeakMag:    mag[kPeak],
		Bandwidth:  bandwidth3dB(mag, kPeak, binWidth),
		SNR:        peakOverMedian(mag[kLo:kHi+1], mag[kPeak]),
	}
	e.Centroid, e.Spread = centroidSpread(mag, kLo, kHi, binWidth, centroidFloor*mag[kPeak])
	return e, nil
}

// magnitudeSpectrum returns the one-sided magnitude spectrum of flux,
// scaled so a full-record tone reads approximately its amplitude, plus
// the bin spacing.
func magnitudeSpectrum(flux []float64, sampleRate float64) ([]float64, float64, error) {
	size := 1
	for size < len(flux) {
		size *= 2
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, 0, fmt.Errorf("spectral: create FFT plan: %w", err)
	}
	in := make([]complex128, size)
	for i, v := range flux {
		in[i] = complex(v, 0)
	}
	spec := make([]complex128, size)
	if err := plan.Forward(spec, in); err != nil {
		return nil, 0, fmt.Errorf("spectral: forward FFT: %w", err)
	}

	scale := 2 / float64(len(flux))
	mag := make([]float64, size/2+1)
	for k := range mag {
		mag[k] = cmplx.Abs(spec[k]) * scale
	}
	return mag, sampleRate / float64(size), nil
}

// interpolatePeak refines the peak frequency with a parabola through the
// peak bin and its neighbors. Peaks at the band edges stay on the bin.
func interpolatePeak(mag []float64, k int, binWidth float64) float64 {
	if k < 1 || k > len(mag)-2 {
		return float64(k) * binWidth
	}
	denom := mag[k-1] - 2*mag[k] + mag[k+1]
	if denom == 0 {
		return float64(k) * binWidth
	}
	delta := 0.5 * (mag[k-1] - mag[k+1]) / denom
	if delta > 0.5 {
		delta = 0.5
	} else if delta < -0.5 {
		delta = -0.5
	}
	return (float64(k) + delta) * binWidth
}

// centroidSpread returns the magnitude-weighted mean frequency and RMS
// width over the bins in [kLo, kHi] whose magnitude reaches floor.
func centroidSpread(mag []float64, kLo, kHi int, binWidth, floor float64) (float64, float64) {
	var sum, weighted float64
	for k := kLo; k <= kHi; k++ {
		if mag[k] < floor {
			continue
		}
		sum += mag[k]
		weighted += float64(k) * binWidth * mag[k]
	}
	if sum == 0 {
		return 0, 0
	}
	cent := weighted / sum

	var sq float64
	for k := kLo; k <= kHi; k++ {
		if mag[k] < floor {
			continue
		}
		d := float64(k)*binWidth - cent
		sq += d * d * mag[k]
	}
	return cent, math.Sqrt(sq / sum)
}

// bandwidth3dB walks from the peak to the half-power crossings on both
// sides and interpolates the crossing frequencies between bins.
func bandwidth3dB(mag []float64, kPeak int, binWidth float64) float64 {
	threshold := mag[kPeak] / math.Sqrt2

	lower := 0.0
	for k := kPeak; k >= 1; k-- {
		if mag[k-1] <= threshold && mag[k] > threshold {
			lower = crossing(k-1, k, mag[k-1], mag[k], threshold, binWidth)
			break
		}
	}
	upper := float64(len(mag)-1) * binWidth
	for k := kPeak; k < len(mag)-1; k++ {
		if mag[k+1] <= threshold && mag[k] > threshold {
			upper = crossing(k, k+1, mag[k], mag[k+1], threshold, binWidth)
			break
		}
	}
	if upper < lower {
		return 0
	}
	return upper - lower
}

// crossing interpolates the frequency where the magnitude crosses the
// threshold between two adjacent bins.
func crossing(kLow, kHigh int, magLow, magHigh, threshold, binWidth float64) float64 {
	fLow := float64(kLow) * binWidth
	fHigh := float64(kHigh) * binWidth
	denom := magHigh - magLow
	if denom == 0 {
		return (fLow + fHigh) / 2
	}
	return fLow + (threshold-magLow)/denom*(fHigh-fLow)
}

// peakOverMedian returns the ratio of the peak to the median magnitude.
func peakOverMedian(band []float64, peak float64) float64 {
	sorted := append([]float64(nil), band...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if median == 0 {
		return math.Inf(1)
	}
	return peak / median
}

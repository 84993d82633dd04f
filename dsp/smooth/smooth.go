// Package smooth provides the time-domain smoothing kernels used on
// demodulated phase and raw decay records: a centered moving average with
// reflected edges and a ranged repeated box filter.
package smooth

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// MovingAverage returns the centered box average of data. The window is
// forced odd and clamped to the data length; edges are handled by
// reflecting the data around its end samples, so the output length
// equals the input length.
func MovingAverage(data []float64, window int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if window < 1 {
		window = 1
	}
	if window%2 == 0 {
		window++
	}
	if window > 2*n-1 {
		window = 2*n - 1
	}
	half := window / 2

	ext := make([]float64, n+2*half)
	copy(ext[half:], data)
	for i := 0; i < half; i++ {
		ext[half-1-i] = data[i]
		ext[half+n+i] = data[n-1-i]
	}

	cum := make([]float64, len(ext)+1)
	for i, v := range ext {
		cum[i+1] = cum[i] + v
	}
	for i := range out {
		out[i] = cum[i+window] - cum[i]
	}
	vecmath.ScaleBlock(out, out, 1/float64(window))
	return out
}

// WindowFromPeriods converts a smoothing length of periods oscillation
// periods at angular frequency omega into an odd sample count for a
// record sampled every dt seconds.
func WindowFromPeriods(periods int, omega, dt float64) int {
	if periods < 1 || omega <= 0 || dt <= 0 {
		return 1
	}
	n := int(math.Round(float64(periods) * 2 * math.Pi / omega / dt))
	if n < 1 {
		return 1
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// BoxRange applies iterations passes of a box average of half width
// halfWidth to the samples with indices in [lo, hi]; samples outside the
// range pass through unchanged. The averaging window is clipped at the
// range bounds, so samples outside [lo, hi] never leak in. Index bounds
// are clamped; a reversed range returns a plain copy.
func BoxRange(data []float64, lo, hi, halfWidth, iterations int) []float64 {
	out := append([]float64(nil), data...)
	n := len(out)
	if n == 0 || halfWidth < 1 || iterations < 1 {
		return out
	}
	lo = clampInt(lo, 0, n-1)
	hi = clampInt(hi, 0, n-1)
	if lo > hi {
		return out
	}

	buf := make([]float64, n)
	for it := 0; it < iterations; it++ {
		copy(buf, out)
		for i := lo; i <= hi; i++ {
			start := i - halfWidth
			if start < lo {
				start = lo
			}
			end := i + halfWidth + 1
			if end > hi+1 {
				end = hi + 1
			}
			var sum float64
			for _, v := range buf[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

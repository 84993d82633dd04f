// Package series computes time-domain statistics of sampled decay
// records: the aggregate figures reported by readout diagnostics and the
// pretrigger noise estimate used to weight phase fits.
package series

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats holds time-domain statistics of a record.
type Stats struct {
	Length        int
	Mean          float64
	RMS           float64
	Peak          float64 // max absolute amplitude
	PeakPos       int
	Energy        float64 // sum of squares
	Variance      float64
	ZeroCrossings int
}

// Calculate computes all statistics in a single pass, using Welford's
// update for the variance.
func Calculate(signal []float64) Stats {
	n := len(signal)
	if n == 0 {
		return Stats{}
	}

	var (
		mean  float64
		m2    float64
		sumSq float64
		peak  float64
		pos   int
		zeros int
	)
	for i, x := range signal {
		delta := x - mean
		mean += delta / float64(i+1)
		m2 += delta * (x - mean)

		sumSq += x * x
		if a := math.Abs(x); a > peak {
			peak = a
			pos = i
		}
		if i > 0 && signal[i-1]*x < 0 {
			zeros++
		}
	}

	return Stats{
		Length:        n,
		Mean:          mean,
		RMS:           math.Sqrt(sumSq / float64(n)),
		Peak:          peak,
		PeakPos:       pos,
		Energy:        sumSq,
		Variance:      m2 / float64(n),
		ZeroCrossings: zeros,
	}
}

// NoiseBefore returns the standard deviation of the flux samples taken
// strictly before cutoff on the time axis. It returns 0 when fewer than
// two samples qualify, leaving the caller to fall back to unit weights.
func NoiseBefore(times, flux []float64, cutoff float64) float64 {
	if len(times) != len(flux) {
		return 0
	}
	window := make([]float64, 0, len(flux))
	for i, at := range times {
		if at < cutoff {
			window = append(window, flux[i])
		}
	}
	if len(window) < 2 {
		return 0
	}
	return stat.StdDev(window, nil)
}

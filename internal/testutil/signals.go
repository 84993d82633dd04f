// Package testutil provides deterministic test waveforms and tolerance
// helpers shared by the simulation and demodulation tests.
package testutil

import (
	"math"
	"math/rand"
)

// TimeAxis returns length samples spaced 1/sampleRate apart, starting at
// start.
func TimeAxis(start, sampleRate float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = start + float64(i)/sampleRate
	}
	return out
}

// SineWithPhase generates a pure tone with an initial phase offset.
func SineWithPhase(freqHz, sampleRate, amplitude, phase float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i)+phase)
	}
	return out
}

// DecayingSine generates an exponentially decaying tone, the shape of an
// ideal mixed-down free-induction decay with relaxation time decay.
func DecayingSine(freqHz, sampleRate, amplitude, decay, phase float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		t := float64(i) / sampleRate
		out[i] = amplitude * math.Exp(-t/decay) * math.Sin(2*math.Pi*freqHz*t+phase)
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for
// reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

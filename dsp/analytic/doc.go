// Package analytic builds analytic signals from sampled waveforms via the
// FFT Hilbert transform and demodulates their envelope and phase.
//
// [Transform] decomposes a waveform into in-phase and quadrature parts.
// [Signal.Envelope] gives the instantaneous amplitude; [Signal.Phase]
// gives an accumulated phase built from a half-cycle winding count plus
// an arctangent interpolation inside each half cycle, which stays
// continuous through the many thousand turns of a long decay record.
//
// [TransformBand] additionally confines the spectrum to a frequency band
// before the analytic construction, the demodulation scheme used by
// fixed-probe readout chains; pair it with [Signal.PhaseWrapped] and
// [UnwrapJumps] for the jump-threshold unwrap those chains apply.
package analytic

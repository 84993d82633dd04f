// Package fidfit extracts precession frequencies from free-induction
// decay records.
//
// The main fitter demodulates a record into envelope and accumulated
// phase, bounds a fit window from the envelope, seeds a frequency
// estimate by linear regression and then minimizes an envelope-weighted
// chi-square of a polynomial phase model with L-BFGS. An echo variant
// searches for the window around the spin-echo center instead of the
// record head. A legacy variant reproduces the station analyzer chain
// built on linear regression of the unwrapped phase and per-probe
// calibration templates.
package fidfit

// Package probe simulates the proton spin ensemble of a pulsed-NMR probe
// and the free-induction-decay signal it induces in a pickup coil.
//
// An [Ensemble] discretizes the cylindrical sample into randomly placed
// cells, each carrying the local static field and, after [Ensemble.ApplyRF],
// the local excitation field and tipped magnetization direction.
// [Ensemble.IntegrateSignal] sums the reciprocity product B1·mu over all
// cells at a given time after the pulse, with transverse relaxation and
// an optional mix-down of the precession frequency.
//
// Cell sampling is driven by a seed owned by the ensemble; two ensembles
// built with identical parameters and the same seed hold bit-identical
// cells. Per-cell field evaluation and flux sampling fan out over a
// bounded worker pool.
package probe

package probe

import (
	"fmt"

	"github.com/cwbudde/algo-nmr/sim/field"
)

// PickupCoil reads the ensemble signal through a coil. It keeps a
// read-only reference to the ensemble; the same coil can serve as the
// excitation source beforehand.
type PickupCoil struct {
	coil *field.Coil
	ens  *Ensemble
}

// NewPickupCoil couples a coil to an ensemble.
func NewPickupCoil(coil *field.Coil, ens *Ensemble) (*PickupCoil, error) {
	if coil == nil || ens == nil {
		return nil, fmt.Errorf("%w: pickup coil and ensemble required", ErrInvalidProbe)
	}
	if err := coil.Validate(); err != nil {
		return nil, err
	}
	return &PickupCoil{coil: coil, ens: ens}, nil
}

// Flux returns the flux induced in the pickup coil at time t after the
// pulse. By reciprocity the coupling of each cell is its excitation
// field per unit current, so
//
//	flux = turns * IntegrateSignal(t, mixDown) / current.
//
// Fails with [ErrZeroCurrent] when the coil carries no drive current.
func (p *PickupCoil) Flux(t, mixDown float64) (float64, error) {
	if p.coil.Current == 0 {
		return 0, fmt.Errorf("probe: pickup through %d turns: %w", p.coil.Turns, ErrZeroCurrent)
	}
	s, err := p.ens.IntegrateSignal(t, mixDown)
	if err != nil {
		return 0, err
	}
	return float64(p.coil.Turns) * s / p.coil.Current, nil
}

// FluxSeries evaluates Flux at every time in times. Samples are
// independent and are computed on the worker pool; the result order
// matches times.
func (p *PickupCoil) FluxSeries(times []float64, mixDown float64) ([]float64, error) {
	out := make([]float64, len(times))
	err := parallelRange(len(times), func(i int) error {
		f, err := p.Flux(times[i], mixDown)
		if err != nil {
			return err
		}
		out[i] = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

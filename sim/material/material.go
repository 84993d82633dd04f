// Package material describes NMR sample materials: bulk properties that
// set the equilibrium magnetization and the relaxation times that shape
// the observed free-induction decay.
package material

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-nmr/sim/phys"
)

// ErrInvalidMaterial reports a material whose properties cannot support
// the requested computation.
var ErrInvalidMaterial = errors.New("material: invalid material properties")

// Material holds the sample properties in SI units. T1 and T2 are the
// longitudinal and transverse relaxation times in seconds; a zero value
// means the corresponding relaxation is not modeled and computations
// dividing by it fail.
type Material struct {
	Name      string
	Formula   string
	Density   float64 // kg/m^3
	MolarMass float64 // kg/mol
	T1        float64 // s
	T2        float64 // s
}

// Validate checks the bulk properties needed to derive the spin number
// density.
func (m Material) Validate() error {
	if m.Density <= 0 {
		return fmt.Errorf("%w: density %g must be positive", ErrInvalidMaterial, m.Density)
	}
	if m.MolarMass <= 0 {
		return fmt.Errorf("%w: molar mass %g must be positive", ErrInvalidMaterial, m.MolarMass)
	}
	return nil
}

// NumberDensity returns the molecular number density in 1/m^3.
func (m Material) NumberDensity() float64 {
	return phys.Avogadro * m.Density / m.MolarMass
}

// PetroleumJelly returns the reference probe sample used in precision
// field-mapping probes.
func PetroleumJelly() Material {
	return Material{
		Name:      "petroleum jelly",
		Formula:   "C40H46N4O10",
		Density:   0.848e3,
		MolarMass: 742.8e-3,
		T1:        1,
		T2:        40e-3,
	}
}

// Water returns properties of pure water at room temperature.
func Water() Material {
	return Material{
		Name:      "water",
		Formula:   "H2O",
		Density:   0.997e3,
		MolarMass: 18.015e-3,
		T1:        3.6,
		T2:        2.2,
	}
}

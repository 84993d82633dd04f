// Package phys provides the physical constants used by the simulation
// packages. Values are CODATA 2018 in SI base units.
package phys

const (
	// Mu0 is the vacuum magnetic permeability in T·m/A.
	Mu0 = 1.25663706212e-6

	// Avogadro is the Avogadro constant in 1/mol.
	Avogadro = 6.02214076e23

	// Boltzmann is the Boltzmann constant in J/K.
	Boltzmann = 1.380649e-23

	// ProtonMoment is the magnetic moment of the proton in J/T.
	ProtonMoment = 1.41060679736e-26

	// ProtonGyromagneticRatio is the gyromagnetic ratio of the proton
	// in rad/(s·T). The Larmor angular frequency of a proton in a field
	// of magnitude B is ProtonGyromagneticRatio*B.
	ProtonGyromagneticRatio = 2.6752218744e8
)

// Package field models static and radio-frequency magnetic field sources
// for pulsed-NMR simulation.
//
// A [Source] maps a point in space to a field vector. [Uniform] describes
// the main magnet in the idealized homogeneous case; [Coil] describes a
// helical excitation or pickup coil whose field follows from the
// Biot-Savart line integral over the winding path, evaluated with
// adaptive Gauss-Legendre quadrature.
//
// All positions are meters, fields are Tesla, currents are Ampere. The
// ideal zero-thickness winding makes the field singular on the wire
// itself; [Coil.EvaluateField] rejects points inside a small documented
// clearance with [ErrSingularGeometry] instead of returning an arbitrary
// finite value.
package field

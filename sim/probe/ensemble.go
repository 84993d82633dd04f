package probe

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-nmr/sim/field"
	"github.com/cwbudde/algo-nmr/sim/material"
	"github.com/cwbudde/algo-nmr/sim/phys"
)

// Errors returned by ensemble operations.
var (
	ErrInvalidProbe = errors.New("probe: invalid probe configuration")
	ErrNotExcited   = errors.New("probe: signal integration before rf excitation")
	ErrZeroCurrent  = errors.New("probe: pickup coil drive current is zero")
)

const (
	defaultCells       = 1000
	defaultSeed        = 12345
	defaultTemperature = 300.0
)

// Config describes the probe sample and its discretization. Length and
// Diameter are the active sample dimensions in m, Temperature is in K.
// Zero Cells, Seed and Temperature fall back to defaults.
type Config struct {
	Length      float64
	Diameter    float64
	Material    material.Material
	Temperature float64
	Cells       int
	Seed        int64
}

// Cell is one volume element of the ensemble: its position, the local
// static and excitation fields, and the magnetization direction factors
// set by the RF pulse.
type Cell struct {
	X, Y, Z float64
	B0      field.Vector3
	B1      field.Vector3
	MuX     float64
	MuY     float64
	MuZ     float64
	MuT     float64
}

// Ensemble holds the discretized probe sample. All cells live in one
// slice owned by the ensemble and are updated in batched passes; no state
// is shared outside it.
type Ensemble struct {
	cfg   Config
	cells []Cell

	polarization  float64
	magnetization float64
	cellMoment    float64
	excited       bool
}

func normalizeConfig(cfg Config) Config {
	if cfg.Cells == 0 {
		cfg.Cells = defaultCells
	}
	if cfg.Seed == 0 {
		cfg.Seed = defaultSeed
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.Length <= 0 || cfg.Diameter <= 0 {
		return fmt.Errorf("%w: length=%g diameter=%g must be positive",
			ErrInvalidProbe, cfg.Length, cfg.Diameter)
	}
	if cfg.Temperature <= 0 {
		return fmt.Errorf("%w: temperature %g must be positive", ErrInvalidProbe, cfg.Temperature)
	}
	if cfg.Cells < 1 {
		return fmt.Errorf("%w: cell count %d must be positive", ErrInvalidProbe, cfg.Cells)
	}
	return nil
}

// NewEnsemble builds the cell ensemble in the given static field. The
// equilibrium polarization follows the field magnitude at the probe
// center
//
//	P = tanh(mu_p*|B0|/(kB*T))
//
// and cells are placed uniformly over the sample volume using the
// configured seed. The static field is evaluated once per cell.
func NewEnsemble(cfg Config, static field.Source) (*Ensemble, error) {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Material.Validate(); err != nil {
		return nil, err
	}
	if static == nil {
		return nil, fmt.Errorf("%w: static field source required", ErrInvalidProbe)
	}

	center, err := static.EvaluateField(0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("probe: static field at center: %w", err)
	}

	e := &Ensemble{cfg: cfg}
	e.polarization = math.Tanh(phys.ProtonMoment * center.Mag() / (phys.Boltzmann * cfg.Temperature))
	e.magnetization = phys.ProtonMoment * cfg.Material.NumberDensity() * e.polarization

	radius := cfg.Diameter / 2
	volume := cfg.Length * math.Pi * radius * radius
	e.cellMoment = e.magnetization * volume / float64(cfg.Cells)

	e.sampleCells()
	if err := e.forEachCell(func(c *Cell) error {
		b, err := static.EvaluateField(c.X, c.Y, c.Z)
		if err != nil {
			return fmt.Errorf("probe: static field at cell (%g, %g, %g): %w", c.X, c.Y, c.Z, err)
		}
		c.B0 = b
		return nil
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// sampleCells draws cell positions uniformly over the sample cylinder:
// radii from sqrt(U(0, R^2)), azimuths from U(0, 2*pi), heights from
// U(-L/2, L/2). Batches are drawn in a fixed order so a seed pins down
// every position.
func (e *Ensemble) sampleCells() {
	rng := rand.New(rand.NewSource(e.cfg.Seed))
	n := e.cfg.Cells
	radius := e.cfg.Diameter / 2

	rs := make([]float64, n)
	phis := make([]float64, n)
	zs := make([]float64, n)
	for i := range rs {
		rs[i] = math.Sqrt(rng.Float64() * radius * radius)
	}
	for i := range phis {
		phis[i] = rng.Float64() * 2 * math.Pi
	}
	for i := range zs {
		zs[i] = (rng.Float64() - 0.5) * e.cfg.Length
	}

	e.cells = make([]Cell, n)
	for i := range e.cells {
		sin, cos := math.Sincos(phis[i])
		e.cells[i] = Cell{X: rs[i] * sin, Y: rs[i] * cos, Z: zs[i]}
	}
}

// ApplyRF applies an excitation pulse of the given duration. The local
// RF field is evaluated once per cell; the magnetization direction then
// follows the rotating-frame tip angle
//
//	theta = gamma_p*|B1|/2 * duration
//
// with MuX = MuY = sin(theta) and MuZ = cos(theta). Both transverse
// components carry the same tip term; MuT is their quadrature sum. A zero
// duration leaves the magnetization aligned with the static field.
func (e *Ensemble) ApplyRF(rf field.Source, duration float64) error {
	if rf == nil {
		return fmt.Errorf("%w: rf field source required", ErrInvalidProbe)
	}
	if duration < 0 {
		return fmt.Errorf("%w: rf duration %g must not be negative", ErrInvalidProbe, duration)
	}

	err := e.forEachCell(func(c *Cell) error {
		b1, err := rf.EvaluateField(c.X, c.Y, c.Z)
		if err != nil {
			return fmt.Errorf("probe: rf field at cell (%g, %g, %g): %w", c.X, c.Y, c.Z, err)
		}
		c.B1 = b1

		sin, cos := math.Sincos(phys.ProtonGyromagneticRatio * b1.Mag() / 2 * duration)
		c.MuX = sin
		c.MuY = sin
		c.MuZ = cos
		c.MuT = math.Sqrt(c.MuX*c.MuX + c.MuY*c.MuY)
		return nil
	})
	if err != nil {
		return err
	}
	e.excited = true
	return nil
}

// IntegrateSignal sums the reciprocity product B1·mu over all cells at
// time t after the pulse:
//
//	sum_cells B1.x*MuT*sin((gamma_p*|B0|-mixDown)*t)*exp(-t/T2)
//	        + B1.y*MuT*cos((gamma_p*|B0|-mixDown)*t)*exp(-t/T2)
//	        + B1.z*MuZ
//
// mixDown is an angular frequency in rad/s subtracted from the Larmor
// frequency of every cell. Fails with [ErrNotExcited] before ApplyRF and
// with [material.ErrInvalidMaterial] when the material does not define a
// positive T2.
func (e *Ensemble) IntegrateSignal(t, mixDown float64) (float64, error) {
	if !e.excited {
		return 0, fmt.Errorf("%w: call ApplyRF first", ErrNotExcited)
	}
	if e.cfg.Material.T2 <= 0 {
		return 0, fmt.Errorf("%w: transverse relaxation time T2 = %g",
			material.ErrInvalidMaterial, e.cfg.Material.T2)
	}

	decay := math.Exp(-t / e.cfg.Material.T2)
	var sum float64
	for i := range e.cells {
		c := &e.cells[i]
		sin, cos := math.Sincos((phys.ProtonGyromagneticRatio*c.B0.Mag() - mixDown) * t)
		sum += c.B1.X*c.MuT*sin*decay + c.B1.Y*c.MuT*cos*decay + c.B1.Z*c.MuZ
	}
	return sum, nil
}

// PulseDuration90 returns the pi/2 pulse length for the RF field
// magnitude at the probe center, t90 = pi/(2*gamma_p*|B1|/2).
func PulseDuration90(rf field.Source) (float64, error) {
	if rf == nil {
		return 0, fmt.Errorf("%w: rf field source required", ErrInvalidProbe)
	}
	b1, err := rf.EvaluateField(0, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("probe: rf field at center: %w", err)
	}
	mag := b1.Mag()
	if mag == 0 {
		return 0, fmt.Errorf("%w: zero rf field at center", ErrInvalidProbe)
	}
	return math.Pi / (2 * phys.ProtonGyromagneticRatio * mag / 2), nil
}

// Polarization returns the equilibrium nuclear polarization, in [0, 1).
func (e *Ensemble) Polarization() float64 { return e.polarization }

// Magnetization returns the equilibrium magnetization in J/(T·m^3).
func (e *Ensemble) Magnetization() float64 { return e.magnetization }

// CellMoment returns the magnetic dipole moment carried by each cell in
// J/T.
func (e *Ensemble) CellMoment() float64 { return e.cellMoment }

// Excited reports whether an RF pulse has been applied.
func (e *Ensemble) Excited() bool { return e.excited }

// Cells returns a copy of the ensemble cells.
func (e *Ensemble) Cells() []Cell {
	out := make([]Cell, len(e.cells))
	copy(out, e.cells)
	return out
}

// forEachCell runs fn over every cell on the worker pool. Cell order is
// fixed, so results do not depend on scheduling.
func (e *Ensemble) forEachCell(fn func(*Cell) error) error {
	return parallelRange(len(e.cells), func(i int) error {
		return fn(&e.cells[i])
	})
}

package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/cwbudde/algo-nmr/sim/phys"
)

// Errors returned by field sources.
var (
	ErrInvalidGeometry  = errors.New("field: coil turns, length and diameter must be positive")
	ErrSingularGeometry = errors.New("field: evaluation point too close to coil winding")
)

const (
	// wireClearanceFraction defines the exclusion zone around the ideal
	// zero-thickness winding, as a fraction of the coil radius. The field
	// diverges on the wire itself; points inside the clearance are
	// rejected instead of returning an arbitrarily large value.
	wireClearanceFraction = 1e-6

	quadRelTol   = 1e-10
	quadAbsTol   = 1e-20
	quadMaxNodes = 1 << 17
)

// Source yields a magnetic field vector at a point in space. Coordinates
// are meters, fields are Tesla. Implementations must be safe for
// concurrent use.
type Source interface {
	EvaluateField(x, y, z float64) (Vector3, error)
}

// Uniform is a Source with the same field vector at every point.
type Uniform struct {
	B Vector3
}

// EvaluateField returns the constant field vector. It never fails.
func (u Uniform) EvaluateField(x, y, z float64) (Vector3, error) {
	return u.B, nil
}

// Coil models an ideal helical coil of zero wire thickness, centered on
// the origin with its axis along z. The winding runs from z = -Length/2
// to z = +Length/2 over Turns full revolutions.
//
// The field is the Biot-Savart line integral over the winding path
//
//	B(r) = mu0/(4*pi) * I * Integral dl x (r-l) / |r-l|^3
//
// evaluated with Gauss-Legendre quadrature whose node count is doubled
// until successive estimates agree to within quadRelTol.
type Coil struct {
	Turns    int     // number of windings
	Length   float64 // axial extent in m
	Diameter float64 // winding diameter in m
	Current  float64 // drive current in A
}

// Validate checks the coil geometry.
func (c *Coil) Validate() error {
	if c.Turns <= 0 || c.Length <= 0 || c.Diameter <= 0 {
		return fmt.Errorf("%w: turns=%d length=%g diameter=%g",
			ErrInvalidGeometry, c.Turns, c.Length, c.Diameter)
	}
	return nil
}

// EvaluateField returns the coil field at (x, y, z) for the configured
// drive current. Points closer to the winding than a small clearance
// (wireClearanceFraction of the radius) fail with [ErrSingularGeometry].
func (c *Coil) EvaluateField(x, y, z float64) (Vector3, error) {
	return c.EvaluateFieldWithCurrent(x, y, z, c.Current)
}

// EvaluateFieldWithCurrent is EvaluateField with the drive current
// overridden. The field scales linearly with the current.
func (c *Coil) EvaluateFieldWithCurrent(x, y, z, current float64) (Vector3, error) {
	if err := c.Validate(); err != nil {
		return Vector3{}, err
	}
	if c.nearWinding(x, y, z) {
		return Vector3{}, fmt.Errorf("field: point (%g, %g, %g): %w", x, y, z, ErrSingularGeometry)
	}

	upper := 2 * math.Pi * float64(c.Turns)
	var rule quad.Legendre

	// Start with enough nodes to resolve every winding, then double
	// until the estimate settles.
	n := 32 * c.Turns
	if n < 64 {
		n = 64
	}

	var prev Vector3
	for first := true; n <= quadMaxNodes; n *= 2 {
		nodes := make([]float64, n)
		weights := make([]float64, n)
		rule.FixedLocations(nodes, weights, 0, upper)

		var sum Vector3
		for i, phi := range nodes {
			sum = sum.Add(c.integrand(x, y, z, phi).Scale(weights[i]))
		}

		if !first {
			delta := sum.Sub(prev).Mag()
			if delta <= quadRelTol*sum.Mag()+quadAbsTol {
				return sum.Scale(phys.Mu0 / (4 * math.Pi) * current), nil
			}
		}
		prev = sum
		first = false
	}

	// The integral only refuses to settle when the integrand peaks
	// sharply, which happens next to the winding.
	return Vector3{}, fmt.Errorf("field: integral did not stabilize at (%g, %g, %g): %w",
		x, y, z, ErrSingularGeometry)
}

// integrand returns dl/dphi x (r-l)/|r-l|^3 at winding parameter phi for
// the observation point r = (x, y, z).
func (c *Coil) integrand(x, y, z, phi float64) Vector3 {
	sin, cos := math.Sincos(phi)
	r := c.Diameter / 2
	pitch := c.Length / (2 * math.Pi * float64(c.Turns))

	// Winding path l(phi) and its derivative.
	lx := r * sin
	ly := r * cos
	lz := pitch*phi - c.Length/2
	dlx := r * cos
	dly := -r * sin
	dlz := pitch

	dx := x - lx
	dy := y - ly
	dz := z - lz
	d := math.Sqrt(dx*dx + dy*dy + dz*dz)
	d3 := d * d * d

	return Vector3{
		(dly*dz - dlz*dy) / d3,
		(dlz*dx - dlx*dz) / d3,
		(dlx*dy - dly*dx) / d3,
	}
}

// nearWinding reports whether (x, y, z) lies inside the wire clearance
// zone. A cheap radial bound rejects almost every point; only points on
// the winding cylinder are checked against the helix itself.
func (c *Coil) nearWinding(x, y, z float64) bool {
	r := c.Diameter / 2
	eps := r * wireClearanceFraction

	if math.Abs(math.Hypot(x, y)-r) > eps {
		return false
	}
	if math.Abs(z) > c.Length/2+eps {
		return false
	}

	turns := float64(c.Turns)
	theta := math.Atan2(x, y)
	if theta < 0 {
		theta += 2 * math.Pi
	}

	// Candidate winding parameters: azimuth matches at theta + 2*pi*k;
	// the height of the point selects k.
	phiAtHeight := (z + c.Length/2) * 2 * math.Pi * turns / c.Length
	k := math.Round((phiAtHeight - theta) / (2 * math.Pi))
	for _, kk := range [3]float64{k - 1, k, k + 1} {
		phi := theta + 2*math.Pi*kk
		if phi < 0 || phi > 2*math.Pi*turns {
			continue
		}
		if c.distToWinding(x, y, z, phi) < eps {
			return true
		}
	}
	return false
}

// distToWinding returns the distance from (x, y, z) to the winding point
// at parameter phi.
func (c *Coil) distToWinding(x, y, z, phi float64) float64 {
	sin, cos := math.Sincos(phi)
	r := c.Diameter / 2
	dx := x - r*sin
	dy := y - r*cos
	dz := z - (c.Length*phi/(2*math.Pi*float64(c.Turns)) - c.Length/2)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

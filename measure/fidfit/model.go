package fidfit

import "fmt"

// Model selects the polynomial basis fitted to the accumulated phase
// over normalized window time. Odd variants keep only odd powers above
// the constant term; full variants keep every power up to the named
// degree.
type Model int

const (
	// ModelOdd5 fits p0 + p1*t + p2*t^3 + p3*t^5 and is the default.
	ModelOdd5 Model = iota
	// ModelOdd3 fits p0 + p1*t + p2*t^3.
	ModelOdd3
	// ModelOdd7 extends ModelOdd5 with a t^7 term.
	ModelOdd7
	// ModelFull3 through ModelFull7 fit complete polynomials of the
	// named degree.
	ModelFull3
	ModelFull4
	ModelFull5
	ModelFull6
	ModelFull7
)

func (m Model) exponents() []int {
	switch m {
	case ModelOdd3:
		return []int{0, 1, 3}
	case ModelOdd5:
		return []int{0, 1, 3, 5}
	case ModelOdd7:
		return []int{0, 1, 3, 5, 7}
	case ModelFull3:
		return []int{0, 1, 2, 3}
	case ModelFull4:
		return []int{0, 1, 2, 3, 4}
	case ModelFull5:
		return []int{0, 1, 2, 3, 4, 5}
	case ModelFull6:
		return []int{0, 1, 2, 3, 4, 5, 6}
	case ModelFull7:
		return []int{0, 1, 2, 3, 4, 5, 6, 7}
	default:
		return nil
	}
}

// Params returns the number of model coefficients, or zero for an
// unknown model.
func (m Model) Params() int { return len(m.exponents()) }

// Eval evaluates the model at normalized time t with the given
// coefficients. Missing trailing coefficients count as zero.
func (m Model) Eval(t float64, coeffs []float64) float64 {
	var sum float64
	for k, e := range m.exponents() {
		if k == len(coeffs) {
			break
		}
		sum += coeffs[k] * intPow(t, e)
	}
	return sum
}

// String returns the station-style model name, such as "t5_odd".
func (m Model) String() string {
	switch m {
	case ModelOdd3:
		return "t3_odd"
	case ModelOdd5:
		return "t5_odd"
	case ModelOdd7:
		return "t7_odd"
	case ModelFull3:
		return "t3_all"
	case ModelFull4:
		return "t4_all"
	case ModelFull5:
		return "t5_all"
	case ModelFull6:
		return "t6_all"
	case ModelFull7:
		return "t7_all"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// ParseModel maps a station-style model name back to its Model value.
func ParseModel(name string) (Model, error) {
	for _, m := range []Model{
		ModelOdd5, ModelOdd3, ModelOdd7,
		ModelFull3, ModelFull4, ModelFull5, ModelFull6, ModelFull7,
	} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("fidfit: model %q: %w", name, ErrUnknownModel)
}

func evalExponents(exps []int, t float64, p []float64) float64 {
	var sum float64
	for k, e := range exps {
		sum += p[k] * intPow(t, e)
	}
	return sum
}

func intPow(t float64, n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= t
	}
	return v
}

package fidfit

import (
	"errors"
	"testing"
)

func TestModelParams(t *testing.T) {
	cases := []struct {
		model Model
		want  int
	}{
		{ModelOdd3, 3},
		{ModelOdd5, 4},
		{ModelOdd7, 5},
		{ModelFull3, 4},
		{ModelFull4, 5},
		{ModelFull5, 6},
		{ModelFull6, 7},
		{ModelFull7, 8},
	}
	for _, tc := range cases {
		if got := tc.model.Params(); got != tc.want {
			t.Errorf("%v.Params() = %d, want %d", tc.model, got, tc.want)
		}
	}
	if got := Model(99).Params(); got != 0 {
		t.Errorf("unknown model Params() = %d, want 0", got)
	}
}

func TestModelZeroValueIsDefault(t *testing.T) {
	var m Model
	if m != ModelOdd5 {
		t.Fatalf("zero model = %v, want %v", m, ModelOdd5)
	}
}

func TestModelEval(t *testing.T) {
	// t5_odd at t=2 with coefficients 1,2,3,4:
	// 1 + 2*2 + 3*8 + 4*32 = 157.
	if got := ModelOdd5.Eval(2, []float64{1, 2, 3, 4}); got != 157 {
		t.Errorf("ModelOdd5.Eval = %g, want 157", got)
	}
	// t3_all at t=2 with unit coefficients: 1 + 2 + 4 + 8 = 15.
	if got := ModelFull3.Eval(2, []float64{1, 1, 1, 1}); got != 15 {
		t.Errorf("ModelFull3.Eval = %g, want 15", got)
	}
	// Missing trailing coefficients count as zero.
	if got := ModelOdd5.Eval(2, []float64{1, 2}); got != 5 {
		t.Errorf("ModelOdd5.Eval short coeffs = %g, want 5", got)
	}
}

func TestModelNamesRoundTrip(t *testing.T) {
	models := []Model{
		ModelOdd3, ModelOdd5, ModelOdd7,
		ModelFull3, ModelFull4, ModelFull5, ModelFull6, ModelFull7,
	}
	for _, m := range models {
		got, err := ParseModel(m.String())
		if err != nil {
			t.Errorf("ParseModel(%q): %v", m.String(), err)
			continue
		}
		if got != m {
			t.Errorf("ParseModel(%q) = %v, want %v", m.String(), got, m)
		}
	}
}

func TestParseModelUnknown(t *testing.T) {
	if _, err := ParseModel("t9_odd"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("got %v, want ErrUnknownModel", err)
	}
}

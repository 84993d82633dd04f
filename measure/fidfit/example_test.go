package fidfit_test

import (
	"fmt"

	"github.com/cwbudde/algo-nmr/internal/testutil"
	"github.com/cwbudde/algo-nmr/measure/fidfit"
)

func ExampleFitter_Fit() {
	// A 1.2 kHz decaying tone sampled at 10 kHz, the shape of a
	// mixed-down free-induction decay with a 40 ms relaxation time.
	times := testutil.TimeAxis(0, 10e3, 2048)
	flux := testutil.DecayingSine(1200, 10e3, 1.0, 40e-3, 0.3, 2048)

	f := fidfit.NewFitter(fidfit.Config{Seed: 1})
	res, err := f.Fit(times, flux, 0)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("frequency %.2f kHz\n", res.Frequency/1e3)

	// Output:
	// frequency 1.20 kHz
}

package models

import (
	"math"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// dampedCosine is an exponentially damped cosine,
//
//	f(x) = A * exp(-pi*x*w) * cos(2*pi*s*x) + b
//
// with parameters p = {amplitude A, shift s, width w, offset b}. The damped
// shape term doubles as the amplitude derivative, so the exponential is
// evaluated once per call.
func dampedCosine[T scalar.Real](p []T, x T, deriv []T) T {
	pi := T(math.Pi)
	ex := scalar.Exp(-pi * x * p[2])
	phase := 2 * pi * p[1] * x
	shape := ex * scalar.Cos(phase)

	deriv[0] = shape
	deriv[1] = -p[0] * ex * scalar.Sin(phase) * 2 * pi * x
	deriv[2] = -p[0] * shape * pi * x
	deriv[3] = 1
	return p[0]*shape + p[3]
}

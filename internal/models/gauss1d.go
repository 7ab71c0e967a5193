package models

import "github.com/prevedel-lab/Gpufit/internal/scalar"

// gauss1D is a one-dimensional Gaussian peak,
//
//	f(x) = A * exp(-(x-c)^2 / (2*sigma^2)) + b
//
// with parameters p = {amplitude A, center c, width sigma, offset b}.
func gauss1D[T scalar.Real](p []T, x T, deriv []T) T {
	dx := x - p[1]
	sig2 := p[2] * p[2]
	ex := scalar.Exp(-dx * dx / (2 * sig2))

	deriv[0] = ex
	deriv[1] = p[0] * ex * dx / sig2
	deriv[2] = p[0] * ex * dx * dx / (sig2 * p[2])
	deriv[3] = 1
	return p[0]*ex + p[3]
}

package models

import "github.com/prevedel-lab/Gpufit/internal/scalar"

// linear1D is a straight line f(x) = b + m*x with parameters p = {offset b,
// slope m}.
func linear1D[T scalar.Real](p []T, x T, deriv []T) T {
	deriv[0] = 1
	deriv[1] = x
	return p[0] + p[1]*x
}

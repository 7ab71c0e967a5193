package models

import "github.com/prevedel-lab/Gpufit/internal/scalar"

// angularLorentzian is a Lorentzian line shape averaged over a discrete
// angle distribution, approximating the continuous integral over the
// collection aperture. With effective shift s = p[1]*g and h = sin(psi/2)
// per angle,
//
//	alpha = x + s*h
//	beta  = p[2] * h^2
//	gamma = (2*alpha/beta)^2
//	f(x)  = p[0] * sum(1/(1+gamma)) + p[3]
//
// Parameters are {amplitude, shift, width, offset}. The geometric
// correction g enters only through the effective shift; the shift
// derivative deliberately carries no extra factor of g. Width or angle
// degeneracies (beta == 0) are not special-cased: the value contribution
// vanishes in the IEEE limit and the affected derivative sums go NaN,
// which the caller observes as a failed fit rather than a crash.
func angularLorentzian[T scalar.Real](p []T, x T, g T, sinHalf []T, deriv []T) T {
	shift := p[1] * g
	var sumVal, sumShift, sumWidth T
	for _, h := range sinHalf {
		alpha := x + shift*h
		beta := p[2] * h * h
		r := 2 * alpha / beta
		gamma := r * r
		d := 1 + gamma
		sumVal += 1 / d
		sumShift += h * alpha / (d * d * beta * beta)
		sumWidth += gamma / (d * d)
	}

	deriv[0] = sumVal
	deriv[1] = -8 * p[0] * sumShift
	deriv[2] = 2 * p[0] / p[2] * sumWidth
	deriv[3] = 1
	return p[0]*sumVal + p[3]
}

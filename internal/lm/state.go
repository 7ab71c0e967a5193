package lm

import "fmt"

// FitState is the terminal state of one fit.
type FitState int32

const (
	// Converged: the chi-square change fell below the tolerance.
	Converged FitState = 0

	// MaxIteration: the iteration budget ran out first.
	MaxIteration FitState = 1

	// SingularHessian: the damped normal equations could not be solved.
	SingularHessian FitState = 2

	// NegCurvatureMLE: a model value left the domain of the Poisson
	// likelihood.
	NegCurvatureMLE FitState = 3
)

func (s FitState) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIteration:
		return "max_iteration"
	case SingularHessian:
		return "singular_hessian"
	case NegCurvatureMLE:
		return "neg_curvature_mle"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

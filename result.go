package gpufit

import "gonum.org/v1/gonum/mat"

// FitResult holds one entry per fit, fit-major like the request.
// Parameters and ChiSquares reflect each fit's last accepted step; fits
// that never improved report their initial values.
type FitResult[T Real] struct {
	// NParameters is the model's parameter count.
	NParameters int

	// Parameters holds NFits recovered vectors back to back.
	Parameters []T

	// States holds each fit's terminal state.
	States []FitState

	// ChiSquares holds each fit's final criterion value.
	ChiSquares []T

	// Iterations holds the solver iterations each fit used.
	Iterations []int32
}

// NFits returns the number of fits in the batch.
func (r *FitResult[T]) NFits() int { return len(r.States) }

// ParametersFor returns fit's recovered parameter vector as a view into
// Parameters.
func (r *FitResult[T]) ParametersFor(fit int) []T {
	return r.Parameters[fit*r.NParameters : (fit+1)*r.NParameters]
}

// Converged counts the fits that ended in StateConverged.
func (r *FitResult[T]) Converged() int {
	n := 0
	for _, s := range r.States {
		if s == StateConverged {
			n++
		}
	}
	return n
}

// StateCounts tallies fits by terminal state.
func (r *FitResult[T]) StateCounts() map[FitState]int {
	counts := make(map[FitState]int)
	for _, s := range r.States {
		counts[s]++
	}
	return counts
}

// ParameterMatrix copies the recovered parameters into a dense matrix
// with one row per fit, in float64 for use with gonum.
func (r *FitResult[T]) ParameterMatrix() *mat.Dense {
	data := make([]float64, len(r.Parameters))
	for i, p := range r.Parameters {
		data[i] = float64(p)
	}
	return mat.NewDense(r.NFits(), r.NParameters, data)
}

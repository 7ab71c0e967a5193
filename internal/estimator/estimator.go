// Package estimator provides the fit criteria that turn per-point model
// values and data into the chi-square objective and the gradient and
// Hessian factors of the normal equations. Terms are per point and pure;
// the engine owns all accumulation.
package estimator

import (
	"errors"
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// ID selects a fit criterion.
type ID int32

const (
	LSE ID = 0
	MLE ID = 1
)

// ErrUnknownEstimator reports an estimator id with no implementation.
var ErrUnknownEstimator = errors.New("unknown estimator id")

func (id ID) String() string {
	switch id {
	case LSE:
		return "lse"
	case MLE:
		return "mle"
	}
	return fmt.Sprintf("estimator(%d)", int32(id))
}

// Estimator computes one point's contribution to a fit criterion.
type Estimator[T scalar.Real] interface {
	Name() string

	// PointTerms returns the chi-square term for one point plus the
	// factors that scale the point's derivative products in the gradient
	// and Hessian accumulation.
	PointTerms(data, model, weight T) (chi, grad, hess T)

	// CheckModel reports whether a model value keeps the criterion
	// well-defined at this point.
	CheckModel(model T) bool
}

// ForID returns the estimator implementation for id.
func ForID[T scalar.Real](id ID) (Estimator[T], error) {
	switch id {
	case LSE:
		return LeastSquares[T]{}, nil
	case MLE:
		return MaximumLikelihood[T]{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownEstimator, id)
}

// LeastSquares is the weighted least-squares criterion. A weight of 1
// recovers the unweighted form.
type LeastSquares[T scalar.Real] struct{}

func (LeastSquares[T]) Name() string { return "lse" }

func (LeastSquares[T]) PointTerms(data, model, weight T) (chi, grad, hess T) {
	dev := data - model
	return weight * dev * dev, weight * dev, weight
}

func (LeastSquares[T]) CheckModel(T) bool { return true }

// MaximumLikelihood is the Poisson maximum-likelihood criterion. It assumes
// counting data; weights do not apply and are ignored. Model values must be
// non-negative for the likelihood to exist, which CheckModel enforces.
type MaximumLikelihood[T scalar.Real] struct{}

func (MaximumLikelihood[T]) Name() string { return "mle" }

func (MaximumLikelihood[T]) PointTerms(data, model, _ T) (chi, grad, hess T) {
	if data > 0 {
		chi = 2 * ((model - data) - data*scalar.Log(model/data))
	} else {
		chi = 2 * model
	}
	return chi, data/model - 1, data / (model * model)
}

func (MaximumLikelihood[T]) CheckModel(model T) bool { return model >= 0 }

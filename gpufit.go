package gpufit

import (
	"github.com/prevedel-lab/Gpufit/internal/estimator"
	"github.com/prevedel-lab/Gpufit/internal/lm"
	"github.com/prevedel-lab/Gpufit/internal/models"
	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// Real constrains the floating-point width of a fit batch. All inputs,
// outputs, and model evaluations use the chosen width.
type Real = scalar.Real

// ModelID selects a model function.
type ModelID int32

const (
	ModelGauss1D             ModelID = 0
	ModelLinear1D            ModelID = 5
	ModelDampedCosine1D      ModelID = 10
	ModelAngularLorentzian1D ModelID = 11
)

func (id ModelID) String() string { return models.ID(id).String() }

// NumParameters returns the parameter count of a model.
func NumParameters(id ModelID) (int, error) {
	info, err := models.Lookup(models.ID(id))
	if err != nil {
		return 0, err
	}
	return info.NParameters, nil
}

// EstimatorID selects the fit criterion.
type EstimatorID int32

const (
	// EstimatorLSE is weighted least squares.
	EstimatorLSE EstimatorID = 0

	// EstimatorMLE is the Poisson maximum-likelihood criterion for
	// counting data. It takes no weights and requires non-negative model
	// values.
	EstimatorMLE EstimatorID = 1
)

func (id EstimatorID) String() string { return estimator.ID(id).String() }

// FitState is the terminal state of one fit.
type FitState int32

const (
	StateConverged       FitState = FitState(lm.Converged)
	StateMaxIteration    FitState = FitState(lm.MaxIteration)
	StateSingularHessian FitState = FitState(lm.SingularHessian)
	StateNegCurvatureMLE FitState = FitState(lm.NegCurvatureMLE)
)

func (s FitState) String() string { return lm.FitState(s).String() }

// Defaults applied by Fit when the request leaves the fields zero.
const (
	DefaultTolerance     = 1e-4
	DefaultMaxIterations = 25
)

package gpufit

import (
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/estimator"
	"github.com/prevedel-lab/Gpufit/internal/models"
	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// validateFit checks every size and domain invariant of a fit request
// except the user info buffer, which models.Prepare validates while
// decoding. Returns the model's parameter count.
func validateFit[T Real](req *FitRequest[T]) (int, error) {
	if req.NFits < 1 || req.NPoints < 1 {
		return 0, fmt.Errorf("%w: n_fits=%d n_points=%d", ErrBadArgument, req.NFits, req.NPoints)
	}
	info, err := models.Lookup(models.ID(req.Model))
	if err != nil {
		return 0, err
	}
	np := info.NParameters
	if _, err := estimator.ForID[T](estimator.ID(req.Estimator)); err != nil {
		return 0, err
	}

	if len(req.Data) != req.NFits*req.NPoints {
		return 0, fmt.Errorf("%w: data has %d values, want n_fits*n_points=%d",
			ErrSizeMismatch, len(req.Data), req.NFits*req.NPoints)
	}
	if req.Weights != nil {
		if req.Estimator == EstimatorMLE {
			return 0, fmt.Errorf("%w: weights are not supported with the mle estimator", ErrBadArgument)
		}
		if len(req.Weights) != req.NFits*req.NPoints {
			return 0, fmt.Errorf("%w: weights have %d values, want n_fits*n_points=%d",
				ErrSizeMismatch, len(req.Weights), req.NFits*req.NPoints)
		}
		for i, w := range req.Weights {
			if !scalar.Finite(w) || w < 0 {
				return 0, fmt.Errorf("%w: weight %d of fit %d is negative or not finite",
					ErrBadArgument, i%req.NPoints, i/req.NPoints)
			}
		}
	}
	if len(req.InitialParameters) != req.NFits*np {
		return 0, fmt.Errorf("%w: initial parameters have %d values, want n_fits*%d=%d",
			ErrSizeMismatch, len(req.InitialParameters), np, req.NFits*np)
	}
	if req.ParametersToFit != nil && len(req.ParametersToFit) != np {
		return 0, fmt.Errorf("%w: parameters_to_fit has %d entries, want %d",
			ErrSizeMismatch, len(req.ParametersToFit), np)
	}
	if req.Tolerance < 0 {
		return 0, fmt.Errorf("%w: negative tolerance %g", ErrBadArgument, req.Tolerance)
	}
	if req.MaxIterations < 0 {
		return 0, fmt.Errorf("%w: negative max iterations %d", ErrBadArgument, req.MaxIterations)
	}

	for i, p := range req.InitialParameters {
		if !scalar.Finite(p) {
			return 0, fmt.Errorf("%w: initial parameter %d of fit %d is not finite",
				ErrBadArgument, i%np, i/np)
		}
	}
	return np, nil
}

// validateEval checks an evaluation request the same way, minus the fields
// fitting adds.
func validateEval[T Real](req *EvalRequest[T]) (int, error) {
	if req.NFits < 1 || req.NPoints < 1 {
		return 0, fmt.Errorf("%w: n_fits=%d n_points=%d", ErrBadArgument, req.NFits, req.NPoints)
	}
	if req.ChunkIndex < 0 {
		return 0, fmt.Errorf("%w: negative chunk index %d", ErrBadArgument, req.ChunkIndex)
	}
	info, err := models.Lookup(models.ID(req.Model))
	if err != nil {
		return 0, err
	}
	np := info.NParameters
	if len(req.Parameters) != req.NFits*np {
		return 0, fmt.Errorf("%w: parameters have %d values, want n_fits*%d=%d",
			ErrSizeMismatch, len(req.Parameters), np, req.NFits*np)
	}
	return np, nil
}

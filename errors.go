package gpufit

import (
	"errors"

	"github.com/prevedel-lab/Gpufit/internal/estimator"
	"github.com/prevedel-lab/Gpufit/internal/models"
	"github.com/prevedel-lab/Gpufit/internal/xdata"
)

// Sentinel errors returned by request validation. Errors from deeper
// layers wrap the same values, so errors.Is works on everything a Fit or
// Evaluate call returns.
var (
	// ErrUserInfoSize: the user info buffer size selects no x data layout.
	ErrUserInfoSize = xdata.ErrUserInfoSize

	// ErrAngleHeader: an angle-model buffer has a truncated or
	// inconsistent header.
	ErrAngleHeader = xdata.ErrAngleHeader

	// ErrUnknownModel: no model is registered under the requested id.
	ErrUnknownModel = models.ErrUnknownModel

	// ErrUnknownEstimator: no criterion is registered under the requested
	// id.
	ErrUnknownEstimator = estimator.ErrUnknownEstimator

	// ErrSizeMismatch: a slice length disagrees with the request geometry.
	ErrSizeMismatch = errors.New("input size mismatch")

	// ErrBadArgument: a scalar field is out of domain, for example a
	// negative tolerance or a non-finite initial parameter.
	ErrBadArgument = errors.New("bad argument")
)

package gpufit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prevedel-lab/Gpufit/internal/estimator"
	"github.com/prevedel-lab/Gpufit/internal/lm"
	"github.com/prevedel-lab/Gpufit/internal/models"
)

// FitRequest describes one batch of fits. All slices are flat and
// fit-major: Data holds NFits datasets of NPoints values back to back, and
// InitialParameters holds NFits starting vectors. Buffers are read-only
// during Fit and may be shared between concurrent calls.
type FitRequest[T Real] struct {
	Model     ModelID
	Estimator EstimatorID

	NFits   int
	NPoints int

	// Data holds the dependent values, one block of NPoints per fit.
	Data []T

	// Weights optionally scales each data value's influence. Least
	// squares only; a zero weight removes the point.
	Weights []T

	// InitialParameters holds one starting vector per fit.
	InitialParameters []T

	// ParametersToFit marks the free parameters; nil frees all of them.
	// Fixed parameters keep their initial values in the result.
	ParametersToFit []bool

	// UserInfo is the model's side channel: optional x data, preceded by
	// the angle header for angle-integrating models. An empty buffer
	// means x equals the point index.
	UserInfo []byte

	// Tolerance is the relative chi-square improvement under which a fit
	// counts as converged; 0 means DefaultTolerance.
	Tolerance float64

	// MaxIterations caps solver iterations per fit; 0 means
	// DefaultMaxIterations.
	MaxIterations int
}

// Config tunes a Fitter. The zero value is usable.
type Config struct {
	// Workers caps the goroutines used per batch; 0 means one per CPU.
	Workers int

	// Logger receives per-batch debug summaries; nil means the global
	// zerolog logger.
	Logger *zerolog.Logger
}

// Fitter runs fit batches with a fixed configuration. It holds no mutable
// state and is safe for concurrent use.
type Fitter[T Real] struct {
	workers int
	logger  zerolog.Logger
}

// NewFitter returns a Fitter for the given configuration.
func NewFitter[T Real](cfg Config) *Fitter[T] {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Fitter[T]{workers: cfg.Workers, logger: logger}
}

// Fit validates the request, solves every fit in the batch, and returns
// the per-fit results. Validation failures and malformed user info
// buffers surface as typed errors before any fitting starts; individual
// fits that fail numerically report it through their FitState instead.
// The context is checked between fits, and on cancellation the partial
// batch is discarded.
func (f *Fitter[T]) Fit(ctx context.Context, req *FitRequest[T]) (*FitResult[T], error) {
	start := time.Now()

	np, err := validateFit(req)
	if err != nil {
		return nil, err
	}
	model, err := models.Prepare[T](models.ID(req.Model), req.UserInfo, req.NFits, req.NPoints)
	if err != nil {
		return nil, err
	}
	est, err := estimator.ForID[T](estimator.ID(req.Estimator))
	if err != nil {
		return nil, err
	}

	tol := req.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	maxIter := req.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}

	out, err := lm.Engine[T]{Workers: f.workers}.Run(ctx, &lm.Problem[T]{
		Model:         model,
		Estimator:     est,
		NFits:         req.NFits,
		NPoints:       req.NPoints,
		Data:          req.Data,
		Weights:       req.Weights,
		Init:          req.InitialParameters,
		FitMask:       req.ParametersToFit,
		Tolerance:     tol,
		MaxIterations: maxIter,
	})
	if err != nil {
		return nil, err
	}

	res := &FitResult[T]{
		NParameters: np,
		Parameters:  out.Parameters,
		ChiSquares:  out.ChiSquares,
		Iterations:  out.Iterations,
		States:      make([]FitState, len(out.States)),
	}
	for i, s := range out.States {
		res.States[i] = FitState(s)
	}

	f.logger.Debug().
		Stringer("model", req.Model).
		Stringer("estimator", req.Estimator).
		Int("fits", req.NFits).
		Int("points", req.NPoints).
		Int("converged", res.Converged()).
		Dur("elapsed", time.Since(start)).
		Msg("fit batch done")
	return res, nil
}

// Fit runs one batch with the default configuration.
func Fit[T Real](ctx context.Context, req *FitRequest[T]) (*FitResult[T], error) {
	return NewFitter[T](Config{}).Fit(ctx, req)
}

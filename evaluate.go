package gpufit

import (
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/lm"
	"github.com/prevedel-lab/Gpufit/internal/models"
	"github.com/prevedel-lab/Gpufit/internal/xdata"
)

// EvalRequest asks for raw model values and derivatives over one chunk of
// fits, without any fitting. It serves callers that run their own solver
// against the model functions.
type EvalRequest[T Real] struct {
	Model ModelID

	NFits   int
	NPoints int

	// ChunkIndex selects this chunk's block of a per-fit x buffer that
	// carries several chunks of fits back to back. Leave it 0 when the
	// buffer holds exactly this chunk, or when x data is absent or
	// shared.
	ChunkIndex int

	// Parameters holds one vector per fit.
	Parameters []T

	// UserInfo is the model's side channel, as in FitRequest.
	UserInfo []byte

	// Workers caps evaluation goroutines; 0 means one per CPU.
	Workers int
}

// EvalResult holds the chunk's model values and derivatives, fit-major.
type EvalResult[T Real] struct {
	NParameters int
	NPoints     int

	// Values holds NFits blocks of NPoints model values.
	Values []T

	// Derivatives holds NFits blocks of NParameters*NPoints partial
	// derivatives, parameter-major within each block.
	Derivatives []T
}

// ValuesFor returns fit's model values as a view into Values.
func (r *EvalResult[T]) ValuesFor(fit int) []T {
	return r.Values[fit*r.NPoints : (fit+1)*r.NPoints]
}

// Derivative returns d value / d parameter at one (fit, param, point)
// coordinate.
func (r *EvalResult[T]) Derivative(fit, param, point int) T {
	return r.Derivatives[(fit*r.NParameters+param)*r.NPoints+point]
}

// Evaluate validates the request and evaluates the model once per (fit,
// point) pair of the chunk, in parallel. Invocations are pure and write
// disjoint output slots, so results are identical for any worker count.
func Evaluate[T Real](req *EvalRequest[T]) (*EvalResult[T], error) {
	np, err := validateEval(req)
	if err != nil {
		return nil, err
	}
	model, err := models.Prepare[T](models.ID(req.Model), req.UserInfo, req.NFits, req.NPoints)
	if err != nil {
		return nil, err
	}
	if err := checkChunkCapacity[T](req); err != nil {
		return nil, err
	}

	res := &EvalResult[T]{
		NParameters: np,
		NPoints:     req.NPoints,
		Values:      make([]T, req.NFits*req.NPoints),
		Derivatives: make([]T, req.NFits*np*req.NPoints),
	}
	lm.EvaluateChunk(model, req.Parameters, req.ChunkIndex, req.NFits, req.NPoints, res.Values, res.Derivatives, req.Workers)
	return res, nil
}

// checkChunkCapacity rejects chunk indices that would address past the end
// of a per-fit x buffer. Index and shared layouts are chunk-independent.
func checkChunkCapacity[T Real](req *EvalRequest[T]) error {
	if req.ChunkIndex == 0 {
		return nil
	}
	var x xdata.XData[T]
	if models.NeedsAngles(models.ID(req.Model)) {
		set, err := xdata.DecodeAngles[T](req.UserInfo, req.NFits, req.NPoints)
		if err != nil {
			return err
		}
		x = set.X
	} else {
		var err error
		x, err = xdata.Decode[T](req.UserInfo, req.NFits, req.NPoints)
		if err != nil {
			return err
		}
	}
	if x.Layout() != xdata.LayoutPerFit {
		return nil
	}
	need := (req.ChunkIndex + 1) * req.NFits * req.NPoints
	if x.Len() < need {
		return fmt.Errorf("%w: chunk %d needs %d x values, buffer has %d",
			ErrSizeMismatch, req.ChunkIndex, need, x.Len())
	}
	return nil
}

// Package lm fits model functions to batches of independent datasets with
// the Levenberg-Marquardt algorithm. Each fit in a batch is solved
// separately; the batch is spread across a worker pool, one goroutine per
// range of fits, and every fit touches only its own slice of the output,
// so no locks are needed. Accumulation inside one fit is sequential and in
// float64 regardless of the data width, which keeps results identical for
// any worker count.
package lm

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/prevedel-lab/Gpufit/internal/estimator"
	"github.com/prevedel-lab/Gpufit/internal/models"
	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// initialLambda is the starting damping factor of every fit.
const initialLambda = 0.001

// Problem is one validated batch of fits sharing a model, estimator, and
// geometry. Slices are flat and fit-major: Data and Weights hold NFits
// blocks of NPoints, Init holds NFits parameter vectors. Weights may be
// nil. FitMask marks the free parameters; nil frees all of them.
type Problem[T scalar.Real] struct {
	Model     models.Model[T]
	Estimator estimator.Estimator[T]

	NFits   int
	NPoints int

	Data    []T
	Weights []T
	Init    []T
	FitMask []bool

	Tolerance     float64
	MaxIterations int
}

// Output holds one result per fit, fit-major like the inputs. Parameters
// and ChiSquares reflect the last accepted step of each fit.
type Output[T scalar.Real] struct {
	Parameters []T
	States     []FitState
	ChiSquares []T
	Iterations []int32
}

// Engine runs fit batches. The zero value uses one worker per CPU.
type Engine[T scalar.Real] struct {
	// Workers caps the goroutines used per Run; 0 means runtime.NumCPU().
	Workers int
}

// Run solves every fit in the problem and returns the batch output. The
// context is checked between fits; on cancellation the partial output is
// discarded and the context error returned. Inputs are treated as
// read-only and must be pre-validated by the caller.
func (e Engine[T]) Run(ctx context.Context, p *Problem[T]) (*Output[T], error) {
	start := time.Now()
	defer func() { runDuration.Observe(time.Since(start).Seconds()) }()

	np := p.Model.NParameters()
	free := freeIndices(p.FitMask, np)

	out := &Output[T]{
		Parameters: make([]T, p.NFits*np),
		States:     make([]FitState, p.NFits),
		ChiSquares: make([]T, p.NFits),
		Iterations: make([]int32, p.NFits),
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > p.NFits {
		workers = p.NFits
	}
	if workers < 1 {
		workers = 1
	}
	per := (p.NFits + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * per
		hi := lo + per
		if hi > p.NFits {
			hi = p.NFits
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			s := newScratch[T](np, p.NPoints, len(free))
			for fit := lo; fit < hi; fit++ {
				if ctx.Err() != nil {
					return
				}
				e.fitOne(p, fit, free, s, out)
			}
		}(lo, hi)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for fit := 0; fit < p.NFits; fit++ {
		fitsTotal.WithLabelValues(out.States[fit].String()).Inc()
		fitIterations.Observe(float64(out.Iterations[fit]))
	}
	return out, nil
}

// fitOne runs the damped iteration for a single fit and writes its slice
// of the output. Gradient and Hessian are rebuilt only after an accepted
// step; a rejected step reuses them with a larger damping factor.
func (e Engine[T]) fitOne(p *Problem[T], fit int, free []int, s *scratch[T], out *Output[T]) {
	np := p.Model.NParameters()
	copy(s.params, p.Init[fit*np:(fit+1)*np])

	state := MaxIteration
	var iters int32

	chisq, ok := e.evaluate(p, fit, s.params, s.values, s.view, s.gf, s.hf)
	switch {
	case !ok:
		state = NegCurvatureMLE
		chisq = math.NaN()
	case len(free) == 0:
		state = Converged
	default:
		lambda := initialLambda
		stale := true
		for int(iters) < p.MaxIterations {
			iters++
			if stale {
				s.accumulate(free)
				stale = false
			}
			if !s.solve(lambda) {
				state = SingularHessian
				break
			}
			copy(s.trial, s.params)
			for j, k := range free {
				s.trial[k] += T(s.delta.AtVec(j))
			}

			trialChisq, ok := e.evaluate(p, fit, s.trial, s.trialValues, s.trialView, s.gf2, s.hf2)
			if !ok {
				state = NegCurvatureMLE
				break
			}
			if trialChisq < chisq {
				diff := chisq - trialChisq
				s.swap()
				chisq = trialChisq
				lambda *= 0.1
				stale = true
				if diff < p.Tolerance*math.Max(1, math.Abs(trialChisq)) {
					state = Converged
					break
				}
			} else {
				lambda *= 10
			}
		}
	}

	copy(out.Parameters[fit*np:(fit+1)*np], s.params)
	out.States[fit] = state
	out.ChiSquares[fit] = T(chisq)
	out.Iterations[fit] = iters
}

// evaluate computes one fit's model values, derivatives, chi-square, and
// the per-point gradient and Hessian factors at the given parameters. It
// reports false as soon as a model value leaves the estimator's domain.
func (e Engine[T]) evaluate(p *Problem[T], fit int, params, values []T, view models.DerivView[T], gf, hf []float64) (float64, bool) {
	np := p.Model.NParameters()
	base := fit * p.NPoints
	var row [models.MaxParameters]T
	var sum float64
	for pt := 0; pt < p.NPoints; pt++ {
		mv := p.Model.Eval(params, 0, fit, pt, row[:np])
		values[pt] = mv
		view.SetPoint(pt, row[:np])
		if !p.Estimator.CheckModel(mv) {
			return 0, false
		}
		w := T(1)
		if p.Weights != nil {
			w = p.Weights[base+pt]
		}
		chi, g, h := p.Estimator.PointTerms(p.Data[base+pt], mv, w)
		sum += float64(chi)
		gf[pt] = float64(g)
		hf[pt] = float64(h)
	}
	pointsEvaluated.Add(float64(p.NPoints))
	return sum, true
}

// scratch holds one worker's per-fit buffers. The trial set mirrors the
// current set; swap exchanges them after an accepted step.
type scratch[T scalar.Real] struct {
	params, trial       []T
	values, trialValues []T
	derivs, trialDerivs []T
	view, trialView     models.DerivView[T]

	gf, hf, gf2, hf2 []float64

	rows      [][]float64
	scaledRow []float64
	hBase     *mat.SymDense
	damped    *mat.SymDense
	grad      *mat.VecDense
	delta     *mat.VecDense

	nPoints int
}

func newScratch[T scalar.Real](np, nPoints, nFree int) *scratch[T] {
	s := &scratch[T]{
		params:      make([]T, np),
		trial:       make([]T, np),
		values:      make([]T, nPoints),
		trialValues: make([]T, nPoints),
		derivs:      make([]T, np*nPoints),
		trialDerivs: make([]T, np*nPoints),
		gf:          make([]float64, nPoints),
		hf:          make([]float64, nPoints),
		gf2:         make([]float64, nPoints),
		hf2:         make([]float64, nPoints),
		nPoints:     nPoints,
	}
	s.view = models.NewDerivView(s.derivs, np, nPoints)
	s.trialView = models.NewDerivView(s.trialDerivs, np, nPoints)
	if nFree > 0 {
		s.rows = make([][]float64, nFree)
		for j := range s.rows {
			s.rows[j] = make([]float64, nPoints)
		}
		s.scaledRow = make([]float64, nPoints)
		s.hBase = mat.NewSymDense(nFree, nil)
		s.damped = mat.NewSymDense(nFree, nil)
		s.grad = mat.NewVecDense(nFree, nil)
		s.delta = mat.NewVecDense(nFree, nil)
	}
	return s
}

func (s *scratch[T]) swap() {
	s.params, s.trial = s.trial, s.params
	s.values, s.trialValues = s.trialValues, s.values
	s.derivs, s.trialDerivs = s.trialDerivs, s.derivs
	s.view, s.trialView = s.trialView, s.view
	s.gf, s.gf2 = s.gf2, s.gf
	s.hf, s.hf2 = s.hf2, s.hf
}

// accumulate builds the free-parameter gradient vector and Hessian from
// the current derivative view and point factors.
func (s *scratch[T]) accumulate(free []int) {
	n := len(free)
	for j, k := range free {
		row := s.rows[j]
		for pt := 0; pt < s.nPoints; pt++ {
			row[pt] = float64(s.view.At(k, pt))
		}
	}
	for j := 0; j < n; j++ {
		s.grad.SetVec(j, floats.Dot(s.rows[j], s.gf))
		floats.MulTo(s.scaledRow, s.rows[j], s.hf)
		for k := j; k < n; k++ {
			s.hBase.SetSym(j, k, floats.Dot(s.scaledRow, s.rows[k]))
		}
	}
}

// solve factors the damped Hessian and solves for the step. Cholesky is
// tried first; if the damped matrix is not positive definite an LU solve
// takes over. Ill-conditioned but finite systems are accepted, exactly
// singular ones are not.
func (s *scratch[T]) solve(lambda float64) bool {
	n := s.grad.Len()
	s.damped.CopySym(s.hBase)
	for j := 0; j < n; j++ {
		s.damped.SetSym(j, j, s.hBase.At(j, j)*(1+lambda))
	}

	var chol mat.Cholesky
	if chol.Factorize(s.damped) {
		if err := chol.SolveVecTo(s.delta, s.grad); err == nil {
			return true
		}
	}

	var lu mat.LU
	lu.Factorize(s.damped)
	err := lu.SolveVecTo(s.delta, false, s.grad)
	if err == nil {
		return true
	}
	var cond mat.Condition
	if errors.As(err, &cond) {
		return !math.IsInf(float64(cond), 0)
	}
	return false
}

func freeIndices(mask []bool, np int) []int {
	if mask == nil {
		idx := make([]int, np)
		for k := range idx {
			idx[k] = k
		}
		return idx
	}
	var idx []int
	for k, freeParam := range mask {
		if freeParam {
			idx = append(idx, k)
		}
	}
	return idx
}

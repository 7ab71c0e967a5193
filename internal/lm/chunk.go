package lm

import (
	"runtime"
	"sync"
	"time"

	"github.com/prevedel-lab/Gpufit/internal/models"
	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// EvaluateChunk runs a bound model over every (fit, point) pair of one
// chunk, in parallel, with no ordering between pairs. Results land in the
// caller-owned buffers: values holds nFits*nPoints model values and derivs
// holds nFits per-fit derivative blocks of nParams*nPoints each. params
// holds one parameter vector per fit. Distinct pairs write disjoint slots,
// so the workers share nothing but read-only inputs; outputs are identical
// for any worker count. The caller guarantees buffer sizes.
func EvaluateChunk[T scalar.Real](m models.Model[T], params []T, chunkIndex, nFits, nPoints int, values, derivs []T, workers int) {
	start := time.Now()
	np := m.NParameters()
	stride := np * nPoints
	total := nFits * nPoints

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}
	per := (total + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * per
		hi := lo + per
		if hi > total {
			hi = total
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			var row [models.MaxParameters]T
			lastFit := -1
			var view models.DerivView[T]
			for u := lo; u < hi; u++ {
				fit := u / nPoints
				point := u - fit*nPoints
				if fit != lastFit {
					view = models.NewDerivView(derivs[fit*stride:(fit+1)*stride], np, nPoints)
					lastFit = fit
				}
				p := params[fit*np : (fit+1)*np]
				values[fit*nPoints+point] = m.Eval(p, chunkIndex, fit, point, row[:np])
				view.SetPoint(point, row[:np])
			}
		}(lo, hi)
	}
	wg.Wait()

	pointsEvaluated.Add(float64(total))
	chunkDuration.Observe(time.Since(start).Seconds())
}

// Package models implements the per-point model functions of the fit
// library. Each model maps a parameter vector and one resolved x value to a
// model value plus the partial derivative of that value with respect to
// every parameter. Kernels are pure functions with no internal state, so
// distinct (fit, point) evaluations can run on any number of goroutines in
// any order.
//
// Buffer decoding happens once per chunk in Prepare; the returned Model
// carries a bound evaluator that only does arithmetic on the hot path.
package models

import (
	"errors"
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
	"github.com/prevedel-lab/Gpufit/internal/xdata"
)

// ID selects a model function. Values match the estimator-facing model
// enumeration and are stable across releases.
type ID int32

const (
	Gauss1D             ID = 0
	Linear1D            ID = 5
	DampedCosine1D      ID = 10
	AngularLorentzian1D ID = 11
)

// MaxParameters is the largest parameter count over all models, usable to
// size per-worker derivative scratch.
const MaxParameters = 4

// ErrUnknownModel reports a model id with no registered implementation.
var ErrUnknownModel = errors.New("unknown model id")

// Info describes a registered model.
type Info struct {
	Name        string
	NParameters int
}

var registry = map[ID]Info{
	Gauss1D:             {Name: "gauss_1d", NParameters: 4},
	Linear1D:            {Name: "linear_1d", NParameters: 2},
	DampedCosine1D:      {Name: "damped_cosine_1d", NParameters: 4},
	AngularLorentzian1D: {Name: "angular_lorentzian_1d", NParameters: 4},
}

// NeedsAngles reports whether the model's user info buffer starts with an
// angle header.
func NeedsAngles(id ID) bool { return id == AngularLorentzian1D }

// Lookup returns the metadata for a model id.
func Lookup(id ID) (Info, error) {
	info, ok := registry[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %d", ErrUnknownModel, id)
	}
	return info, nil
}

func (id ID) String() string {
	if info, ok := registry[id]; ok {
		return info.Name
	}
	return fmt.Sprintf("model(%d)", int32(id))
}

// Model is a model function bound to one chunk geometry: its side-channel
// buffer has been decoded and validated, so Eval cannot fail.
type Model[T scalar.Real] struct {
	id   ID
	info Info
	eval func(p []T, chunk, fit, point int, deriv []T) T
}

// Prepare validates and decodes the user info buffer for the given model
// and chunk geometry, returning a bound evaluator. All layout errors
// surface here, before any parallel work is dispatched.
func Prepare[T scalar.Real](id ID, userInfo []byte, nFits, nPoints int) (Model[T], error) {
	info, err := Lookup(id)
	if err != nil {
		return Model[T]{}, err
	}
	m := Model[T]{id: id, info: info}

	if id == AngularLorentzian1D {
		set, err := xdata.DecodeAngles[T](userInfo, nFits, nPoints)
		if err != nil {
			return Model[T]{}, err
		}
		m.eval = func(p []T, chunk, fit, point int, deriv []T) T {
			return angularLorentzian(p, set.X.At(chunk, fit, point), set.Geometric, set.SinHalf, deriv)
		}
		return m, nil
	}

	x, err := xdata.Decode[T](userInfo, nFits, nPoints)
	if err != nil {
		return Model[T]{}, err
	}
	kernel := pointKernel[T](id)
	m.eval = func(p []T, chunk, fit, point int, deriv []T) T {
		return kernel(p, x.At(chunk, fit, point), deriv)
	}
	return m, nil
}

func pointKernel[T scalar.Real](id ID) func(p []T, x T, deriv []T) T {
	switch id {
	case Gauss1D:
		return gauss1D[T]
	case Linear1D:
		return linear1D[T]
	case DampedCosine1D:
		return dampedCosine[T]
	}
	// Lookup already rejected unregistered ids.
	return nil
}

// ID returns the bound model id.
func (m Model[T]) ID() ID { return m.id }

// Name returns the registered model name.
func (m Model[T]) Name() string { return m.info.Name }

// NParameters returns the model's parameter count.
func (m Model[T]) NParameters() int { return m.info.NParameters }

// Eval computes the model value at one (chunk, fit, point) coordinate and
// writes one partial derivative per parameter into deriv, which must have
// at least NParameters elements. Every derivative slot is written on every
// call. Eval is safe for concurrent use as long as concurrent callers pass
// distinct deriv slices.
func (m Model[T]) Eval(p []T, chunk, fit, point int, deriv []T) T {
	return m.eval(p, chunk, fit, point, deriv)
}

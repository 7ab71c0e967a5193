package models

import (
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// DerivView is a (parameter, point) view over one fit's flat derivative
// buffer, which stores parameter-major rows of nPoints values. It replaces
// manual stride arithmetic at call sites; dimensions are checked once at
// construction.
type DerivView[T scalar.Real] struct {
	buf     []T
	nParams int
	nPoints int
}

// NewDerivView wraps buf, which must hold exactly nParams*nPoints values.
// Dimension mismatches are programmer errors and panic.
func NewDerivView[T scalar.Real](buf []T, nParams, nPoints int) DerivView[T] {
	if nParams <= 0 || nPoints <= 0 {
		panic(fmt.Sprintf("models: non-positive deriv view dimensions %dx%d", nParams, nPoints))
	}
	if len(buf) != nParams*nPoints {
		panic(fmt.Sprintf("models: deriv buffer has %d values, view needs %dx%d", len(buf), nParams, nPoints))
	}
	return DerivView[T]{buf: buf, nParams: nParams, nPoints: nPoints}
}

// NParams returns the parameter dimension.
func (v DerivView[T]) NParams() int { return v.nParams }

// NPoints returns the point dimension.
func (v DerivView[T]) NPoints() int { return v.nPoints }

// At returns the derivative of the model value at point with respect to
// parameter param.
func (v DerivView[T]) At(param, point int) T {
	return v.buf[param*v.nPoints+point]
}

// Set stores the derivative for (param, point).
func (v DerivView[T]) Set(param, point int, d T) {
	v.buf[param*v.nPoints+point] = d
}

// SetPoint scatters one point's derivative row, one value per parameter.
func (v DerivView[T]) SetPoint(point int, row []T) {
	for k := 0; k < v.nParams; k++ {
		v.buf[k*v.nPoints+point] = row[k]
	}
}

// Raw returns the underlying parameter-major buffer.
func (v DerivView[T]) Raw() []T { return v.buf }

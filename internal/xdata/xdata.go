// Package xdata decodes the independent-variable side channel that model
// functions consume. On the wire the channel is an untyped byte buffer whose
// size alone selects one of three layouts; this package resolves that choice
// once per chunk into a tagged, typed view, so the per-point hot path never
// re-inspects buffer sizes. Buffers whose size matches no layout are
// rejected here with a typed error instead of being silently reinterpreted.
package xdata

import (
	"errors"
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

var (
	// ErrUserInfoSize reports a buffer whose byte size selects none of the
	// three x layouts for the given fit dimensions.
	ErrUserInfoSize = errors.New("user info size matches no x data layout")

	// ErrShape reports non-positive fit dimensions.
	ErrShape = errors.New("fit dimensions must be positive")
)

// Layout discriminates how x values are stored.
type Layout int

const (
	// LayoutIndex: no buffer was supplied; x is the point index.
	LayoutIndex Layout = iota

	// LayoutShared: one x sequence of length nPoints, shared by every fit.
	LayoutShared

	// LayoutPerFit: one x sequence per fit, concatenated fit-major and,
	// across chunks, chunk-major.
	LayoutPerFit
)

func (l Layout) String() string {
	switch l {
	case LayoutIndex:
		return "index"
	case LayoutShared:
		return "shared"
	case LayoutPerFit:
		return "per-fit"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// XData is the decoded view of the x side channel for one chunk geometry.
// It is read-only and safe for unlimited concurrent readers.
type XData[T scalar.Real] struct {
	layout  Layout
	xs      []T
	nFits   int
	nPoints int
}

// Decode resolves a raw buffer against the chunk geometry. The rule is
// ordered, first match wins:
//
//	empty buffer                  -> LayoutIndex
//	nPoints reals                 -> LayoutShared
//	at least nFits*nPoints reals  -> LayoutPerFit
//
// Every other size is an error: a buffer that is neither empty nor a whole
// number of reals, fewer reals than points, or more than one sequence but
// not enough for every fit.
func Decode[T scalar.Real](buf []byte, nFits, nPoints int) (XData[T], error) {
	if nFits <= 0 || nPoints <= 0 {
		return XData[T]{}, fmt.Errorf("%w: n_fits=%d n_points=%d", ErrShape, nFits, nPoints)
	}
	d := XData[T]{layout: LayoutIndex, nFits: nFits, nPoints: nPoints}
	if len(buf) == 0 {
		return d, nil
	}

	w := scalar.Size[T]()
	if len(buf)%w != 0 {
		return XData[T]{}, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte reals", ErrUserInfoSize, len(buf), w)
	}
	n := len(buf) / w

	switch {
	case n == nPoints:
		d.layout = LayoutShared
	case n > nPoints && n >= nFits*nPoints:
		d.layout = LayoutPerFit
	default:
		return XData[T]{}, fmt.Errorf("%w: %d reals for n_fits=%d n_points=%d", ErrUserInfoSize, n, nFits, nPoints)
	}
	d.xs = scalar.FromBytes[T](buf)
	return d, nil
}

// FromSlice builds a view directly from decoded reals, for callers that
// already hold typed data. The same size rule applies.
func FromSlice[T scalar.Real](xs []T, nFits, nPoints int) (XData[T], error) {
	return Decode[T](scalar.AsBytes(xs), nFits, nPoints)
}

// Layout returns the resolved layout tag.
func (d XData[T]) Layout() Layout { return d.layout }

// Len returns the number of decoded reals (0 for LayoutIndex).
func (d XData[T]) Len() int { return len(d.xs) }

// At resolves the x value for one (chunk, fit, point) triple. The fit index
// is chunk-relative; callers addressing fits globally pass chunk 0 and the
// global index, which computes the same flat offset. No bounds are checked
// here beyond the slice access itself.
func (d XData[T]) At(chunk, fit, point int) T {
	switch d.layout {
	case LayoutShared:
		return d.xs[point]
	case LayoutPerFit:
		return d.xs[chunk*d.nFits*d.nPoints+fit*d.nPoints+point]
	default:
		return T(point)
	}
}

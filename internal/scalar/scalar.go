// Package scalar abstracts over the two floating-point widths the fitting
// engine can run at. Every numeric package in this module is generic over
// scalar.Real, so the 32- vs 64-bit choice is made once, at instantiation,
// by the caller.
package scalar

import (
	"math"
	"unsafe"
)

// Real is the set of scalar types a fit can be computed in.
type Real interface {
	~float32 | ~float64
}

// Size returns the byte width of T (4 for float32, 8 for float64).
func Size[T Real]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// The transcendental wrappers go through float64 and cast back. For
// T = float64 the casts are no-ops; for T = float32 this matches the
// usual "promote, compute, demote" treatment and keeps both widths on
// the same code path.

func Exp[T Real](x T) T  { return T(math.Exp(float64(x))) }
func Sin[T Real](x T) T  { return T(math.Sin(float64(x))) }
func Cos[T Real](x T) T  { return T(math.Cos(float64(x))) }
func Sqrt[T Real](x T) T { return T(math.Sqrt(float64(x))) }
func Log[T Real](x T) T  { return T(math.Log(float64(x))) }

func Abs[T Real](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

func IsNaN[T Real](x T) bool { return math.IsNaN(float64(x)) }

func IsInf[T Real](x T) bool { return math.IsInf(float64(x), 0) }

// Finite reports whether x is neither NaN nor an infinity.
func Finite[T Real](x T) bool { return !IsNaN(x) && !IsInf(x) }

// FromBytes reinterprets a little-endian byte buffer as a []T without
// copying, in the manner of Arrow's traits casts. Trailing bytes that do
// not fill a whole element are dropped; whether the usable length is
// meaningful is the caller's concern. A misaligned buffer (possible when
// the bytes come from the middle of a decoded payload) falls back to an
// element-wise copy.
func FromBytes[T Real](b []byte) []T {
	w := Size[T]()
	n := len(b) / w
	if n == 0 {
		return nil
	}
	p := unsafe.Pointer(&b[0])
	if uintptr(p)%uintptr(w) == 0 {
		return unsafe.Slice((*T)(p), n)
	}
	out := make([]T, n)
	for i := range out {
		out[i] = fromLE[T](b[i*w:])
	}
	return out
}

// AsBytes is the inverse view: the raw bytes backing a []T.
func AsBytes[T Real](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	w := Size[T]()
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*w)
}

func fromLE[T Real](b []byte) T {
	w := Size[T]()
	var bits uint64
	for i := 0; i < w; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	if w == 4 {
		return T(math.Float32frombits(uint32(bits)))
	}
	return T(math.Float64frombits(bits))
}

package dataio

import (
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// PackReals copies reals into a little-endian byte payload.
func PackReals[T scalar.Real](vals []T) []byte {
	if len(vals) == 0 {
		return nil
	}
	out := make([]byte, len(vals)*scalar.Size[T]())
	copy(out, scalar.AsBytes(vals))
	return out
}

// UnpackReals decodes a little-endian byte payload into reals. The payload
// must hold a whole number of elements.
func UnpackReals[T scalar.Real](b []byte) ([]T, error) {
	if len(b) == 0 {
		return nil, nil
	}
	w := scalar.Size[T]()
	if len(b)%w != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte reals", ErrFormat, len(b), w)
	}
	return scalar.FromBytes[T](b), nil
}

package xdata

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// ErrAngleHeader reports a truncated or inconsistent angle header.
var ErrAngleHeader = errors.New("malformed angle header")

// AngleSet is the decoded side channel of an angle-integrating model. The
// buffer carries an int32 angle count, a geometric correction factor, the
// angles themselves, then optionally x data under the usual size rule.
//
// Supplied angles are doubled half-angles: the kernels only ever need
// sin(angle/2), so that table is precomputed here and the raw angles are
// not retained.
type AngleSet[T scalar.Real] struct {
	Geometric T
	SinHalf   []T
	X         XData[T]
}

// DecodeAngles parses an angle-model buffer for the given chunk geometry.
// The fixed header is 4 bytes of little-endian count plus one real of
// geometric correction. A zero count is allowed; a negative count, a buffer
// shorter than its header promises, or a trailing x region that matches no
// layout are all errors.
func DecodeAngles[T scalar.Real](buf []byte, nFits, nPoints int) (AngleSet[T], error) {
	w := scalar.Size[T]()
	if len(buf) < 4+w {
		return AngleSet[T]{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrAngleHeader, len(buf), 4+w)
	}
	count := int32(binary.LittleEndian.Uint32(buf[:4]))
	if count < 0 {
		return AngleSet[T]{}, fmt.Errorf("%w: negative angle count %d", ErrAngleHeader, count)
	}
	need := 4 + w + int(count)*w
	if len(buf) < need {
		return AngleSet[T]{}, fmt.Errorf("%w: %d bytes short of %d promised by count %d", ErrAngleHeader, len(buf), need, count)
	}

	s := AngleSet[T]{
		Geometric: scalar.FromBytes[T](buf[4 : 4+w])[0],
	}
	angles := scalar.FromBytes[T](buf[4+w : need])
	s.SinHalf = make([]T, len(angles))
	for i, a := range angles {
		s.SinHalf[i] = scalar.Sin(a / 2)
	}

	x, err := Decode[T](buf[need:], nFits, nPoints)
	if err != nil {
		return AngleSet[T]{}, err
	}
	s.X = x
	return s, nil
}

// AppendAngles serializes an angle header in the wire layout DecodeAngles
// expects. It is the inverse used by dataset builders and tests.
func AppendAngles[T scalar.Real](dst []byte, geometric T, angles []T) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(angles)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, scalar.AsBytes([]T{geometric})...)
	return append(dst, scalar.AsBytes(angles)...)
}

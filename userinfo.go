package gpufit

import (
	"github.com/prevedel-lab/Gpufit/internal/scalar"
	"github.com/prevedel-lab/Gpufit/internal/xdata"
)

// XBytes encodes x values for the UserInfo field. Supply NPoints values to
// share one x sequence across all fits, or NFits*NPoints values for one
// sequence per fit. The returned slice aliases xs; do not modify either
// while a call is using it.
func XBytes[T Real](xs []T) []byte {
	return scalar.AsBytes(xs)
}

// AngleInfo encodes the side channel of an angle-integrating model: the
// angle count, the geometric correction applied to the shift parameter,
// the angles themselves (as doubled half-angles), and optionally x data
// under the same rules as XBytes. Pass nil xs to use point indices as x.
func AngleInfo[T Real](geometric T, angles, xs []T) []byte {
	buf := xdata.AppendAngles(nil, geometric, angles)
	return append(buf, scalar.AsBytes(xs)...)
}

package xdata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

func TestDecodeIndexLayout(t *testing.T) {
	d, err := Decode[float64](nil, 4, 5)
	require.NoError(t, err)
	require.Equal(t, LayoutIndex, d.Layout())
	require.Equal(t, 0, d.Len())

	for point := 0; point < 5; point++ {
		require.Equal(t, float64(point), d.At(0, 3, point))
	}
	// Chunk and fit indices are irrelevant without a buffer.
	require.Equal(t, 2.0, d.At(7, 1, 2))
}

func TestDecodeSharedLayout(t *testing.T) {
	xs := []float64{-1.5, 0, 2.5}
	d, err := FromSlice(xs, 4, 3)
	require.NoError(t, err)
	require.Equal(t, LayoutShared, d.Layout())

	for fit := 0; fit < 4; fit++ {
		for point, want := range xs {
			require.Equal(t, want, d.At(0, fit, point))
		}
	}
}

func TestDecodeSharedWinsForSingleFit(t *testing.T) {
	// With one fit per chunk the shared and per-fit sizes coincide; the
	// ordered rule resolves to shared.
	d, err := FromSlice([]float64{1, 2, 3}, 1, 3)
	require.NoError(t, err)
	require.Equal(t, LayoutShared, d.Layout())
	require.Equal(t, 2.0, d.At(0, 0, 1))
}

func TestDecodePerFitLayout(t *testing.T) {
	// Two chunks of two fits with three points each, values encoding their
	// own flat position.
	xs := make([]float64, 2*2*3)
	for i := range xs {
		xs[i] = float64(10 + i)
	}
	d, err := FromSlice(xs, 2, 3)
	require.NoError(t, err)
	require.Equal(t, LayoutPerFit, d.Layout())
	require.Equal(t, 12, d.Len())

	require.Equal(t, xs[0], d.At(0, 0, 0))
	require.Equal(t, xs[5], d.At(0, 1, 2))
	require.Equal(t, xs[6], d.At(1, 0, 0))
	require.Equal(t, xs[11], d.At(1, 1, 2))
}

func TestDecodeFloat32(t *testing.T) {
	xs := []float32{0.5, 1.5, 2.5}
	d, err := FromSlice(xs, 2, 3)
	require.NoError(t, err)
	require.Equal(t, LayoutShared, d.Layout())
	require.Equal(t, float32(1.5), d.At(0, 1, 1))
}

func TestDecodeRejects(t *testing.T) {
	w := scalar.Size[float64]()
	cases := []struct {
		name    string
		bytes   int
		nFits   int
		nPoints int
		want    error
	}{
		{"fractional real", 3*w + 1, 2, 3, ErrUserInfoSize},
		{"fewer reals than points", 2 * w, 2, 3, ErrUserInfoSize},
		{"between shared and per-fit", 4 * w, 2, 3, ErrUserInfoSize},
		{"zero fits", 3 * w, 0, 3, ErrShape},
		{"negative points", 0, 2, -1, ErrShape},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode[float64](make([]byte, tc.bytes), tc.nFits, tc.nPoints)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecodeAngles(t *testing.T) {
	angles := []float64{math.Pi, math.Pi / 2}
	buf := AppendAngles(nil, 1.25, angles)

	s, err := DecodeAngles[float64](buf, 2, 3)
	require.NoError(t, err)
	require.Equal(t, 1.25, s.Geometric)
	require.Len(t, s.SinHalf, 2)
	require.InDelta(t, 1.0, s.SinHalf[0], 1e-15)
	require.InDelta(t, math.Sqrt2/2, s.SinHalf[1], 1e-15)
	require.Equal(t, LayoutIndex, s.X.Layout())
}

func TestDecodeAnglesWithTrailingX(t *testing.T) {
	xs := []float64{4, 5, 6}
	buf := AppendAngles(nil, 1.0, []float64{math.Pi})
	buf = append(buf, scalar.AsBytes(xs)...)

	s, err := DecodeAngles[float64](buf, 2, 3)
	require.NoError(t, err)
	require.Equal(t, LayoutShared, s.X.Layout())
	require.Equal(t, 5.0, s.X.At(0, 1, 1))

	// Per-fit trailer for the same geometry.
	perFit := make([]float64, 2*3)
	for i := range perFit {
		perFit[i] = float64(i)
	}
	buf = AppendAngles(nil, 1.0, []float64{math.Pi})
	buf = append(buf, scalar.AsBytes(perFit)...)

	s, err = DecodeAngles[float64](buf, 2, 3)
	require.NoError(t, err)
	require.Equal(t, LayoutPerFit, s.X.Layout())
	require.Equal(t, 4.0, s.X.At(0, 1, 1))
}

func TestDecodeAnglesZeroCount(t *testing.T) {
	buf := AppendAngles(nil, 2.0, nil)
	s, err := DecodeAngles[float64](buf, 1, 4)
	require.NoError(t, err)
	require.Equal(t, 2.0, s.Geometric)
	require.Empty(t, s.SinHalf)
	require.Equal(t, LayoutIndex, s.X.Layout())
}

func TestDecodeAnglesFloat32(t *testing.T) {
	buf := AppendAngles[float32](nil, 0.5, []float32{float32(math.Pi)})
	s, err := DecodeAngles[float32](buf, 1, 2)
	require.NoError(t, err)
	require.Equal(t, float32(0.5), s.Geometric)
	require.InDelta(t, 1.0, float64(s.SinHalf[0]), 1e-6)
}

func TestDecodeAnglesRejects(t *testing.T) {
	w := scalar.Size[float64]()

	t.Run("short header", func(t *testing.T) {
		_, err := DecodeAngles[float64](make([]byte, 4+w-1), 1, 3)
		require.ErrorIs(t, err, ErrAngleHeader)
	})

	t.Run("negative count", func(t *testing.T) {
		buf := AppendAngles(nil, 1.0, []float64{1})
		buf[3] = 0xFF
		_, err := DecodeAngles[float64](buf, 1, 3)
		require.ErrorIs(t, err, ErrAngleHeader)
	})

	t.Run("count exceeds buffer", func(t *testing.T) {
		buf := AppendAngles(nil, 1.0, []float64{1, 2})
		_, err := DecodeAngles[float64](buf[:len(buf)-1], 1, 3)
		require.ErrorIs(t, err, ErrAngleHeader)
	})

	t.Run("malformed trailer", func(t *testing.T) {
		buf := AppendAngles(nil, 1.0, []float64{1})
		buf = append(buf, scalar.AsBytes([]float64{7, 8})...) // 2 reals, need 3 or 0
		_, err := DecodeAngles[float64](buf, 1, 3)
		require.ErrorIs(t, err, ErrUserInfoSize)
	})
}

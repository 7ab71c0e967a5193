package gpufit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	gpufit "github.com/prevedel-lab/Gpufit"
)

func TestEvaluateLinearIndexLayout(t *testing.T) {
	res, err := gpufit.Evaluate(&gpufit.EvalRequest[float64]{
		Model:      gpufit.ModelLinear1D,
		NFits:      2,
		NPoints:    4,
		Parameters: []float64{1, 2, -1, 0.5},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.NParameters)

	// Without x data the point index is x: fit 0 is 1+2*i, fit 1 is
	// -1+0.5*i.
	require.Equal(t, []float64{1, 3, 5, 7}, res.ValuesFor(0))
	require.Equal(t, []float64{-1, -0.5, 0, 0.5}, res.ValuesFor(1))

	for fit := 0; fit < 2; fit++ {
		for pt := 0; pt < 4; pt++ {
			require.Equal(t, 1.0, res.Derivative(fit, 0, pt))
			require.Equal(t, float64(pt), res.Derivative(fit, 1, pt))
		}
	}
}

func TestEvaluateAngularOnPeak(t *testing.T) {
	res, err := gpufit.Evaluate(&gpufit.EvalRequest[float64]{
		Model:      gpufit.ModelAngularLorentzian1D,
		NFits:      1,
		NPoints:    1,
		Parameters: []float64{1, 0, 1, 0},
		UserInfo:   gpufit.AngleInfo(1.0, []float64{math.Pi}, nil),
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, res.Values[0])
	require.Equal(t, 1.0, res.Derivative(0, 0, 0))
	require.Equal(t, 1.0, res.Derivative(0, 3, 0))
}

func TestEvaluateChunkAddressing(t *testing.T) {
	// A per-fit buffer holding two chunks of x data. Chunk 1 must read the
	// second block; an identity line makes that directly observable.
	xs := []float64{0, 1, 2, 3, 10, 11, 12, 13}
	req := &gpufit.EvalRequest[float64]{
		Model:      gpufit.ModelLinear1D,
		NFits:      2,
		NPoints:    2,
		ChunkIndex: 1,
		Parameters: []float64{0, 1, 0, 1},
		UserInfo:   gpufit.XBytes(xs),
	}

	res, err := gpufit.Evaluate(req)
	require.NoError(t, err)
	require.Equal(t, []float64{10, 11}, res.ValuesFor(0))
	require.Equal(t, []float64{12, 13}, res.ValuesFor(1))

	// One chunk past the end of the buffer is rejected up front.
	req.ChunkIndex = 2
	_, err = gpufit.Evaluate(req)
	require.ErrorIs(t, err, gpufit.ErrSizeMismatch)
}

func TestEvaluateValidation(t *testing.T) {
	good := func() *gpufit.EvalRequest[float64] {
		return &gpufit.EvalRequest[float64]{
			Model:      gpufit.ModelGauss1D,
			NFits:      1,
			NPoints:    3,
			Parameters: []float64{1, 1, 1, 0},
		}
	}

	req := good()
	req.Model = gpufit.ModelID(50)
	_, err := gpufit.Evaluate(req)
	require.ErrorIs(t, err, gpufit.ErrUnknownModel)

	req = good()
	req.Parameters = req.Parameters[:3]
	_, err = gpufit.Evaluate(req)
	require.ErrorIs(t, err, gpufit.ErrSizeMismatch)

	req = good()
	req.ChunkIndex = -1
	_, err = gpufit.Evaluate(req)
	require.ErrorIs(t, err, gpufit.ErrBadArgument)

	req = good()
	req.NPoints = 0
	_, err = gpufit.Evaluate(req)
	require.ErrorIs(t, err, gpufit.ErrBadArgument)
}

package dataio

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	gpufit "github.com/prevedel-lab/Gpufit"
	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// WriteResults writes a fit batch outcome as a one-batch Arrow IPC stream:
// a parameters fixed-size list, int32 state and iteration columns, and a
// chi-square column, one row per fit. Schema metadata records the model and
// estimator ids.
func WriteResults[T scalar.Real](w io.Writer, model gpufit.ModelID, estimator gpufit.EstimatorID, res *gpufit.FitResult[T]) error {
	nFits := res.NFits()

	params, err := fslColumn(res.Parameters, res.NParameters, nFits)
	if err != nil {
		return fmt.Errorf("column %q: %w", "parameters", err)
	}
	defer params.Release()

	states := make([]int32, nFits)
	for i, s := range res.States {
		states[i] = int32(s)
	}
	stateCol := int32Column(states)
	defer stateCol.Release()

	chiCol := realColumn(res.ChiSquares)
	defer chiCol.Release()

	iterCol := int32Column(res.Iterations)
	defer iterCol.Release()

	md := arrow.NewMetadata(
		[]string{"model", "estimator"},
		[]string{strconv.Itoa(int(model)), strconv.Itoa(int(estimator))},
	)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "parameters", Type: params.DataType()},
		{Name: "state", Type: arrow.PrimitiveTypes.Int32},
		{Name: "chi_square", Type: arrowType[T]()},
		{Name: "iterations", Type: arrow.PrimitiveTypes.Int32},
	}, &md)
	return writeStream(w, schema, []arrow.Array{params, stateCol, chiCol, iterCol}, int64(nFits))
}

// ReadResults reads a file written by WriteResults.
func ReadResults[T scalar.Real](r io.Reader) (*gpufit.FitResult[T], gpufit.ModelID, gpufit.EstimatorID, error) {
	rec, done, err := readStream(r)
	if err != nil {
		return nil, 0, 0, err
	}
	defer done()

	res := &gpufit.FitResult[T]{}

	params, np, ok, err := fslValues[T](rec, "parameters")
	if err != nil {
		return nil, 0, 0, err
	}
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: missing column %q", ErrFormat, "parameters")
	}
	res.Parameters = params
	res.NParameters = np

	states, err := int32Values(rec, "state")
	if err != nil {
		return nil, 0, 0, err
	}
	res.States = make([]gpufit.FitState, len(states))
	for i, s := range states {
		res.States[i] = gpufit.FitState(s)
	}

	chiIdx := rec.Schema().FieldIndices("chi_square")
	if len(chiIdx) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: missing column %q", ErrFormat, "chi_square")
	}
	if res.ChiSquares, err = realValues[T](rec.Column(chiIdx[0])); err != nil {
		return nil, 0, 0, fmt.Errorf("column %q: %w", "chi_square", err)
	}

	if res.Iterations, err = int32Values(rec, "iterations"); err != nil {
		return nil, 0, 0, err
	}

	md := rec.Schema().Metadata()
	model, err := strconv.Atoi(metadataValue(md, "model"))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: bad model id: %v", ErrFormat, err)
	}
	estimator, err := strconv.Atoi(metadataValue(md, "estimator"))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: bad estimator id: %v", ErrFormat, err)
	}
	return res, gpufit.ModelID(model), gpufit.EstimatorID(estimator), nil
}

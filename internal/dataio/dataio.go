// Package dataio moves fit batches and results between memory and files.
// Datasets and results travel as Arrow IPC streams whose per-fit columns
// are fixed-size lists, one row per fit, with real values written
// zero-copy. Self-contained jobs travel as CBOR documents carrying the fit
// configuration plus little-endian real payloads.
package dataio

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

var (
	// ErrPrecision reports a file whose real width disagrees with the
	// caller's type parameter.
	ErrPrecision = errors.New("real width mismatch")

	// ErrFormat reports a structurally invalid dataset or results file.
	ErrFormat = errors.New("malformed file")
)

func arrowType[T scalar.Real]() arrow.DataType {
	if scalar.Size[T]() == 4 {
		return arrow.PrimitiveTypes.Float32
	}
	return arrow.PrimitiveTypes.Float64
}

// realColumn wraps a flat real slice as an Arrow array without copying.
// The slice must stay alive until the surrounding record is written.
func realColumn[T scalar.Real](flat []T) arrow.Array {
	buf := memory.NewBufferBytes(scalar.AsBytes(flat))
	data := array.NewData(arrowType[T](), len(flat), []*memory.Buffer{nil, buf}, nil, 0, 0)
	defer data.Release()
	return array.MakeFromData(data)
}

// fslColumn wraps a flat real slice as a fixed-size-list column of rows
// lists with listLen values each, zero-copy like realColumn.
func fslColumn[T scalar.Real](flat []T, listLen, rows int) (arrow.Array, error) {
	if listLen*rows != len(flat) {
		return nil, fmt.Errorf("%w: %d values cannot fill %d lists of %d", ErrFormat, len(flat), rows, listLen)
	}
	buf := memory.NewBufferBytes(scalar.AsBytes(flat))
	values := array.NewData(arrowType[T](), len(flat), []*memory.Buffer{nil, buf}, nil, 0, 0)
	defer values.Release()

	fslType := arrow.FixedSizeListOf(int32(listLen), arrowType[T]())
	fsl := array.NewData(fslType, rows, []*memory.Buffer{nil}, []arrow.ArrayData{values}, 0, 0)
	defer fsl.Release()
	return array.NewFixedSizeListData(fsl), nil
}

// realValues copies a real column out of a record, enforcing that the file
// width matches T.
func realValues[T scalar.Real](a arrow.Array) ([]T, error) {
	switch v := a.(type) {
	case *array.Float32:
		if scalar.Size[T]() != 4 {
			return nil, fmt.Errorf("%w: file carries float32, caller wants float64", ErrPrecision)
		}
		src := v.Float32Values()
		out := make([]T, len(src))
		for i, x := range src {
			out[i] = T(x)
		}
		return out, nil
	case *array.Float64:
		if scalar.Size[T]() != 8 {
			return nil, fmt.Errorf("%w: file carries float64, caller wants float32", ErrPrecision)
		}
		src := v.Float64Values()
		out := make([]T, len(src))
		for i, x := range src {
			out[i] = T(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unexpected column type %s", ErrFormat, a.DataType())
}

// fslValues extracts a fixed-size-list column by name, returning the flat
// values and the list length. A missing column returns ok false.
func fslValues[T scalar.Real](rec arrow.RecordBatch, name string) (vals []T, listLen int, ok bool, err error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, 0, false, nil
	}
	fsl, isFSL := rec.Column(indices[0]).(*array.FixedSizeList)
	if !isFSL {
		return nil, 0, false, fmt.Errorf("%w: column %q is not a fixed-size list", ErrFormat, name)
	}
	vals, err = realValues[T](fsl.ListValues())
	if err != nil {
		return nil, 0, false, fmt.Errorf("column %q: %w", name, err)
	}
	return vals, int(fsl.DataType().(*arrow.FixedSizeListType).Len()), true, nil
}

func int32Values(rec arrow.RecordBatch, name string) ([]int32, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: missing column %q", ErrFormat, name)
	}
	col, ok := rec.Column(indices[0]).(*array.Int32)
	if !ok {
		return nil, fmt.Errorf("%w: column %q is not int32", ErrFormat, name)
	}
	out := make([]int32, col.Len())
	copy(out, col.Int32Values())
	return out, nil
}

func int32Column(vals []int32) arrow.Array {
	b := array.NewInt32Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewArray()
}

// writeStream writes one record batch as an Arrow IPC stream.
func writeStream(w io.Writer, schema *arrow.Schema, cols []arrow.Array, rows int64) error {
	rec := array.NewRecordBatch(schema, cols, rows)
	defer rec.Release()

	wr := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return err
	}
	return wr.Close()
}

// readStream reads the first record batch of an Arrow IPC stream. The
// returned release func frees the batch and the reader.
func readStream(r io.Reader) (arrow.RecordBatch, func(), error) {
	rd, err := ipc.NewReader(r, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, nil, err
	}
	if !rd.Next() {
		err := rd.Err()
		rd.Release()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}
	rec := rd.Record()
	rec.Retain()
	return rec, func() { rec.Release(); rd.Release() }, nil
}

// metadataValue finds a schema metadata entry, or "" when absent.
func metadataValue(md arrow.Metadata, key string) string {
	idx := md.FindKey(key)
	if idx < 0 {
		return ""
	}
	return md.Values()[idx]
}

package dataio

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	gpufit "github.com/prevedel-lab/Gpufit"
	"github.com/prevedel-lab/Gpufit/internal/scalar"
	"github.com/prevedel-lab/Gpufit/internal/xdata"
)

// Dataset is a batch of fits plus the optional sidecar blocks a fit can
// carry. X may be empty (point indices serve as coordinates), hold NPoints
// values shared across fits, or hold NFits*NPoints per-fit values. Angles
// and Geometric feed models that integrate over detection angles.
type Dataset[T scalar.Real] struct {
	NFits   int
	NPoints int

	Data      []T // NFits*NPoints values, fit-major
	Weights   []T // optional, same shape as Data
	X         []T // optional coordinates, shared or per-fit
	Angles    []T // optional detection angles
	Geometric T   // geometric correction factor, used with Angles
}

// UserInfo packs the dataset's coordinate and angle blocks into the auxiliary
// buffer a fit request carries.
func (d *Dataset[T]) UserInfo() []byte {
	if len(d.Angles) > 0 {
		return gpufit.AngleInfo(d.Geometric, d.Angles, d.X)
	}
	return gpufit.XBytes(d.X)
}

func (d *Dataset[T]) xLayout() (xdata.Layout, error) {
	switch len(d.X) {
	case 0:
		return xdata.LayoutIndex, nil
	case d.NPoints:
		return xdata.LayoutShared, nil
	case d.NFits * d.NPoints:
		return xdata.LayoutPerFit, nil
	}
	return 0, fmt.Errorf("%w: %d x values for %d fits of %d points", ErrFormat, len(d.X), d.NFits, d.NPoints)
}

// WriteDataset writes the dataset as a one-batch Arrow IPC stream. Every
// column holds one fixed-size list per fit; shared x and angle blocks are
// replicated across rows so each row stays self-describing, and schema
// metadata records the x layout and geometric factor.
func WriteDataset[T scalar.Real](w io.Writer, d *Dataset[T]) error {
	if d.NFits < 1 || d.NPoints < 1 {
		return fmt.Errorf("%w: %d fits of %d points", ErrFormat, d.NFits, d.NPoints)
	}
	layout, err := d.xLayout()
	if err != nil {
		return err
	}

	fields := make([]arrow.Field, 0, 4)
	cols := make([]arrow.Array, 0, 4)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	keys := []string{"x_layout"}
	vals := []string{layout.String()}

	addFSL := func(name string, flat []T, listLen int) error {
		col, err := fslColumn(flat, listLen, d.NFits)
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		fields = append(fields, arrow.Field{Name: name, Type: col.DataType()})
		cols = append(cols, col)
		return nil
	}

	indices := make([]int32, d.NFits)
	for i := range indices {
		indices[i] = int32(i)
	}
	idxCol := int32Column(indices)
	fields = append(fields, arrow.Field{Name: "fit_index", Type: arrow.PrimitiveTypes.Int32})
	cols = append(cols, idxCol)

	if err := addFSL("data", d.Data, d.NPoints); err != nil {
		return err
	}
	if len(d.Weights) > 0 {
		if err := addFSL("weights", d.Weights, d.NPoints); err != nil {
			return err
		}
	}
	if layout != xdata.LayoutIndex {
		if err := addFSL("x", replicate(d.X, layout, d.NFits), d.NPoints); err != nil {
			return err
		}
	}
	if len(d.Angles) > 0 {
		if err := addFSL("angles", replicate(d.Angles, xdata.LayoutShared, d.NFits), len(d.Angles)); err != nil {
			return err
		}
		keys = append(keys, "geometric")
		vals = append(vals, strconv.FormatFloat(float64(d.Geometric), 'g', -1, 64))
	}

	md := arrow.NewMetadata(keys, vals)
	schema := arrow.NewSchema(fields, &md)
	return writeStream(w, schema, cols, int64(d.NFits))
}

// replicate duplicates a shared block once per fit so it can fill a
// fixed-size-list column. Per-fit blocks pass through unchanged.
func replicate[T scalar.Real](block []T, layout xdata.Layout, nFits int) []T {
	if layout == xdata.LayoutPerFit {
		return block
	}
	out := make([]T, 0, len(block)*nFits)
	for i := 0; i < nFits; i++ {
		out = append(out, block...)
	}
	return out
}

// ReadDataset reads a dataset written by WriteDataset, collapsing replicated
// shared blocks back to a single copy.
func ReadDataset[T scalar.Real](r io.Reader) (*Dataset[T], error) {
	rec, done, err := readStream(r)
	if err != nil {
		return nil, err
	}
	defer done()

	d := &Dataset[T]{NFits: int(rec.NumRows())}

	data, nPoints, ok, err := fslValues[T](rec, "data")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing column %q", ErrFormat, "data")
	}
	d.Data = data
	d.NPoints = nPoints

	if weights, _, ok, err := fslValues[T](rec, "weights"); err != nil {
		return nil, err
	} else if ok {
		d.Weights = weights
	}

	md := rec.Schema().Metadata()
	if xs, _, ok, err := fslValues[T](rec, "x"); err != nil {
		return nil, err
	} else if ok {
		switch metadataValue(md, "x_layout") {
		case xdata.LayoutPerFit.String():
			d.X = xs
		default:
			d.X = xs[:d.NPoints]
		}
	}

	if angles, anglesLen, ok, err := fslValues[T](rec, "angles"); err != nil {
		return nil, err
	} else if ok {
		d.Angles = angles[:anglesLen]
		g, err := strconv.ParseFloat(metadataValue(md, "geometric"), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad geometric factor: %v", ErrFormat, err)
		}
		d.Geometric = T(g)
	}
	return d, nil
}

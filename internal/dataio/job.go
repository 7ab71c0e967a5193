package dataio

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	gpufit "github.com/prevedel-lab/Gpufit"
	"github.com/prevedel-lab/Gpufit/internal/scalar"
)

// Job is a self-contained fit request as a CBOR document. Real payloads
// are little-endian byte strings so one schema serves both precisions;
// the precision field names the width they were packed at.
type Job struct {
	Model     int32  `cbor:"model"`
	Estimator int32  `cbor:"estimator"`
	Precision string `cbor:"precision"` // "fp32" or "fp64"

	NFits   int `cbor:"n_fits"`
	NPoints int `cbor:"n_points"`

	Data              []byte  `cbor:"data"`
	Weights           []byte  `cbor:"weights,omitempty"`
	InitialParameters []byte  `cbor:"initial_parameters"`
	ParametersToFit   []bool  `cbor:"parameters_to_fit,omitempty"`
	UserInfo          []byte  `cbor:"user_info,omitempty"`
	Tolerance         float64 `cbor:"tolerance,omitempty"`
	MaxIterations     int     `cbor:"max_iterations,omitempty"`
}

// RealSize returns the byte width the precision field names.
func (j *Job) RealSize() (int, error) {
	switch j.Precision {
	case "fp32":
		return 4, nil
	case "fp64":
		return 8, nil
	}
	return 0, fmt.Errorf("%w: precision %q", ErrFormat, j.Precision)
}

// ReadJob decodes one CBOR job document.
func ReadJob(r io.Reader) (*Job, error) {
	job := &Job{}
	decoder := cbor.NewDecoder(r)
	if err := decoder.Decode(job); err != nil {
		return nil, err
	}
	return job, nil
}

// WriteJob encodes one CBOR job document.
func WriteJob(w io.Writer, job *Job) error {
	encoder := cbor.NewEncoder(w)
	return encoder.Encode(job)
}

// JobRequest unpacks a job into a typed fit request. T must match the
// job's declared precision; dispatch on RealSize first when the precision
// is not known statically.
func JobRequest[T scalar.Real](job *Job) (*gpufit.FitRequest[T], error) {
	width, err := job.RealSize()
	if err != nil {
		return nil, err
	}
	if width != scalar.Size[T]() {
		return nil, fmt.Errorf("%w: job declares %s", ErrPrecision, job.Precision)
	}

	data, err := UnpackReals[T](job.Data)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", "data", err)
	}
	weights, err := UnpackReals[T](job.Weights)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", "weights", err)
	}
	init, err := UnpackReals[T](job.InitialParameters)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", "initial_parameters", err)
	}

	return &gpufit.FitRequest[T]{
		Model:             gpufit.ModelID(job.Model),
		Estimator:         gpufit.EstimatorID(job.Estimator),
		NFits:             job.NFits,
		NPoints:           job.NPoints,
		Data:              data,
		Weights:           weights,
		InitialParameters: init,
		ParametersToFit:   job.ParametersToFit,
		UserInfo:          job.UserInfo,
		Tolerance:         job.Tolerance,
		MaxIterations:     job.MaxIterations,
	}, nil
}

// JobFromRequest packs a typed fit request into a job document.
func JobFromRequest[T scalar.Real](req *gpufit.FitRequest[T]) *Job {
	precision := "fp64"
	if scalar.Size[T]() == 4 {
		precision = "fp32"
	}
	return &Job{
		Model:             int32(req.Model),
		Estimator:         int32(req.Estimator),
		Precision:         precision,
		NFits:             req.NFits,
		NPoints:           req.NPoints,
		Data:              PackReals(req.Data),
		Weights:           PackReals(req.Weights),
		InitialParameters: PackReals(req.InitialParameters),
		ParametersToFit:   req.ParametersToFit,
		UserInfo:          req.UserInfo,
		Tolerance:         req.Tolerance,
		MaxIterations:     req.MaxIterations,
	}
}

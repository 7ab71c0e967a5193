//go:build ignore

// Generates a synthetic CBOR job file for the fitting CLI, and optionally
// the matching Arrow dataset.
//
//	go run scripts/make_job.go -model gauss_1d -fits 100 -points 32 -out job.cbor
//	gpufit -job job.cbor -out results.arrow

package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	gpufit "github.com/prevedel-lab/Gpufit"
	"github.com/prevedel-lab/Gpufit/internal/dataio"
)

var (
	modelName   = flag.String("model", "gauss_1d", "Model to generate data for (gauss_1d, linear_1d)")
	nFits       = flag.Int("fits", 100, "Fits per batch")
	nPoints     = flag.Int("points", 32, "Points per fit")
	noise       = flag.Float64("noise", 0.05, "Gaussian noise sigma")
	outPath     = flag.String("out", "job.cbor", "Output job file")
	datasetPath = flag.String("dataset", "", "Also write the batch as an Arrow dataset")
)

func main() {
	flag.Parse()

	var model gpufit.ModelID
	var truth, init []float32
	switch *modelName {
	case "gauss_1d":
		model = gpufit.ModelGauss1D
		mid := float32(*nPoints) / 2
		truth = []float32{5, mid, float32(*nPoints) / 8, 1}
		init = []float32{4, mid, float32(*nPoints) / 6, 0.5}
	case "linear_1d":
		model = gpufit.ModelLinear1D
		truth = []float32{1, 2}
		init = []float32{0, 1}
	default:
		fmt.Fprintf(os.Stderr, "unknown model %q\n", *modelName)
		os.Exit(2)
	}

	params := make([]float32, 0, *nFits*len(truth))
	initAll := make([]float32, 0, *nFits*len(init))
	for i := 0; i < *nFits; i++ {
		params = append(params, truth...)
		initAll = append(initAll, init...)
	}

	eval, err := gpufit.Evaluate(&gpufit.EvalRequest[float32]{
		Model:      model,
		NFits:      *nFits,
		NPoints:    *nPoints,
		Parameters: params,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(1))
	data := eval.Values
	for i := range data {
		data[i] += float32(*noise * rng.NormFloat64())
	}

	req := &gpufit.FitRequest[float32]{
		Model:             model,
		Estimator:         gpufit.EstimatorLSE,
		NFits:             *nFits,
		NPoints:           *nPoints,
		Data:              data,
		InitialParameters: initAll,
	}

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := dataio.WriteJob(f, dataio.JobFromRequest(req)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	f.Close()
	fmt.Printf("wrote %s: %s, %d fits of %d points\n", *outPath, *modelName, *nFits, *nPoints)

	if *datasetPath != "" {
		df, err := os.Create(*datasetPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		err = dataio.WriteDataset(df, &dataio.Dataset[float32]{
			NFits:   *nFits,
			NPoints: *nPoints,
			Data:    data,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		df.Close()
		fmt.Printf("wrote %s\n", *datasetPath)
	}
}

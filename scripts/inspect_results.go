//go:build ignore

// Prints a summary of an Arrow results file written by the fitting CLI.
//
//	go run scripts/inspect_results.go -in results.arrow -rows 5

package main

import (
	"flag"
	"fmt"
	"os"

	gpufit "github.com/prevedel-lab/Gpufit"
	"github.com/prevedel-lab/Gpufit/internal/dataio"
)

var (
	inPath = flag.String("in", "results.arrow", "Results file to inspect")
	rows   = flag.Int("rows", 5, "Parameter rows to print")
	fp64   = flag.Bool("fp64", false, "Read float64 reals instead of float32")
)

func main() {
	flag.Parse()

	f, err := os.Open(*inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	if *fp64 {
		summarize(dataio.ReadResults[float64](f))
	} else {
		summarize(dataio.ReadResults[float32](f))
	}
}

func summarize[T gpufit.Real](res *gpufit.FitResult[T], model gpufit.ModelID, est gpufit.EstimatorID, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("model=%s estimator=%s fits=%d parameters=%d\n", model, est, res.NFits(), res.NParameters)
	for state, n := range res.StateCounts() {
		fmt.Printf("  %-18s %d\n", state, n)
	}

	limit := *rows
	if limit > res.NFits() {
		limit = res.NFits()
	}
	for fit := 0; fit < limit; fit++ {
		fmt.Printf("  fit %d: params=%v chi=%g iters=%d\n",
			fit, res.ParametersFor(fit), res.ChiSquares[fit], res.Iterations[fit])
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"runtime/pprof"
	"sync/atomic"
	"time"

	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"golang.org/x/sync/semaphore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"

	gpufit "github.com/prevedel-lab/Gpufit"
	"github.com/prevedel-lab/Gpufit/internal/dataio"
)

var (
	jobPath       = flag.String("job", "", "Path to a CBOR job file to fit")
	outPath       = flag.String("out", "", "Write Arrow results to this file instead of stdout")
	demoModel     = flag.String("demo", "damped_cosine_1d", "Synthetic model to fit when no job is given (gauss_1d, linear_1d, damped_cosine_1d, angular_lorentzian_1d)")
	fitCount      = flag.Int("fits", 1000, "Synthetic fits per batch")
	pointCount    = flag.Int("points", 64, "Points per synthetic fit")
	noiseSigma    = flag.Float64("noise", 0.05, "Gaussian noise sigma for synthetic data")
	precisionFlag = flag.String("precision", "fp32", "Real width for synthetic batches (fp32, fp64)")
	estimatorFlag = flag.String("estimator", "lse", "Estimator for synthetic batches (lse, mle)")
	soakFor       = flag.Duration("soak", 0, "Repeat the synthetic batch for the given duration (e.g. 30s, 5m)")
	maxConcurrent = flag.Int("max-concurrent", 4, "Maximum in-flight batches in soak mode")
	workerCount   = flag.Int("workers", 0, "Worker goroutines per batch (0 = one per CPU)")
	listenAddr    = flag.String("listen", "", "Serve Prometheus metrics and pprof on this address (e.g. :8080)")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	cpuProfile    = flag.String("cpuprofile", "", "Write cpu profile to file")
)

var tracer = otel.Tracer("gpufit-cli")

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	if *listenAddr != "" {
		go serveMetrics(*listenAddr)
	}

	ctx := context.Background()
	switch {
	case *jobPath != "":
		runJob(ctx)
	case *demoModel != "":
		runDemo(ctx)
	case *listenAddr != "":
		// Metrics-only mode
		select {}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runJob(ctx context.Context) {
	f, err := os.Open(*jobPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open job file")
	}
	job, err := dataio.ReadJob(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode job")
	}
	width, err := job.RealSize()
	if err != nil {
		log.Fatal().Err(err).Msg("Bad job precision")
	}

	log.Info().
		Str("path", *jobPath).
		Str("precision", job.Precision).
		Int("fits", job.NFits).
		Int("points", job.NPoints).
		Msg("Loaded job")

	if width == 4 {
		fitJob[float32](ctx, job)
	} else {
		fitJob[float64](ctx, job)
	}
}

func fitJob[T gpufit.Real](ctx context.Context, job *dataio.Job) {
	req, err := dataio.JobRequest[T](job)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid job")
	}
	runBatch(ctx, req)
}

func runDemo(ctx context.Context) {
	model, err := parseModel(*demoModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown model")
	}
	est, err := parseEstimator(*estimatorFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown estimator")
	}

	switch *precisionFlag {
	case "fp32":
		demoBatch[float32](ctx, model, est)
	case "fp64":
		demoBatch[float64](ctx, model, est)
	default:
		log.Fatal().Str("precision", *precisionFlag).Msg("Unknown precision (want fp32 or fp64)")
	}
}

func demoBatch[T gpufit.Real](ctx context.Context, model gpufit.ModelID, est gpufit.EstimatorID) {
	req, err := syntheticBatch[T](model, est, *fitCount, *pointCount, *noiseSigma)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build synthetic batch")
	}
	if *soakFor > 0 {
		runSoak(ctx, req)
		return
	}
	runBatch(ctx, req)
}

// runBatch fits one batch, logs a summary, and writes the Arrow results.
func runBatch[T gpufit.Real](ctx context.Context, req *gpufit.FitRequest[T]) {
	ctx, span := tracer.Start(ctx, "fitBatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("fits", req.NFits),
		attribute.Int("points", req.NPoints),
	)

	fitter := gpufit.NewFitter[T](gpufit.Config{Workers: *workerCount})
	start := time.Now()
	res, err := fitter.Fit(ctx, req)
	if err != nil {
		span.RecordError(err)
		log.Fatal().Err(err).Msg("Fit failed")
	}
	elapsed := time.Since(start)

	chis := make([]float64, len(res.ChiSquares))
	for i, c := range res.ChiSquares {
		chis[i] = float64(c)
	}

	p := message.NewPrinter(language.English)
	log.Info().
		Stringer("model", req.Model).
		Stringer("estimator", req.Estimator).
		Str("fits", p.Sprintf("%d", res.NFits())).
		Int("converged", res.Converged()).
		Float64("mean_chi_square", stat.Mean(chis, nil)).
		Dur("elapsed", elapsed).
		Float64("fits_per_second", float64(res.NFits())/elapsed.Seconds()).
		Msg("Fit batch complete")

	if err := writeResults(req.Model, req.Estimator, res); err != nil {
		log.Fatal().Err(err).Msg("Failed to write results")
	}
}

// runSoak refits the same batch until the deadline, bounding in-flight
// batches with a weighted semaphore.
func runSoak[T gpufit.Real](ctx context.Context, req *gpufit.FitRequest[T]) {
	log.Info().Str("duration", soakFor.String()).Int("max_concurrent", *maxConcurrent).Msg("Starting soak run")

	fitter := gpufit.NewFitter[T](gpufit.Config{Workers: *workerCount})
	sem := semaphore.NewWeighted(int64(*maxConcurrent))
	p := message.NewPrinter(language.English)

	start := time.Now()
	end := start.Add(*soakFor)
	var totalFits atomic.Int64
	var batches int

	for time.Now().Before(end) {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("Failed to acquire semaphore")
			break
		}
		go func() {
			defer sem.Release(1)
			if _, err := fitter.Fit(ctx, req); err != nil {
				log.Error().Err(err).Msg("Soak batch failed")
				return
			}
			totalFits.Add(int64(req.NFits))
		}()
		batches++

		if batches%10 == 0 {
			elapsed := time.Since(start)
			log.Info().
				Str("elapsed", elapsed.Round(time.Second).String()).
				Int("batches", batches).
				Str("total_fits", p.Sprintf("%d", totalFits.Load())).
				Float64("fits_per_second", float64(totalFits.Load())/elapsed.Seconds()).
				Msg("Soak progress")
		}
	}

	// Drain in-flight batches
	if err := sem.Acquire(ctx, int64(*maxConcurrent)); err == nil {
		sem.Release(int64(*maxConcurrent))
	}

	elapsed := time.Since(start)
	log.Info().
		Int("batches", batches).
		Str("total_fits", p.Sprintf("%d", totalFits.Load())).
		Dur("total_time", elapsed).
		Float64("avg_fits_per_second", float64(totalFits.Load())/elapsed.Seconds()).
		Msg("Soak complete")
}

// syntheticBatch builds a fit request whose data is the named model
// evaluated at per-fit jittered truth parameters plus Gaussian noise.
func syntheticBatch[T gpufit.Real](model gpufit.ModelID, est gpufit.EstimatorID, nFits, nPoints int, sigma float64) (*gpufit.FitRequest[T], error) {
	if nFits < 1 || nPoints < 2 {
		return nil, fmt.Errorf("need at least 1 fit of 2 points, got %d of %d", nFits, nPoints)
	}

	rng := rand.New(rand.NewSource(1))
	var userInfo []byte
	var truth func() []T
	var init []T

	switch model {
	case gpufit.ModelLinear1D:
		truth = func() []T {
			return []T{T(1 + 0.5*rng.Float64()), T(2 + 0.2*rng.Float64())}
		}
		init = []T{0, 1}

	case gpufit.ModelGauss1D:
		mid := float64(nPoints) / 2
		truth = func() []T {
			return []T{
				T(5 + rng.Float64()),
				T(mid + 2*(rng.Float64()-0.5)),
				T(float64(nPoints) / 8),
				1,
			}
		}
		init = []T{4, T(mid), T(float64(nPoints) / 6), T(0.5)}

	case gpufit.ModelDampedCosine1D:
		xs := make([]T, nPoints)
		for i := range xs {
			xs[i] = T(float64(i) * 0.04)
		}
		userInfo = gpufit.XBytes(xs)
		truth = func() []T {
			return []T{T(2 + 0.1*rng.Float64()), T(0.5 + 0.01*rng.Float64()), T(0.3), T(0.1)}
		}
		init = []T{T(1.6), T(0.44), T(0.25), 0}

	case gpufit.ModelAngularLorentzian1D:
		xs := make([]T, nPoints)
		for i := range xs {
			xs[i] = T(-2 + 4*float64(i)/float64(nPoints-1))
		}
		userInfo = gpufit.AngleInfo(T(1), []T{T(math.Pi)}, xs)
		truth = func() []T {
			return []T{T(3 + 0.2*rng.Float64()), T(-0.5), 1, T(0.2)}
		}
		init = []T{T(2.5), T(-0.3), T(0.8), 0}

	default:
		return nil, fmt.Errorf("no synthetic generator for model %s", model)
	}

	params := make([]T, 0, nFits*len(init))
	for fit := 0; fit < nFits; fit++ {
		params = append(params, truth()...)
	}
	eval, err := gpufit.Evaluate(&gpufit.EvalRequest[T]{
		Model:      model,
		NFits:      nFits,
		NPoints:    nPoints,
		Parameters: params,
		UserInfo:   userInfo,
		Workers:    *workerCount,
	})
	if err != nil {
		return nil, err
	}

	data := eval.Values
	for i := range data {
		data[i] += T(sigma * rng.NormFloat64())
	}
	initAll := make([]T, 0, nFits*len(init))
	for fit := 0; fit < nFits; fit++ {
		initAll = append(initAll, init...)
	}

	return &gpufit.FitRequest[T]{
		Model:             model,
		Estimator:         est,
		NFits:             nFits,
		NPoints:           nPoints,
		Data:              data,
		InitialParameters: initAll,
		UserInfo:          userInfo,
	}, nil
}

func writeResults[T gpufit.Real](model gpufit.ModelID, est gpufit.EstimatorID, res *gpufit.FitResult[T]) error {
	var w io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		if err := dataio.WriteResults(f, model, est, res); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return dataio.WriteResults(w, model, est, res)
}

func parseModel(name string) (gpufit.ModelID, error) {
	switch name {
	case "gauss_1d":
		return gpufit.ModelGauss1D, nil
	case "linear_1d":
		return gpufit.ModelLinear1D, nil
	case "damped_cosine_1d":
		return gpufit.ModelDampedCosine1D, nil
	case "angular_lorentzian_1d":
		return gpufit.ModelAngularLorentzian1D, nil
	}
	return 0, fmt.Errorf("unknown model %q", name)
}

func parseEstimator(name string) (gpufit.EstimatorID, error) {
	switch name {
	case "lse":
		return gpufit.EstimatorLSE, nil
	case "mle":
		return gpufit.EstimatorMLE, nil
	}
	return 0, fmt.Errorf("unknown estimator %q", name)
}

func serveMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	log.Info().Str("addr", addr).Msg("Serving metrics and pprof")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("Metrics server failed")
	}
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("gpufit"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}

// Package gpufit fits parametric model functions to large batches of small
// independent datasets with the Levenberg-Marquardt algorithm.
//
// A batch shares one model function, one fit criterion, and one geometry
// (points per fit), while every fit brings its own data and initial
// parameter vector. Fits are solved independently and in parallel; results
// carry per-fit parameters, a terminal state, the final chi-square, and
// the iteration count.
//
// The data width is a type parameter: instantiate the API with float32 or
// float64 and every buffer, model evaluation, and result uses that width,
// with solver accumulation always in float64. Independent variables travel
// in an optional side-channel buffer whose size selects its layout (none,
// one sequence shared by all fits, or one sequence per fit); malformed
// buffers are rejected up front with typed errors rather than guessed at.
//
// Evaluate exposes the bare model evaluation over one chunk of fits,
// without fitting, for callers that bring their own solver.
package gpufit

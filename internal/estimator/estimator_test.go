package estimator

import (
	"errors"
	"math"
	"testing"
)

func TestForID(t *testing.T) {
	if e, err := ForID[float64](LSE); err != nil || e.Name() != "lse" {
		t.Fatalf("ForID(LSE) = %v, %v", e, err)
	}
	if e, err := ForID[float64](MLE); err != nil || e.Name() != "mle" {
		t.Fatalf("ForID(MLE) = %v, %v", e, err)
	}
	if _, err := ForID[float64](ID(7)); !errors.Is(err, ErrUnknownEstimator) {
		t.Fatalf("ForID(7) err = %v", err)
	}
	if ID(7).String() != "estimator(7)" {
		t.Fatalf("String = %q", ID(7).String())
	}
}

func TestLeastSquaresTerms(t *testing.T) {
	var e LeastSquares[float64]

	chi, grad, hess := e.PointTerms(3, 2, 0.5)
	if chi != 0.5 || grad != 0.5 || hess != 0.5 {
		t.Errorf("weighted terms = %g, %g, %g", chi, grad, hess)
	}

	chi, grad, hess = e.PointTerms(1, 4, 1)
	if chi != 9 || grad != -3 || hess != 1 {
		t.Errorf("unweighted terms = %g, %g, %g", chi, grad, hess)
	}

	if !e.CheckModel(-5) {
		t.Errorf("least squares rejects negative model values")
	}
}

func TestMaximumLikelihoodTerms(t *testing.T) {
	var e MaximumLikelihood[float64]

	data, model := 3.0, 2.0
	chi, grad, hess := e.PointTerms(data, model, 1)
	wantChi := 2 * ((model - data) - data*math.Log(model/data))
	if math.Abs(chi-wantChi) > 1e-15 {
		t.Errorf("chi = %g, want %g", chi, wantChi)
	}
	if grad != 0.5 {
		t.Errorf("grad = %g, want 0.5", grad)
	}
	if hess != 0.75 {
		t.Errorf("hess = %g, want 0.75", hess)
	}
}

func TestMaximumLikelihoodZeroCount(t *testing.T) {
	var e MaximumLikelihood[float64]

	chi, grad, hess := e.PointTerms(0, 1.5, 1)
	if chi != 3 {
		t.Errorf("chi = %g, want 2*model", chi)
	}
	if grad != -1 || hess != 0 {
		t.Errorf("grad, hess = %g, %g, want -1, 0", grad, hess)
	}
}

func TestMaximumLikelihoodModelDomain(t *testing.T) {
	var e MaximumLikelihood[float64]
	if e.CheckModel(-0.1) {
		t.Errorf("negative model value accepted")
	}
	if !e.CheckModel(0) || !e.CheckModel(2) {
		t.Errorf("non-negative model value rejected")
	}
}

func TestMaximumLikelihoodIgnoresWeight(t *testing.T) {
	var e MaximumLikelihood[float64]
	c1, g1, h1 := e.PointTerms(2, 3, 1)
	c2, g2, h2 := e.PointTerms(2, 3, 100)
	if c1 != c2 || g1 != g2 || h1 != h2 {
		t.Errorf("weight changed MLE terms")
	}
}

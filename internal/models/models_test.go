package models

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/prevedel-lab/Gpufit/internal/scalar"
	"github.com/prevedel-lab/Gpufit/internal/xdata"
)

func closeRel(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestDampedCosineAtZero(t *testing.T) {
	p := []float64{2, 1, 0.5, 0.1}
	d := make([]float64, 4)
	v := dampedCosine(p, 0, d)

	if v != 2.1 {
		t.Errorf("value = %g, want 2.1", v)
	}
	if d[0] != 1 {
		t.Errorf("amplitude derivative = %g, want 1", d[0])
	}
	if d[1] != 0 {
		t.Errorf("shift derivative = %g, want 0", d[1])
	}
	if d[2] != 0 {
		t.Errorf("width derivative = %g, want 0", d[2])
	}
	if d[3] != 1 {
		t.Errorf("offset derivative = %g, want 1", d[3])
	}
}

func TestAngularLorentzianSingleAngle(t *testing.T) {
	// One angle of pi, so sin(psi/2) == 1 and the sums collapse to a plain
	// Lorentzian term. At x=0 with zero shift the line is exactly on peak.
	sinHalf := []float64{1}
	p := []float64{1, 0, 1, 0}
	d := make([]float64, 4)
	v := angularLorentzian(p, 0, 1, sinHalf, d)

	if v != 1 {
		t.Errorf("value = %g, want 1", v)
	}
	if d[0] != 1 {
		t.Errorf("amplitude derivative = %g, want 1", d[0])
	}
	if d[1] != 0 {
		t.Errorf("shift derivative = %g, want 0", d[1])
	}
	if d[2] != 0 {
		t.Errorf("width derivative = %g, want 0", d[2])
	}
	if d[3] != 1 {
		t.Errorf("offset derivative = %g, want 1", d[3])
	}
}

// fdCheck compares every analytic derivative against a central finite
// difference in the corresponding parameter.
func fdCheck(t *testing.T, eval func(p []float64, x float64, d []float64) float64, p []float64, x, tol float64) {
	t.Helper()
	n := len(p)
	deriv := make([]float64, n)
	eval(p, x, deriv)

	for k := 0; k < n; k++ {
		k := k
		f := func(pk float64) float64 {
			q := append([]float64(nil), p...)
			q[k] = pk
			return eval(q, x, make([]float64, n))
		}
		want := fd.Derivative(f, p[k], &fd.Settings{Formula: fd.Central})
		if !closeRel(deriv[k], want, tol) {
			t.Errorf("p=%v x=%g: derivative %d = %g, finite difference = %g", p, x, k, deriv[k], want)
		}
	}
}

func TestDampedCosineDerivatives(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 25; i++ {
		p := []float64{
			0.5 + 2.5*rng.Float64(),
			-1 + 2*rng.Float64(),
			0.3 + 1.7*rng.Float64(),
			-1 + 2*rng.Float64(),
		}
		x := 5 * rng.Float64()
		fdCheck(t, dampedCosine[float64], p, x, 1e-6)
	}
}

func TestGauss1DDerivatives(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 25; i++ {
		p := []float64{
			0.5 + 2.5*rng.Float64(),
			-1 + 2*rng.Float64(),
			0.3 + 1.7*rng.Float64(),
			-1 + 2*rng.Float64(),
		}
		x := -2 + 4*rng.Float64()
		fdCheck(t, gauss1D[float64], p, x, 1e-6)
	}
}

func TestLinear1DDerivatives(t *testing.T) {
	fdCheck(t, linear1D[float64], []float64{0.7, -1.3}, 2.5, 1e-9)
}

func TestAngularLorentzianDerivatives(t *testing.T) {
	// With unit geometric correction the shift derivative is the plain
	// chain-rule result, so the finite difference applies to every
	// parameter.
	sinHalf := []float64{
		math.Sin(math.Pi / 2),
		math.Sin(math.Pi / 4),
		math.Sin(0.5),
	}
	eval := func(p []float64, x float64, d []float64) float64 {
		return angularLorentzian(p, x, 1, sinHalf, d)
	}

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 25; i++ {
		p := []float64{
			0.5 + 2.5*rng.Float64(),
			-0.5 + rng.Float64(),
			0.5 + 1.5*rng.Float64(),
			-1 + 2*rng.Float64(),
		}
		x := 0.5 + 2.5*rng.Float64()
		fdCheck(t, eval, p, x, 1e-6)
	}
}

func TestAngularLorentzianDegenerateWidth(t *testing.T) {
	// Zero width drives beta to 0. With alpha nonzero gamma is +Inf: the
	// value contribution vanishes in the IEEE limit while the shift and
	// width sums hit 0*Inf and go NaN. Nothing is special-cased; this
	// pins the propagation behavior.
	d := make([]float64, 4)
	v := angularLorentzian([]float64{1, 0.3, 0, 0.5}, 1, 1, []float64{1}, d)

	if v != 0.5 {
		t.Errorf("value = %g, want offset 0.5 with vanished peak term", v)
	}
	if d[0] != 0 {
		t.Errorf("amplitude derivative = %g, want 0", d[0])
	}
	if !math.IsNaN(d[1]) {
		t.Errorf("shift derivative = %g, want NaN", d[1])
	}
	if !math.IsNaN(d[2]) {
		t.Errorf("width derivative = %g, want NaN", d[2])
	}
	if d[3] != 1 {
		t.Errorf("offset derivative = %g, want 1", d[3])
	}
}

func TestAngularLorentzianDegenerateOnPeak(t *testing.T) {
	// alpha and beta both zero is the 0/0 case: the whole evaluation goes
	// NaN, including the value.
	d := make([]float64, 4)
	v := angularLorentzian([]float64{1, 0, 0, 0}, 0, 1, []float64{1}, d)
	if !math.IsNaN(v) {
		t.Errorf("value = %g, want NaN", v)
	}

	// A zero angle degenerates the same way through sin(psi/2) == 0,
	// independent of the width.
	v = angularLorentzian([]float64{1, 0, 1, 0}, 0, 1, []float64{0}, d)
	if !math.IsNaN(v) {
		t.Errorf("value with zero angle = %g, want NaN", v)
	}
}

func TestEvalDeterministic(t *testing.T) {
	p := []float64{1.5, 0.25, 0.75, -0.2}
	sinHalf := []float64{1, math.Sqrt2 / 2}

	var prevV [2]float64
	var prevD [2][4]float64
	for rep := 0; rep < 3; rep++ {
		var d [4]float64
		v0 := dampedCosine(p, 1.25, d[:])
		d0 := d
		v1 := angularLorentzian(p, 1.25, 1.1, sinHalf, d[:])
		d1 := d

		if rep > 0 {
			if math.Float64bits(v0) != math.Float64bits(prevV[0]) || d0 != prevD[0] {
				t.Fatalf("damped cosine not bit-stable across calls")
			}
			if math.Float64bits(v1) != math.Float64bits(prevV[1]) || d1 != prevD[1] {
				t.Fatalf("angular lorentzian not bit-stable across calls")
			}
		}
		prevV = [2]float64{v0, v1}
		prevD = [2][4]float64{d0, d1}
	}
}

func TestPrepareBindsSharedX(t *testing.T) {
	xs := []float64{0, 2, 4}
	m, err := Prepare[float64](DampedCosine1D, scalar.AsBytes(xs), 2, 3)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if m.NParameters() != 4 {
		t.Fatalf("NParameters = %d, want 4", m.NParameters())
	}

	p := []float64{2, 1, 0.5, 0.1}
	d := make([]float64, 4)
	for fit := 0; fit < 2; fit++ {
		for point, x := range xs {
			got := m.Eval(p, 0, fit, point, d)
			want := dampedCosine(p, x, make([]float64, 4))
			if got != want {
				t.Errorf("fit %d point %d: value = %g, want %g", fit, point, got, want)
			}
		}
	}
}

func TestPrepareBindsAngles(t *testing.T) {
	buf := xdata.AppendAngles(nil, 1.0, []float64{math.Pi})
	m, err := Prepare[float64](AngularLorentzian1D, buf, 1, 1)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	d := make([]float64, 4)
	v := m.Eval([]float64{1, 0, 1, 0}, 0, 0, 0, d)
	if v != 1 {
		t.Errorf("value = %g, want 1", v)
	}
}

func TestPrepareFloat32(t *testing.T) {
	m, err := Prepare[float32](Gauss1D, nil, 1, 5)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	d := make([]float32, 4)
	v := m.Eval([]float32{2, 2, 1, 0}, 0, 0, 2, d)
	if math.Abs(float64(v)-2) > 1e-6 {
		t.Errorf("on-center value = %g, want 2", v)
	}
}

func TestPrepareErrors(t *testing.T) {
	if _, err := Prepare[float64](ID(99), nil, 1, 4); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("unknown id: err = %v, want ErrUnknownModel", err)
	}
	if _, err := Prepare[float64](Gauss1D, make([]byte, 9), 1, 4); !errors.Is(err, xdata.ErrUserInfoSize) {
		t.Errorf("bad x buffer: err = %v, want ErrUserInfoSize", err)
	}
	if _, err := Prepare[float64](AngularLorentzian1D, make([]byte, 3), 1, 4); !errors.Is(err, xdata.ErrAngleHeader) {
		t.Errorf("bad angle header: err = %v, want ErrAngleHeader", err)
	}
}

func TestLookup(t *testing.T) {
	info, err := Lookup(Linear1D)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if info.NParameters != 2 || info.Name != "linear_1d" {
		t.Errorf("info = %+v", info)
	}
	if got := DampedCosine1D.String(); got != "damped_cosine_1d" {
		t.Errorf("String = %q", got)
	}
	if got := ID(99).String(); got != "model(99)" {
		t.Errorf("String = %q", got)
	}
}

var benchSink float64

func BenchmarkDampedCosine(b *testing.B) {
	p := []float64{2, 1, 0.5, 0.1}
	d := make([]float64, 4)
	var sink float64
	for i := 0; i < b.N; i++ {
		sink += dampedCosine(p, float64(i%256)/32, d)
	}
	benchSink = sink
}

func BenchmarkAngularLorentzian(b *testing.B) {
	p := []float64{2, 0.3, 0.8, 0.1}
	sinHalf := make([]float64, 8)
	for i := range sinHalf {
		sinHalf[i] = math.Sin(float64(i+1) * math.Pi / 16)
	}
	d := make([]float64, 4)
	var sink float64
	for i := 0; i < b.N; i++ {
		sink += angularLorentzian(p, float64(i%256)/32, 1.1, sinHalf, d)
	}
	benchSink = sink
}

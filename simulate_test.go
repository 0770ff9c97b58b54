package gfold

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// coastLaw commands zero thrust.
type coastLaw struct{}

func (coastLaw) Control(t float64, x []float64) []float64 {
	return make([]float64, InputDim)
}

func TestSimulateFreeFall(t *testing.T) {
	p := marsParams()
	p.Omega = []float64{0, 0, 0}
	r, err := NewRocket(p)
	if err != nil {
		t.Fatal(err)
	}

	x0 := make([]float64, StateDim)
	copy(x0[:3], p.Pos0)
	copy(x0[3:6], p.Vel0)
	x0[6] = math.Log(p.WetMass)

	duration, dt := 5.0, 0.01
	traj := Simulate(r, x0, coastLaw{}, duration, dt)

	// Without rotation the free-fall solution is the closed-form
	// parabola, which fixed-step RK4 reproduces to machine precision.
	for k := 0; k < traj.Nodes(); k++ {
		tk := traj.Time[k]
		for i := 0; i < 3; i++ {
			want := p.Pos0[i] + p.Vel0[i]*tk + 0.5*p.Gravity[i]*tk*tk
			if !scalar.EqualWithinAbs(traj.Pos.At(i, k), want, 1e-8) {
				t.Fatalf("node %d axis %d: position %f, want %f", k, i, traj.Pos.At(i, k), want)
			}
			wantV := p.Vel0[i] + p.Gravity[i]*tk
			if !scalar.EqualWithinAbs(traj.Vel.At(i, k), wantV, 1e-8) {
				t.Fatalf("node %d axis %d: velocity %f, want %f", k, i, traj.Vel.At(i, k), wantV)
			}
		}
		if traj.LogMass[k] != x0[6] {
			t.Fatal("mass must not change while coasting")
		}
	}
	if traj.Cost != 0 {
		t.Fatal("simulated trajectories carry no cost")
	}
}

func TestSimulateTerminalNode(t *testing.T) {
	p := marsParams()
	r, err := NewRocket(p)
	if err != nil {
		t.Fatal(err)
	}
	x0 := make([]float64, StateDim)
	x0[6] = math.Log(p.WetMass)

	exact := Simulate(r, x0, coastLaw{}, 1.0, 0.1)
	if exact.Nodes() != 11 {
		t.Fatalf("exact multiple: %d nodes, want 11", exact.Nodes())
	}
	ragged := Simulate(r, x0, coastLaw{}, 1.05, 0.1)
	if ragged.Nodes() != 12 {
		t.Fatalf("remainder: %d nodes, want 12", ragged.Nodes())
	}
	if ragged.Time[ragged.Nodes()-1] != 1.05 {
		t.Fatalf("final node at %f, want the full duration", ragged.Time[ragged.Nodes()-1])
	}
}

// Halving the step must shrink the integration error by roughly 2^4.
func TestSimulateFourthOrderConvergence(t *testing.T) {
	p := marsParams()
	// An exaggerated rotation rate makes the truncation error measurable.
	p.Omega = []float64{0.2, 0.1, 0.5}
	r, err := NewRocket(p)
	if err != nil {
		t.Fatal(err)
	}
	x0 := make([]float64, StateDim)
	copy(x0[:3], p.Pos0)
	copy(x0[3:6], p.Vel0)
	x0[6] = math.Log(p.WetMass)

	// With zero input the ZOH discretization over the full horizon is the
	// exact solution of the linear-affine system.
	duration := 2.0
	Ad, _, pd := Discretize(r.A, r.B, r.P, duration)
	ref := mat.NewVecDense(StateDim, nil)
	ref.MulVec(Ad, mat.NewVecDense(StateDim, x0))
	ref.AddVec(ref, pd)

	finalErr := func(dt float64) float64 {
		traj := Simulate(r, x0, coastLaw{}, duration, dt)
		x := traj.State(traj.Nodes() - 1)
		e := 0.0
		for i := 0; i < StateDim; i++ {
			d := x[i] - ref.AtVec(i)
			e += d * d
		}
		return math.Sqrt(e)
	}

	eCoarse := finalErr(0.1)
	eFine := finalErr(0.05)
	if eCoarse <= 0 || eFine <= 0 {
		t.Fatal("expected a nonzero truncation error")
	}
	ratio := eCoarse / eFine
	if ratio < 10 || ratio > 24 {
		t.Fatalf("error ratio %f after halving the step, want about 16", ratio)
	}
}

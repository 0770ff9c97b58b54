package gfold

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func replayFixture() *Trajectory {
	traj := &Trajectory{
		Time:    []float64{0, 1, 2},
		Pos:     mat.NewDense(3, 3, nil),
		Vel:     mat.NewDense(3, 3, nil),
		LogMass: []float64{math.Log(2000), math.Log(1900), math.Log(1800)},
		Accel: mat.NewDense(3, 2, []float64{
			1, 4,
			2, 5,
			3, 6,
		}),
		Slack: []float64{3.8, 8.8},
	}
	traj.finalize()
	return traj
}

func TestZOHLawNodeSelection(t *testing.T) {
	law := NewZOHLaw(replayFixture())
	x := make([]float64, StateDim)
	x[6] = math.Log(2000) // same mass as node 0: no renormalization

	u := law.Control(0, x)
	if !scalar.EqualWithinAbs(u[0], 1, 1e-12) || !scalar.EqualWithinAbs(u[3], 3.8, 1e-12) {
		t.Fatalf("t=0 should use the first node, got %v", u)
	}
	u = law.Control(0.5, x)
	if !scalar.EqualWithinAbs(u[1], 2, 1e-12) {
		t.Fatalf("t=0.5 should hold the first node, got %v", u)
	}
}

func TestZOHLawHoldsLastInput(t *testing.T) {
	traj := replayFixture()
	law := NewZOHLaw(traj)
	x := make([]float64, StateDim)
	x[6] = traj.LogMass[1]

	// At, and beyond, the optimized horizon the last input is held.
	for _, tm := range []float64{1.0, 1.7, 2.0, 10.0} {
		u := law.Control(tm, x)
		if !scalar.EqualWithinAbs(u[0], 4, 1e-12) || !scalar.EqualWithinAbs(u[2], 6, 1e-12) {
			t.Fatalf("t=%f should replay the last input, got %v", tm, u)
		}
	}
}

func TestZOHLawMassRenormalization(t *testing.T) {
	traj := replayFixture()
	law := NewZOHLaw(traj)

	// The simulated vehicle is lighter than the plan assumed: the same
	// physical thrust must yield a proportionally larger acceleration.
	x := make([]float64, StateDim)
	x[6] = math.Log(1000)
	u := law.Control(0, x)
	wantScale := 2000.0 / 1000.0
	if !scalar.EqualWithinAbs(u[0], 1*wantScale, 1e-12) {
		t.Fatalf("accel not renormalized: got %f, want %f", u[0], 1*wantScale)
	}
	if !scalar.EqualWithinAbs(u[3], 3.8*wantScale, 1e-12) {
		t.Fatalf("slack not renormalized: got %f, want %f", u[3], 3.8*wantScale)
	}

	// The commanded physical thrust is unchanged by the mismatch.
	thrust := u[0] * 1000
	if !scalar.EqualWithinAbs(thrust, traj.Thrust.At(0, 0), 1e-9) {
		t.Fatalf("physical thrust drifted: %f != %f", thrust, traj.Thrust.At(0, 0))
	}
}

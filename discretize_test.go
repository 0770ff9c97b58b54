package gfold

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func TestDiscretizeDoubleIntegrator(t *testing.T) {
	A := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	B := mat.NewDense(2, 1, []float64{0, 1})
	p := mat.NewVecDense(2, nil)

	for _, dt := range []float64{0.1, 0.5, 2} {
		Ad, Bd, pd := Discretize(A, B, p, dt)
		wantA := []float64{1, dt, 0, 1}
		wantB := []float64{dt * dt / 2, dt}
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				if !scalar.EqualWithinAbs(Ad.At(i, j), wantA[i*2+j], 1e-12) {
					t.Fatalf("dt=%f: Ad(%d,%d) = %f, want %f", dt, i, j, Ad.At(i, j), wantA[i*2+j])
				}
			}
			if !scalar.EqualWithinAbs(Bd.At(i, 0), wantB[i], 1e-12) {
				t.Fatalf("dt=%f: Bd(%d) = %f, want %f", dt, i, Bd.At(i, 0), wantB[i])
			}
			if pd.AtVec(i) != 0 {
				t.Fatal("affine term should vanish for p = 0")
			}
		}
	}
}

// With zero input and a non-rotating, non-moving configuration the state
// after one discrete step is exactly the affine term, whatever the step.
func TestDiscretizeAffineStep(t *testing.T) {
	p := marsParams()
	p.Omega = []float64{0, 0, 0}
	p.Pos0 = []float64{0, 0, 0}
	p.Vel0 = []float64{0, 0, 0}
	r, err := NewRocket(p)
	if err != nil {
		t.Fatal(err)
	}

	for _, dt := range []float64{0.1, 1, 3, 10} {
		Ad, Bd, pd := Discretize(r.A, r.B, r.P, dt)
		x := mat.NewVecDense(StateDim, nil)
		u := mat.NewVecDense(InputDim, nil)
		var next mat.VecDense
		next.MulVec(Ad, x)
		var bu mat.VecDense
		bu.MulVec(Bd, u)
		next.AddVec(&next, &bu)
		next.AddVec(&next, pd)

		for i := 0; i < StateDim; i++ {
			if !scalar.EqualWithinAbs(next.AtVec(i), pd.AtVec(i), 1e-15) {
				t.Fatalf("dt=%f: one step from rest must equal the affine term", dt)
			}
		}
		// The affine term itself is the free-fall increment.
		g := p.Gravity[2]
		if !scalar.EqualWithinAbs(pd.AtVec(2), g*dt*dt/2, 1e-9) {
			t.Fatalf("dt=%f: position affine term %g, want %g", dt, pd.AtVec(2), g*dt*dt/2)
		}
		if !scalar.EqualWithinAbs(pd.AtVec(5), g*dt, 1e-9) {
			t.Fatalf("dt=%f: velocity affine term %g, want %g", dt, pd.AtVec(5), g*dt)
		}
		if pd.AtVec(6) != 0 {
			t.Fatal("log-mass must not drift without thrust")
		}
	}
}

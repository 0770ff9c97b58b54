package gfold

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func marsParams() RocketParams {
	return RocketParams{
		Gravity:    []float64{0, 0, -3.7114},
		Omega:      []float64{2.53e-5, 0, 6.62e-5},
		DryMass:    1505,
		WetMass:    1905,
		Isp:        225,
		CantAngle:  27 * math.Pi / 180,
		MinThrust:  0.3 * 6 * 3100,
		MaxThrust:  0.8 * 6 * 3100,
		GlideSlope: 75 * math.Pi / 180,
		MaxPoint:   40 * math.Pi / 180,
		MaxSpeed:   150,
		Pos0:       []float64{2000, 0, 1500},
		Vel0:       []float64{80, 30, -75},
		Step:       1,
	}
}

func TestNewRocketValidation(t *testing.T) {
	bad := []func(*RocketParams){
		func(p *RocketParams) { p.DryMass = p.WetMass },
		func(p *RocketParams) { p.DryMass = 0 },
		func(p *RocketParams) { p.MinThrust = p.MaxThrust + 1 },
		func(p *RocketParams) { p.MinThrust = -1 },
		func(p *RocketParams) { p.Step = 0 },
		func(p *RocketParams) { p.Isp = 0 },
		func(p *RocketParams) { p.CantAngle = math.Pi / 2 },
		func(p *RocketParams) { p.GlideSlope = -0.1 },
		func(p *RocketParams) { p.MaxPoint = 2 },
		func(p *RocketParams) { p.Gravity = []float64{0, 0} },
	}
	for i, mutate := range bad {
		p := marsParams()
		mutate(&p)
		if _, err := NewRocket(p); !errors.Is(err, ErrBadParams) {
			t.Fatalf("case %d: expected ErrBadParams, got %v", i, err)
		}
	}
	if _, err := NewRocket(marsParams()); err != nil {
		t.Fatalf("valid parameters rejected: %v", err)
	}
}

func TestRocketDynamicsMatrices(t *testing.T) {
	p := marsParams()
	r, err := NewRocket(p)
	if err != nil {
		t.Fatal(err)
	}

	// Position rows couple only to velocity with identity.
	for i := 0; i < 3; i++ {
		for j := 0; j < StateDim; j++ {
			want := 0.0
			if j == i+3 {
				want = 1
			}
			if r.A.At(i, j) != want {
				t.Fatalf("A(%d,%d) = %f, want %f", i, j, r.A.At(i, j), want)
			}
		}
	}

	// Velocity rows: -S(w)S(w) on position, -2S(w) on velocity.
	S := skew(p.Omega)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s2 := 0.0
			for l := 0; l < 3; l++ {
				s2 += S.At(i, l) * S.At(l, j)
			}
			if !scalar.EqualWithinAbs(r.A.At(3+i, j), -s2, 1e-18) {
				t.Fatalf("centrifugal block wrong at (%d,%d)", i, j)
			}
			if !scalar.EqualWithinAbs(r.A.At(3+i, 3+j), -2*S.At(i, j), 1e-18) {
				t.Fatalf("Coriolis block wrong at (%d,%d)", i, j)
			}
		}
	}

	// Gravity only enters the affine term, on the velocity rows.
	for i := 0; i < StateDim; i++ {
		want := 0.0
		if i >= 3 && i < 6 {
			want = p.Gravity[i-3]
		}
		if r.P.AtVec(i) != want {
			t.Fatalf("P(%d) = %f, want %f", i, r.P.AtVec(i), want)
		}
	}

	// Log-mass row burns with the slack channel only.
	alpha := 1 / (p.Isp * g0 * math.Cos(p.CantAngle))
	if !scalar.EqualWithinAbs(r.B.At(6, 3), -alpha, 1e-15) {
		t.Fatalf("mass flow coefficient: got %g want %g", r.B.At(6, 3), -alpha)
	}
	for j := 0; j < 3; j++ {
		if r.B.At(6, j) != 0 || r.B.At(j, j) != 0 {
			t.Fatal("unexpected input coupling")
		}
		if r.B.At(3+j, j) != 1 {
			t.Fatal("acceleration input must be identity on velocity rows")
		}
	}
}

func TestTimeOfFlightBracket(t *testing.T) {
	r, err := NewRocket(marsParams())
	if err != nil {
		t.Fatal(err)
	}
	lo, hi := r.TimeOfFlightBracket()
	if lo <= 0 || hi <= lo {
		t.Fatalf("degenerate bracket [%f, %f]", lo, hi)
	}
	wantLo := 1505 * norm([]float64{80, 30, -75}) / (0.8 * 6 * 3100)
	if !scalar.EqualWithinAbs(lo, wantLo, 1e-9) {
		t.Fatalf("lower bound %f, want %f", lo, wantLo)
	}
	wantHi := 400 / (r.Alpha * 0.3 * 6 * 3100)
	if !scalar.EqualWithinAbs(hi, wantHi, 1e-9) {
		t.Fatalf("upper bound %f, want %f", hi, wantHi)
	}
}

package gfold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// g0 is the standard gravity used for specific impulse conversions, m/s^2.
	g0 = 9.80665

	// StateDim is the dimension of the descent state [r; v; log(m)].
	StateDim = 7
	// InputDim is the dimension of the descent input [T/m; Gamma/m].
	InputDim = 4
)

// RocketParams collects the physical and geometric configuration of the
// vehicle and the planet it lands on. All values are SI: meters, seconds,
// kilograms, Newtons, radians. The frame is planet-fixed with the origin at
// the landing point and the third axis pointing up.
type RocketParams struct {
	Gravity    []float64 // constant gravity vector, m/s^2
	Omega      []float64 // planet angular velocity vector, rad/s
	DryMass    float64   // structural mass, kg
	WetMass    float64   // structural plus fuel mass, kg
	Isp        float64   // specific impulse, s
	CantAngle  float64   // engine cant angle off the vertical, rad
	MinThrust  float64   // minimum total thrust while burning, N
	MaxThrust  float64   // maximum total thrust, N
	GlideSlope float64   // maximum glide-slope cone half-angle, rad
	MaxPoint   float64   // maximum thrust pointing angle off the vertical, rad
	MaxSpeed   float64   // speed bound during descent, m/s
	Pos0       []float64 // initial position, m
	Vel0       []float64 // initial velocity, m/s
	Step       float64   // nominal guidance discretization step, s
}

// Rocket is the immutable descent model: the parameter set plus the derived
// continuous-time linear-affine dynamics
//
//	dr/dt = v
//	dv/dt = -S(w)S(w)r - 2 S(w)v + g + a
//	dz/dt = -alpha*sigma
//
// with state x = [r; v; z], z = log(m), input u = [a; sigma] where a is the
// mass-normalized thrust acceleration and sigma its magnitude slack, and
// S(w) the skew cross-product matrix of the planet angular velocity. The
// centrifugal and Coriolis terms enter the state matrix, gravity enters only
// the constant affine term.
type Rocket struct {
	RocketParams

	// Alpha is the mass flow coefficient 1/(Isp*g0*cos(cant)), s/m.
	Alpha float64

	// A, B and P are the continuous-time state matrix (7x7), input matrix
	// (7x4) and constant affine term (7x1).
	A *mat.Dense
	B *mat.Dense
	P *mat.VecDense
}

// NewRocket validates the parameter set and derives the continuous-time
// dynamics. The returned model is treated as a value object: it is never
// mutated after construction.
func NewRocket(p RocketParams) (*Rocket, error) {
	if len(p.Gravity) != 3 || len(p.Omega) != 3 || len(p.Pos0) != 3 || len(p.Vel0) != 3 {
		return nil, fmt.Errorf("%w: gravity, omega, pos0 and vel0 must have three components", ErrBadParams)
	}
	if p.DryMass <= 0 || p.DryMass >= p.WetMass {
		return nil, fmt.Errorf("%w: need 0 < dry mass (%g) < wet mass (%g)", ErrBadParams, p.DryMass, p.WetMass)
	}
	if p.MinThrust < 0 || p.MinThrust > p.MaxThrust {
		return nil, fmt.Errorf("%w: need 0 <= min thrust (%g) <= max thrust (%g)", ErrBadParams, p.MinThrust, p.MaxThrust)
	}
	if p.Isp <= 0 {
		return nil, fmt.Errorf("%w: specific impulse must be positive", ErrBadParams)
	}
	if p.Step <= 0 {
		return nil, fmt.Errorf("%w: discretization step must be positive", ErrBadParams)
	}
	for name, angle := range map[string]float64{"cant": p.CantAngle, "glide-slope": p.GlideSlope, "pointing": p.MaxPoint} {
		if angle < 0 || angle >= math.Pi/2 {
			return nil, fmt.Errorf("%w: %s angle %g not in [0, pi/2)", ErrBadParams, name, angle)
		}
	}

	alpha := 1 / (p.Isp * g0 * math.Cos(p.CantAngle))

	A := mat.NewDense(StateDim, StateDim, nil)
	for i := 0; i < 3; i++ {
		A.Set(i, i+3, 1) // dr/dt = v
	}
	S := skew(p.Omega)
	var S2 mat.Dense
	S2.Mul(S, S)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			A.Set(3+i, j, -S2.At(i, j))   // centrifugal
			A.Set(3+i, 3+j, -2*S.At(i, j)) // Coriolis
		}
	}

	B := mat.NewDense(StateDim, InputDim, nil)
	for i := 0; i < 3; i++ {
		B.Set(3+i, i, 1)
	}
	B.Set(6, 3, -alpha)

	P := mat.NewVecDense(StateDim, nil)
	for i := 0; i < 3; i++ {
		P.SetVec(3+i, p.Gravity[i])
	}

	return &Rocket{RocketParams: p, Alpha: alpha, A: A, B: B, P: P}, nil
}

// TimeOfFlightBracket returns the physically meaningful search bracket for
// the minimum-fuel time-of-flight search: the lower bound is the time to
// null the initial velocity at maximum deceleration with a dry vehicle, the
// upper bound the time to exhaust all fuel at the minimum burn rate.
func (r *Rocket) TimeOfFlightBracket() (lo, hi float64) {
	lo = r.DryMass * norm(r.Vel0) / r.MaxThrust
	hi = (r.WetMass - r.DryMass) / (r.Alpha * r.MinThrust)
	return
}

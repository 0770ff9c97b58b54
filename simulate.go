package gfold

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// sqrtEps is the tolerance on the terminal grid node: one extra node is
// appended when the duration is not an exact multiple of the step within
// the square root of machine epsilon.
var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)

// Simulate integrates the true continuous dynamics under the supplied
// control law with the classical fixed-step 4th-order Runge-Kutta method,
// producing the fine-grained closed-loop trajectory used to validate an
// optimized plan. The vector field is f(t, x) = A x + B u(t, x) + p with
// the rocket's continuous-time matrices; the control is re-evaluated at
// every Runge-Kutta stage. The step dt is expected to be smaller than the
// guidance step and independent of it.
//
// The returned trajectory records the state history and the control
// sampled at each grid node; its cost is zero, which is not meaningful for
// a simulation run.
func Simulate(r *Rocket, x0 []float64, law ControlLaw, duration, dt float64) *Trajectory {
	ratio := duration / dt
	steps := int(ratio)
	times := make([]float64, 0, steps+2)
	for k := 0; k <= steps; k++ {
		times = append(times, float64(k)*dt)
	}
	if ratio-float64(steps) > sqrtEps {
		times = append(times, duration)
	}
	nNodes := len(times)

	f := func(t float64, x []float64) []float64 {
		u := law.Control(t, x)
		dx := make([]float64, StateDim)
		for i := 0; i < StateDim; i++ {
			v := r.P.AtVec(i)
			for j := 0; j < StateDim; j++ {
				v += r.A.At(i, j) * x[j]
			}
			for j := 0; j < InputDim; j++ {
				v += r.B.At(i, j) * u[j]
			}
			dx[i] = v
		}
		return dx
	}

	traj := &Trajectory{
		Time:    times,
		Pos:     mat.NewDense(3, nNodes, nil),
		Vel:     mat.NewDense(3, nNodes, nil),
		LogMass: make([]float64, nNodes),
		Accel:   mat.NewDense(3, maxInt(nNodes-1, 1), nil),
		Slack:   make([]float64, nNodes-1),
	}

	x := make([]float64, StateDim)
	copy(x, x0)
	record := func(k int) {
		for i := 0; i < 3; i++ {
			traj.Pos.Set(i, k, x[i])
			traj.Vel.Set(i, k, x[3+i])
		}
		traj.LogMass[k] = x[6]
		if k < nNodes-1 {
			u := law.Control(times[k], x)
			for i := 0; i < 3; i++ {
				traj.Accel.Set(i, k, u[i])
			}
			traj.Slack[k] = u[3]
		}
	}
	record(0)

	k1 := make([]float64, StateDim)
	k2 := make([]float64, StateDim)
	k3 := make([]float64, StateDim)
	k4 := make([]float64, StateDim)
	tmp := make([]float64, StateDim)
	for k := 1; k < nNodes; k++ {
		t := times[k-1]
		h := times[k] - times[k-1]

		for i, y := range f(t, x) {
			k1[i] = h * y
			tmp[i] = x[i] + k1[i]/2
		}
		for i, y := range f(t+h/2, tmp) {
			k2[i] = h * y
			tmp[i] = x[i] + k2[i]/2
		}
		for i, y := range f(t+h/2, tmp) {
			k3[i] = h * y
			tmp[i] = x[i] + k3[i]
		}
		for i, y := range f(t+h, tmp) {
			k4[i] = h * y
			x[i] += (k1[i] + 2*k2[i] + 2*k3[i] + k4[i]) / 6
		}
		record(k)
	}

	traj.finalize()
	return traj
}

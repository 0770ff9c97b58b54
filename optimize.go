package gfold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rmarchand/gfold/socp"
)

// Optimizer builds and solves the convexified minimum-fuel landing problem
// for a fixed time of flight. The nonconvex thrust bound is relaxed
// losslessly: the thrust direction lives in a second-order cone under a
// magnitude slack which the objective drives onto the cone boundary, and
// the exponential thrust-to-mass relation is replaced by its Taylor
// expansion about the maximum-burn reference log-mass, which keeps the
// feasible set convex.
//
// Each Solve call is an independent blocking invocation of the conic
// solver; no state is shared across calls.
type Optimizer struct {
	Rocket *Rocket
	Solver socp.Options // zero value selects the solver defaults
}

// NewOptimizer returns an optimizer for the given descent model.
func NewOptimizer(r *Rocket) *Optimizer {
	return &Optimizer{Rocket: r}
}

// term is one coefficient of a constraint row over the physical variables.
type term struct {
	j int
	c float64
}

// Solve computes the minimum-fuel trajectory for the given time of flight.
// It returns ErrInfeasible when the problem admits no solution and
// ErrSolverFailure when the conic solver stops without an optimality
// guarantee; both map to an infinite cost in the outer search.
func (o *Optimizer) Solve(tof float64) (*Trajectory, error) {
	r := o.Rocket
	if tof <= 0 {
		return nil, fmt.Errorf("%w: non-positive time of flight %g", ErrInfeasible, tof)
	}
	if r.WetMass-r.Alpha*r.MaxThrust*tof <= 0 {
		// Burning at maximum thrust for the whole flight would deplete
		// more than the full vehicle mass: the reference log-mass is
		// undefined past that point.
		return nil, fmt.Errorf("%w: time of flight %gs exceeds the maximum-burn mass horizon", ErrInfeasible, tof)
	}

	// Time grid: the step closest to the nominal one that divides the
	// duration evenly. The raw ratio is rounded up, so a remainder costs
	// one extra node and a slightly finer step.
	ratio := tof / r.Step
	steps := int(math.Ceil(ratio - 1e-9))
	if steps < 1 {
		steps = 1
	}
	nNodes := steps + 1
	dt := tof / float64(steps)

	Ad, Bd, pd := Discretize(r.A, r.B, r.P, dt)

	// Decision layout: 7 state variables per node then 4 input variables
	// per step, each represented internally as scale*xhat + offset so that
	// all dimensionless variables have comparable magnitude. The solver
	// does not converge reliably without this.
	xIdx := func(k, j int) int { return k*StateDim + j }
	uIdx := func(k, j int) int { return nNodes*StateDim + k*InputDim + j }
	nVars := nNodes*StateDim + steps*InputDim

	scale := make([]float64, nVars)
	offset := make([]float64, nVars)
	axisScale := func(v float64) float64 {
		if s := math.Abs(v); s > 1 {
			return s
		}
		return 1
	}
	zOff := math.Log(r.DryMass)
	zScale := math.Log(r.WetMass) - zOff
	accScale := r.MaxThrust / r.DryMass
	ratioLo := r.MinThrust / r.WetMass
	ratioHi := r.MaxThrust / r.DryMass
	slackOff := (ratioLo + ratioHi) / 2
	slackScale := (ratioHi - ratioLo) / 2
	for k := 0; k < nNodes; k++ {
		for i := 0; i < 3; i++ {
			scale[xIdx(k, i)] = axisScale(r.Pos0[i])
			scale[xIdx(k, 3+i)] = axisScale(r.Vel0[i])
		}
		scale[xIdx(k, 6)] = zScale
		offset[xIdx(k, 6)] = zOff
	}
	for k := 0; k < steps; k++ {
		for i := 0; i < 3; i++ {
			scale[uIdx(k, i)] = accScale
		}
		scale[uIdx(k, 3)] = slackScale
		offset[uIdx(k, 3)] = slackOff
	}

	prob := socp.NewProblem(nVars)

	// Row builders mapping constraints on physical variables to rows over
	// the dimensionless ones.
	row := func(ts ...term) ([]float64, float64) {
		rr := make([]float64, nVars)
		sh := 0.0
		for _, t := range ts {
			rr[t.j] += t.c * scale[t.j]
			sh += t.c * offset[t.j]
		}
		return rr, sh
	}
	addEq := func(rhs float64, ts ...term) {
		rr, sh := row(ts...)
		prob.AddEq(rr, rhs-sh)
	}
	addIneq := func(rhs float64, ts ...term) {
		rr, sh := row(ts...)
		prob.AddIneq(rr, rhs-sh)
	}
	// socExpr builds the affine expression sum(c*phys) + d for a cone row.
	socExpr := func(d float64, ts ...term) ([]float64, float64) {
		rr, sh := row(ts...)
		return rr, -(sh + d)
	}

	// Objective: the Riemann sum of the thrust magnitude slack, a linear
	// proxy for propellant use. The constant offset part is added back
	// when the cost is reported.
	c := make([]float64, nVars)
	for k := 0; k < steps; k++ {
		c[uIdx(k, 3)] = dt * slackScale
	}
	prob.Minimize(c)

	// Dynamics: the exact ZOH recursion holds between every node pair.
	for k := 0; k < steps; k++ {
		for i := 0; i < StateDim; i++ {
			ts := make([]term, 0, 1+StateDim+InputDim)
			ts = append(ts, term{xIdx(k+1, i), 1})
			for j := 0; j < StateDim; j++ {
				if a := Ad.At(i, j); a != 0 {
					ts = append(ts, term{xIdx(k, j), -a})
				}
			}
			for j := 0; j < InputDim; j++ {
				if b := Bd.At(i, j); b != 0 {
					ts = append(ts, term{uIdx(k, j), -b})
				}
			}
			addEq(pd.AtVec(i), ts...)
		}
	}

	// Boundary conditions: fixed initial state, zero terminal position and
	// velocity, terminal mass above dry (the final mass itself is free and
	// is what the objective effectively maximizes).
	for i := 0; i < 3; i++ {
		addEq(r.Pos0[i], term{xIdx(0, i), 1})
		addEq(r.Vel0[i], term{xIdx(0, 3+i), 1})
		addEq(0, term{xIdx(nNodes-1, i), 1})
		addEq(0, term{xIdx(nNodes-1, 3+i), 1})
	}
	addEq(math.Log(r.WetMass), term{xIdx(0, 6), 1})
	addIneq(-math.Log(r.DryMass), term{xIdx(nNodes-1, 6), -1})

	tanGS := math.Tan(r.GlideSlope)
	cosPoint := math.Cos(r.MaxPoint)

	for k := 0; k < nNodes; k++ {
		tk := float64(k) * dt
		z0 := math.Log(r.WetMass - r.Alpha*r.MaxThrust*tk)
		zUp := math.Log(r.WetMass - r.Alpha*r.MinThrust*tk)

		// Physically reachable log-mass bracket.
		addIneq(-z0, term{xIdx(k, 6), -1})
		addIneq(zUp, term{xIdx(k, 6), 1})

		// Glide slope: a four-face polyhedral approximation of the
		// keep-out cone about the vertical axis through the pad.
		for _, sgn := range []float64{1, -1} {
			addIneq(0, term{xIdx(k, 0), sgn}, term{xIdx(k, 2), -tanGS})
			addIneq(0, term{xIdx(k, 1), sgn}, term{xIdx(k, 2), -tanGS})
		}

		// Speed bound.
		sc, scRHS := socExpr(r.MaxSpeed)
		v0, v0RHS := socExpr(0, term{xIdx(k, 3), 1})
		v1, v1RHS := socExpr(0, term{xIdx(k, 4), 1})
		v2, v2RHS := socExpr(0, term{xIdx(k, 5), 1})
		prob.AddSOC([][]float64{sc, v0, v1, v2}, []float64{scRHS, v0RHS, v1RHS, v2RHS})
	}

	for k := 0; k < steps; k++ {
		tk := float64(k) * dt
		z0 := math.Log(r.WetMass - r.Alpha*r.MaxThrust*tk)
		mu1 := r.MinThrust * math.Exp(-z0)
		mu2 := r.MaxThrust * math.Exp(-z0)

		// Thrust upper bound, first-order in the log-mass deviation:
		// sigma <= mu2*(1 - (z - z0)).
		addIneq(mu2*(1+z0), term{uIdx(k, 3), 1}, term{xIdx(k, 6), mu2})

		// Thrust lower bound, second-order:
		// sigma >= mu1*(1 - dz + dz^2/2), encoded as the cone
		// ||(dz, w - 1/2)|| <= w + 1/2 with w = sigma/mu1 - 1 + dz.
		if mu1 > 0 {
			sc, scRHS := socExpr(-z0-0.5, term{uIdx(k, 3), 1 / mu1}, term{xIdx(k, 6), 1})
			d1, d1RHS := socExpr(-z0, term{xIdx(k, 6), 1})
			d2, d2RHS := socExpr(-z0-1.5, term{uIdx(k, 3), 1 / mu1}, term{xIdx(k, 6), 1})
			prob.AddSOC([][]float64{sc, d1, d2}, []float64{scRHS, d1RHS, d2RHS})
		}

		// Thrust direction cone: ||a|| <= sigma. The objective strictly
		// decreases in sigma, so this holds with equality at the optimum,
		// which is what makes the relaxation lossless.
		sc, scRHS := socExpr(0, term{uIdx(k, 3), 1})
		a0, a0RHS := socExpr(0, term{uIdx(k, 0), 1})
		a1, a1RHS := socExpr(0, term{uIdx(k, 1), 1})
		a2, a2RHS := socExpr(0, term{uIdx(k, 2), 1})
		prob.AddSOC([][]float64{sc, a0, a1, a2}, []float64{scRHS, a0RHS, a1RHS, a2RHS})

		// Pointing half-space at every step but the last.
		if k < steps-1 {
			addIneq(0, term{uIdx(k, 2), -1}, term{uIdx(k, 3), cosPoint})
		}
	}

	res := prob.Solve(o.Solver)
	switch res.Status {
	case socp.Optimal:
		// Fall through to extraction.
	case socp.Infeasible:
		return nil, fmt.Errorf("%w: tof=%gs", ErrInfeasible, tof)
	default:
		return nil, fmt.Errorf("%w: status %v after %d iterations (tof=%gs)", ErrSolverFailure, res.Status, res.Iterations, tof)
	}

	// Unscale to physical units and derive thrust, mass and pointing.
	phys := func(j int) float64 { return scale[j]*res.X[j] + offset[j] }
	traj := &Trajectory{
		Time:    make([]float64, nNodes),
		Pos:     mat.NewDense(3, nNodes, nil),
		Vel:     mat.NewDense(3, nNodes, nil),
		LogMass: make([]float64, nNodes),
		Accel:   mat.NewDense(3, steps, nil),
		Slack:   make([]float64, steps),
	}
	for k := 0; k < nNodes; k++ {
		traj.Time[k] = float64(k) * dt
		for i := 0; i < 3; i++ {
			traj.Pos.Set(i, k, phys(xIdx(k, i)))
			traj.Vel.Set(i, k, phys(xIdx(k, 3+i)))
		}
		traj.LogMass[k] = phys(xIdx(k, 6))
	}
	cost := 0.0
	for k := 0; k < steps; k++ {
		for i := 0; i < 3; i++ {
			traj.Accel.Set(i, k, phys(uIdx(k, i)))
		}
		traj.Slack[k] = phys(uIdx(k, 3))
		cost += dt * traj.Slack[k]
	}
	traj.Cost = cost
	traj.finalize()
	return traj, nil
}

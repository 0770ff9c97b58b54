package gfold

import (
	"fmt"
	"math"

	"github.com/go-kit/kit/log"
)

// CostFunc maps a candidate time of flight to a scalar cost. Infeasible
// candidates are represented by +Inf, which the golden-section comparison
// handles like any other large value.
type CostFunc func(tof float64) float64

// MinimizeScalar performs a classical golden-section search for the
// minimizer of the assumed-unimodal f over [a, b]. The bracket shrinks by
// the golden ratio and the retained interior point is reused, so every
// iteration costs exactly one new evaluation. It returns the midpoint of
// the final bracket and the cost there.
func MinimizeScalar(f CostFunc, a, b, tol float64) (x, fx float64) {
	phi := (1 + math.Sqrt(5)) / 2
	iters := int(math.Ceil(math.Log((b-a)/tol)/math.Log(phi))) + 1

	x1 := b - (b-a)/phi
	x2 := a + (b-a)/phi
	f1 := f(x1)
	f2 := f(x2)
	for i := 0; i < iters; i++ {
		if f1 < f2 {
			b = x2
			x2, f2 = x1, f1
			x1 = b - (b-a)/phi
			f1 = f(x1)
		} else {
			a = x1
			x1, f1 = x2, f2
			x2 = a + (b-a)/phi
			f2 = f(x2)
		}
	}
	x = (a + b) / 2
	return x, f(x)
}

// SearchTimeOfFlight minimizes fuel cost over the flight duration by
// golden-section search on [lo, hi], re-solving the guidance problem at
// each probe. Evaluations are strictly sequential: each new probe depends
// on the previous bracket. A candidate for which the optimizer fails is
// treated as having infinite cost, so the search converges toward the
// feasible region as long as the cost curve is unimodal across the
// feasibility boundary.
//
// It returns the best time of flight and the trajectory re-solved there.
// When every probed duration was infeasible the error wraps ErrInfeasible.
func SearchTimeOfFlight(o *Optimizer, lo, hi, tol float64, logger log.Logger) (float64, *Trajectory, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if lo <= 0 || hi <= lo {
		return 0, nil, fmt.Errorf("%w: [%g, %g]", ErrBadBracket, lo, hi)
	}

	cost := func(tof float64) float64 {
		traj, err := o.Solve(tof)
		if err != nil {
			logger.Log("level", "info", "subsys", "tof", "tof(s)", tof, "cost", "+Inf", "err", err)
			return math.Inf(1)
		}
		logger.Log("level", "info", "subsys", "tof", "tof(s)", tof, "cost", traj.Cost)
		return traj.Cost
	}

	best, bestCost := MinimizeScalar(cost, lo, hi, tol)
	if math.IsInf(bestCost, 1) {
		return 0, nil, fmt.Errorf("%w: no feasible duration in [%g, %g]", ErrInfeasible, lo, hi)
	}
	traj, err := o.Solve(best)
	if err != nil {
		return 0, nil, err
	}
	logger.Log("level", "notice", "subsys", "tof", "status", "converged", "tof(s)", best, "cost", traj.Cost)
	return best, traj, nil
}

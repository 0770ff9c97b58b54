package gfold

import "errors"

// Domain errors for the guidance pipeline.
var (
	// ErrBadParams indicates an invalid vehicle or planet parameter set.
	ErrBadParams = errors.New("gfold: invalid rocket parameters")

	// ErrInfeasible indicates that no trajectory satisfies the constraints
	// for the requested time of flight (or, from SearchTimeOfFlight, for
	// any time of flight in the search bracket).
	ErrInfeasible = errors.New("gfold: landing problem infeasible")

	// ErrSolverFailure indicates the conic solver terminated without an
	// optimality guarantee (iteration limit or numerical failure).
	ErrSolverFailure = errors.New("gfold: conic solver failed to converge")

	// ErrBadBracket indicates a time-of-flight search bracket with a
	// non-positive lower bound or an inverted ordering.
	ErrBadBracket = errors.New("gfold: invalid time-of-flight bracket")
)

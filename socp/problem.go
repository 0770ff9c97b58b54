// Package socp builds and solves second-order-cone programs of the form
//
//	minimize    c'x
//	subject to  Aeq x  = beq
//	            Ain x <= bin
//	            || A2 x - b2 || <= a1'x - b1     (one block per cone)
//
// with a first-order operator-splitting (ADMM) method. The problem is
// reduced to the standard conic form
//
//	minimize c'x  subject to  A x + s = b,  s in K
//
// where K is a product of a zero cone (equalities), the nonnegative orthant
// (inequalities) and second-order cones. Each iteration solves one
// pre-factorized regularized normal-equations system and projects the slack
// onto K; termination follows primal/dual residuals and duality gap, with a
// divergence certificate for primal infeasibility.
package socp

import "fmt"

// Status is the solver termination status.
type Status int

const (
	// Optimal means the returned point satisfies the termination tolerances.
	Optimal Status = iota
	// Infeasible means a primal infeasibility certificate was detected.
	Infeasible
	// Suboptimal means the iteration limit was reached before the
	// tolerances were met; the returned point is the best iterate.
	Suboptimal
	// SolverError means the problem data could not be processed (empty
	// problem, dimension mismatch or a failed factorization).
	SolverError
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Suboptimal:
		return "suboptimal"
	case SolverError:
		return "solver-error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result holds the solver outcome. X and Obj are only meaningful when
// Status is Optimal (or, as a best effort, Suboptimal).
type Result struct {
	Status     Status
	X          []float64
	Obj        float64
	Iterations int
}

type socBlock struct {
	rows [][]float64
	rhs  []float64
}

// Problem is a second-order-cone program under construction. All rows are
// dense over the n decision variables and are copied on insertion.
type Problem struct {
	n int
	c []float64

	eqRows [][]float64
	eqRHS  []float64
	inRows [][]float64
	inRHS  []float64
	socs   []socBlock
}

// NewProblem returns an empty problem over n real decision variables with a
// zero objective.
func NewProblem(n int) *Problem {
	return &Problem{n: n, c: make([]float64, n)}
}

// Vars returns the number of decision variables.
func (p *Problem) Vars() int { return p.n }

// Minimize sets the linear objective c'x.
func (p *Problem) Minimize(c []float64) {
	copy(p.c, c)
}

// AddEq adds the equality constraint row'x = rhs.
func (p *Problem) AddEq(row []float64, rhs float64) {
	p.eqRows = append(p.eqRows, cloneRow(row))
	p.eqRHS = append(p.eqRHS, rhs)
}

// AddIneq adds the inequality constraint row'x <= rhs.
func (p *Problem) AddIneq(row []float64, rhs float64) {
	p.inRows = append(p.inRows, cloneRow(row))
	p.inRHS = append(p.inRHS, rhs)
}

// AddSOC adds the second-order-cone constraint
//
//	|| (rows[1]'x - rhs[1], ..., rows[d-1]'x - rhs[d-1]) || <= rows[0]'x - rhs[0]
//
// A block needs at least two rows: the scalar side and one vector
// component.
func (p *Problem) AddSOC(rows [][]float64, rhs []float64) {
	if len(rows) < 2 || len(rows) != len(rhs) {
		panic("socp: a second-order cone block needs matching rows and rhs with at least two entries")
	}
	blk := socBlock{rows: make([][]float64, len(rows)), rhs: make([]float64, len(rhs))}
	for i, r := range rows {
		blk.rows[i] = cloneRow(r)
	}
	copy(blk.rhs, rhs)
	p.socs = append(p.socs, blk)
}

func cloneRow(row []float64) []float64 {
	r := make([]float64, len(row))
	copy(r, row)
	return r
}

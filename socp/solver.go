package socp

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Options tunes the operator-splitting iteration. The zero value selects
// the defaults.
type Options struct {
	MaxIterations int     // iteration limit, default 100000
	Eps           float64 // residual and gap tolerance, default 1e-5
	InfeasTol     float64 // infeasibility certificate tolerance, default 1e-5
	Rho           float64 // initial penalty on cone rows, default 0.1; equality rows use 1e3*Rho
	Sigma         float64 // primal regularization, default 1e-6
	Relax         float64 // over-relaxation factor, default 1.6
}

func (o *Options) setDefaults() {
	if o.MaxIterations == 0 {
		o.MaxIterations = 100000
	}
	if o.Eps == 0 {
		o.Eps = 1e-5
	}
	if o.InfeasTol == 0 {
		o.InfeasTol = 1e-5
	}
	if o.Rho == 0 {
		o.Rho = 0.1
	}
	if o.Sigma == 0 {
		o.Sigma = 1e-6
	}
	if o.Relax == 0 {
		o.Relax = 1.6
	}
}

const (
	eqRhoScale       = 1e3
	residualInterval = 25
	infeasInterval   = 100
	ruizIters        = 10
	rhoMin           = 1e-6
	rhoMax           = 1e6
	rhoAdaptFactor   = 5
)

// Solve runs the splitting iteration on the assembled problem. Each call is
// independent and reentrant: no state is shared across invocations.
//
// The problem data is first equilibrated with Ruiz row/column scaling so the
// iteration behaves on badly scaled programs, and the penalty parameter is
// adapted from the primal/dual residual ratio during the run, with a
// refactorization whenever it moves by more than a fixed factor.
func (p *Problem) Solve(opts Options) Result {
	opts.setDefaults()

	n := p.n
	mEq := len(p.eqRows)
	mIn := len(p.inRows)
	m := mEq + mIn
	socOff := make([]int, len(p.socs)+1)
	for i, blk := range p.socs {
		socOff[i] = m
		m += len(blk.rows)
	}
	socOff[len(p.socs)] = m
	if n == 0 || m == 0 {
		return Result{Status: SolverError}
	}

	// Standard form A x + s = b, s in K. Cone rows enter negated so that
	// s = b - A x lands in the cone.
	data := make([]float64, m*n)
	b := make([]float64, m)
	r := 0
	setRow := func(row []float64, rhs, sign float64) bool {
		if len(row) != n {
			return false
		}
		for j, v := range row {
			data[r*n+j] = sign * v
		}
		b[r] = sign * rhs
		r++
		return true
	}
	for i, row := range p.eqRows {
		if !setRow(row, p.eqRHS[i], 1) {
			return Result{Status: SolverError}
		}
	}
	for i, row := range p.inRows {
		if !setRow(row, p.inRHS[i], 1) {
			return Result{Status: SolverError}
		}
	}
	for _, blk := range p.socs {
		for i, row := range blk.rows {
			if !setRow(row, blk.rhs[i], -1) {
				return Result{Status: SolverError}
			}
		}
	}

	// Ruiz equilibration: scale rows and columns toward unit infinity norm.
	// All rows of one second-order cone block share a single factor, since
	// the cone is only invariant under a uniform positive scaling.
	d := make([]float64, n)
	e := make([]float64, m)
	for j := range d {
		d[j] = 1
	}
	for i := range e {
		e[i] = 1
	}
	rowN := make([]float64, m)
	colN := make([]float64, n)
	for it := 0; it < ruizIters; it++ {
		for i := range rowN {
			rowN[i] = 0
		}
		for j := range colN {
			colN[j] = 0
		}
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				a := math.Abs(data[i*n+j])
				if a > rowN[i] {
					rowN[i] = a
				}
				if a > colN[j] {
					colN[j] = a
				}
			}
		}
		for bi := range p.socs {
			blkMax := 0.0
			for i := socOff[bi]; i < socOff[bi+1]; i++ {
				if rowN[i] > blkMax {
					blkMax = rowN[i]
				}
			}
			for i := socOff[bi]; i < socOff[bi+1]; i++ {
				rowN[i] = blkMax
			}
		}
		for i := 0; i < m; i++ {
			if rowN[i] == 0 {
				continue
			}
			f := 1 / math.Sqrt(rowN[i])
			e[i] *= f
			for j := 0; j < n; j++ {
				data[i*n+j] *= f
			}
		}
		for j := 0; j < n; j++ {
			if colN[j] == 0 {
				continue
			}
			g := 1 / math.Sqrt(colN[j])
			d[j] *= g
			for i := 0; i < m; i++ {
				data[i*n+j] *= g
			}
		}
	}
	A := mat.NewDense(m, n, data)

	// Scale the right-hand side and cost onto the equilibrated problem.
	// With xs = sb * inv(D) x the constraint reads (E A D) xs + ss = sb*E b,
	// and ss = sb*E s stays in the cone.
	bs := make([]float64, m)
	for i := range bs {
		bs[i] = e[i] * b[i]
	}
	cs := make([]float64, n)
	for j := range cs {
		cs[j] = d[j] * p.c[j]
	}
	sb := 1 / math.Max(1, floats.Norm(bs, math.Inf(1)))
	sc := 1 / math.Max(1, floats.Norm(cs, math.Inf(1)))
	floats.Scale(sb, bs)
	floats.Scale(sc, cs)

	// Factorization of the regularized normal equations sigma*I + A'RA,
	// redone whenever the penalty is adapted.
	rhoBase := opts.Rho
	rho := make([]float64, m)
	setRho := func() {
		for i := 0; i < m; i++ {
			if i < mEq {
				rho[i] = eqRhoScale * rhoBase
			} else {
				rho[i] = rhoBase
			}
		}
	}
	var chol mat.Cholesky
	factorize := func() bool {
		W := mat.NewDense(m, n, nil)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				W.Set(i, j, rho[i]*A.At(i, j))
			}
		}
		var nrm mat.Dense
		nrm.Mul(A.T(), W)
		sym := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := (nrm.At(i, j) + nrm.At(j, i)) / 2
				if i == j {
					v += opts.Sigma
				}
				sym.SetSym(i, j, v)
			}
		}
		return chol.Factorize(sym)
	}
	setRho()
	if !factorize() {
		return Result{Status: SolverError}
	}

	x := make([]float64, n)
	s := make([]float64, m)
	y := make([]float64, m)
	ax := make([]float64, m)
	w := make([]float64, m)
	yPrev := make([]float64, m)
	dy := make([]float64, m)
	rhs := mat.NewVecDense(n, nil)
	xVec := mat.NewVecDense(n, x)
	axVec := mat.NewVecDense(m, ax)
	wVec := mat.NewVecDense(m, w)
	aty := mat.NewVecDense(n, nil)

	normB := floats.Norm(bs, 2)
	normC := floats.Norm(cs, 2)

	project := func(v []float64) {
		for i := 0; i < mEq; i++ {
			v[i] = 0
		}
		projNonneg(v[mEq : mEq+mIn])
		for i := range p.socs {
			projSOC(v[socOff[i]:socOff[i+1]])
		}
	}

	status := Suboptimal
	infeasHits := 0
	iter := 0
	for iter = 1; iter <= opts.MaxIterations; iter++ {
		// x-update: (sigma*I + A'RA) x = sigma*x - c + A'(R(b-s) - y).
		for i := 0; i < m; i++ {
			w[i] = rho[i]*(bs[i]-s[i]) - y[i]
		}
		rhs.MulVec(A.T(), wVec)
		for j := 0; j < n; j++ {
			rhs.SetVec(j, rhs.AtVec(j)+opts.Sigma*x[j]-cs[j])
		}
		if err := chol.SolveVecTo(xVec, rhs); err != nil {
			return Result{Status: SolverError, Iterations: iter}
		}
		axVec.MulVec(A, xVec)

		// s-update on the over-relaxed iterate, then dual ascent.
		for i := 0; i < m; i++ {
			axr := opts.Relax*ax[i] + (1-opts.Relax)*(bs[i]-s[i])
			w[i] = axr // reuse as the relaxed A x
			s[i] = bs[i] - axr - y[i]/rho[i]
		}
		project(s)
		for i := 0; i < m; i++ {
			y[i] += rho[i] * (w[i] + s[i] - bs[i])
		}

		if iter%residualInterval == 0 {
			rp := 0.0
			for i := 0; i < m; i++ {
				dd := ax[i] + s[i] - bs[i]
				rp += dd * dd
			}
			rp = math.Sqrt(rp) / (1 + math.Max(normB, floats.Norm(ax, 2)))
			aty.MulVec(A.T(), mat.NewVecDense(m, y))
			rd := 0.0
			for j := 0; j < n; j++ {
				dd := cs[j] + aty.AtVec(j)
				rd += dd * dd
			}
			rd = math.Sqrt(rd) / (1 + normC)
			pObj := floats.Dot(cs, x)
			dObj := -floats.Dot(bs, y)
			gap := math.Abs(pObj-dObj) / (1 + math.Abs(pObj) + math.Abs(dObj))
			if rp < opts.Eps && rd < opts.Eps && gap < opts.Eps {
				status = Optimal
				break
			}

			// Penalty adaptation from the residual balance. A large move
			// pays for one refactorization.
			next := rhoBase * math.Sqrt(rp/math.Max(rd, 1e-12))
			next = math.Min(math.Max(next, rhoMin), rhoMax)
			if next > rhoAdaptFactor*rhoBase || next < rhoBase/rhoAdaptFactor {
				rhoBase = next
				setRho()
				if !factorize() {
					return Result{Status: SolverError, Iterations: iter}
				}
			}
		}

		if iter%infeasInterval == 0 {
			// Primal infeasibility certificate on the successive dual
			// difference: A'dy ~ 0 with b'dy < 0, each normalized by
			// ||dy||. Two consecutive hits are required so that a slowly
			// converging feasible problem is never misreported.
			for i := 0; i < m; i++ {
				dy[i] = y[i] - yPrev[i]
			}
			copy(yPrev, y)
			nDy := floats.Norm(dy, math.Inf(1))
			certified := false
			if nDy > 0 {
				aty.MulVec(A.T(), mat.NewVecDense(m, dy))
				nAtDy := 0.0
				for j := 0; j < n; j++ {
					if a := math.Abs(aty.AtVec(j)); a > nAtDy {
						nAtDy = a
					}
				}
				certified = nAtDy <= opts.InfeasTol*nDy && floats.Dot(bs, dy) < -opts.InfeasTol*nDy
			}
			if certified {
				infeasHits++
				if infeasHits >= 2 {
					status = Infeasible
					break
				}
			} else {
				infeasHits = 0
			}
		}
	}
	if iter > opts.MaxIterations {
		iter = opts.MaxIterations
	}

	res := Result{Status: status, Iterations: iter}
	if status == Optimal || status == Suboptimal {
		res.X = make([]float64, n)
		for j := 0; j < n; j++ {
			res.X[j] = d[j] * x[j] / sb
		}
		res.Obj = floats.Dot(p.c, res.X)
	}
	return res
}

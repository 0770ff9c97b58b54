package gfold

import "gonum.org/v1/gonum/mat"

// Discretize converts the continuous-time linear-affine dynamics
//
//	dx/dt = A x + B u + p
//
// into the exact zero-order-hold recursion x[k+1] = Ad x[k] + Bd u[k] + pd
// for the step dt. The closed form is the matrix exponential of the
// augmented block matrix [[A B p]; 0] scaled by dt; a forward-Euler or
// low-order approximation is not acceptable here since the rotation and
// gravity terms are not negligible over a guidance step.
func Discretize(A mat.Matrix, B mat.Matrix, p mat.Vector, dt float64) (Ad, Bd *mat.Dense, pd *mat.VecDense) {
	n, _ := A.Dims()
	_, m := B.Dims()

	aug := mat.NewDense(n+m+1, n+m+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aug.Set(i, j, A.At(i, j)*dt)
		}
		for j := 0; j < m; j++ {
			aug.Set(i, n+j, B.At(i, j)*dt)
		}
		aug.Set(i, n+m, p.AtVec(i)*dt)
	}

	var expM mat.Dense
	expM.Exp(aug)

	Ad = mat.NewDense(n, n, nil)
	Bd = mat.NewDense(n, m, nil)
	pd = mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			Ad.Set(i, j, expM.At(i, j))
		}
		for j := 0; j < m; j++ {
			Bd.Set(i, j, expM.At(i, n+j))
		}
		pd.SetVec(i, expM.At(i, n+m))
	}
	return
}

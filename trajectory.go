package gfold

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Trajectory stores a discrete descent trajectory: either a guidance
// solution from Optimizer.Solve or the dense history of a Simulate run.
// States are stored column-wise over the N nodes of the time grid; inputs
// are held over the N-1 steps between nodes.
type Trajectory struct {
	Time    []float64  // N node times, s
	Pos     *mat.Dense // 3xN position, m
	Vel     *mat.Dense // 3xN velocity, m/s
	LogMass []float64  // N log-mass
	Accel   *mat.Dense // 3x(N-1) mass-normalized thrust acceleration, m/s^2
	Slack   []float64  // N-1 thrust magnitude slack, m/s^2

	// Cost is the fuel-proxy objective for a guidance solution and zero
	// for a simulated trajectory.
	Cost float64

	// Derived quantities, populated by finalize.
	Mass       []float64  // N vehicle mass, kg
	Thrust     *mat.Dense // 3x(N-1) physical thrust, N
	ThrustNorm []float64  // N-1 thrust magnitude, N
	PointAngle []float64  // N-1 thrust pointing angle off the vertical, rad
}

// Nodes returns the number of time grid nodes.
func (t *Trajectory) Nodes() int {
	return len(t.Time)
}

// State returns the 7-dimensional state [r; v; z] at node k.
func (t *Trajectory) State(k int) []float64 {
	x := make([]float64, StateDim)
	for i := 0; i < 3; i++ {
		x[i] = t.Pos.At(i, k)
		x[3+i] = t.Vel.At(i, k)
	}
	x[6] = t.LogMass[k]
	return x
}

// finalize derives mass, physical thrust, thrust magnitude and pointing
// angle from the decision variables. Thrust at step k is reconstructed with
// the mass at the step's start node.
func (t *Trajectory) finalize() {
	n := t.Nodes()
	t.Mass = make([]float64, n)
	for k := 0; k < n; k++ {
		t.Mass[k] = math.Exp(t.LogMass[k])
	}

	steps := n - 1
	if steps < 0 {
		steps = 0
	}
	t.ThrustNorm = make([]float64, steps)
	t.PointAngle = make([]float64, steps)
	thrust := mat.NewDense(3, maxInt(steps, 1), nil)
	for k := 0; k < steps; k++ {
		f := []float64{
			t.Accel.At(0, k) * t.Mass[k],
			t.Accel.At(1, k) * t.Mass[k],
			t.Accel.At(2, k) * t.Mass[k],
		}
		thrust.SetCol(k, f)
		t.ThrustNorm[k] = norm(f)
		if t.ThrustNorm[k] > 0 {
			t.PointAngle[k] = math.Acos(clamp(unit(f)[2], -1, 1))
		}
	}
	t.Thrust = thrust
}

// WriteCSV writes the trajectory as one record per node with the columns
// t, rx, ry, rz, vx, vy, vz, mass, Tx, Ty, Tz, Tnorm, point. Input-derived
// columns are empty on the final node, which has no input.
func (t *Trajectory) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"t", "rx", "ry", "rz", "vx", "vy", "vz", "mass", "Tx", "Ty", "Tz", "Tnorm", "point"}); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for k := 0; k < t.Nodes(); k++ {
		rec := []string{
			ff(t.Time[k]),
			ff(t.Pos.At(0, k)), ff(t.Pos.At(1, k)), ff(t.Pos.At(2, k)),
			ff(t.Vel.At(0, k)), ff(t.Vel.At(1, k)), ff(t.Vel.At(2, k)),
			ff(t.Mass[k]),
		}
		if k < t.Nodes()-1 {
			rec = append(rec,
				ff(t.Thrust.At(0, k)), ff(t.Thrust.At(1, k)), ff(t.Thrust.At(2, k)),
				ff(t.ThrustNorm[k]), ff(t.PointAngle[k]))
		} else {
			rec = append(rec, "", "", "", "", "")
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

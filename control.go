package gfold

import (
	"math"
	"sort"
)

// ControlLaw maps the current time and 7-dimensional state [r; v; log(m)]
// to a 4-dimensional input [mass-normalized thrust acceleration; magnitude
// slack]. The zero-order-hold replay law and any future closed-loop policy
// satisfy the same contract.
type ControlLaw interface {
	Control(t float64, x []float64) []float64
}

// ZOHLaw replays an optimized trajectory as a zero-order-hold control
// signal. It holds a reference to the immutable solution: the thrust
// commanded at a guidance node is reconstructed from the node's optimized
// mass, then renormalized by the mass the simulation actually carries, so
// the replay adapts to mass mismatch while remaining open loop in time.
type ZOHLaw struct {
	traj *Trajectory
}

// NewZOHLaw returns the replay law for a solved trajectory.
func NewZOHLaw(traj *Trajectory) *ZOHLaw {
	return &ZOHLaw{traj: traj}
}

// Control implements the ControlLaw interface. Beyond the optimized
// horizon the last computed input is held.
func (l *ZOHLaw) Control(t float64, x []float64) []float64 {
	// Latest guidance node at or before t.
	k := sort.SearchFloat64s(l.traj.Time, t+1e-12) - 1
	k = int(clamp(float64(k), 0, float64(l.traj.Nodes()-2)))

	m := math.Exp(x[6])
	u := make([]float64, InputDim)
	for i := 0; i < 3; i++ {
		u[i] = l.traj.Accel.At(i, k) * l.traj.Mass[k] / m
	}
	u[3] = l.traj.Slack[k] * l.traj.Mass[k] / m
	return u
}

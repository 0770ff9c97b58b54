package socp

import "math"

// projNonneg projects s onto the nonnegative orthant in place.
func projNonneg(s []float64) {
	for i, v := range s {
		if v < 0 {
			s[i] = 0
		}
	}
}

// projSOC projects s = (t, v) onto the second-order cone {||v|| <= t} in
// place.
func projSOC(s []float64) {
	t := s[0]
	nv := 0.0
	for _, v := range s[1:] {
		nv += v * v
	}
	nv = math.Sqrt(nv)

	switch {
	case nv <= t:
		// Inside the cone.
	case nv <= -t:
		// Inside the polar cone: the projection is the origin.
		for i := range s {
			s[i] = 0
		}
	default:
		scale := (t + nv) / (2 * nv)
		s[0] = (t + nv) / 2
		for i := 1; i < len(s); i++ {
			s[i] *= scale
		}
	}
}

package tidal

import (
	"math"
	"time"
)

// nodalSeries holds sin/cos Fourier coefficients in the lunar node
// longitude N for one constituent. f and u come from the modulus and
// argument of (term2 + i*term1).
type nodalSeries struct {
	term1Sin   map[int]float64
	term2Const float64
	term2Cos   map[int]float64
}

// Nodal modulation series for the principal constituents
// (Schureman 1958 tables, truncated at the second harmonic of N).
var nodalCoeffs = map[string]nodalSeries{
	"M2": {term1Sin: map[int]float64{1: -0.03731, 2: 0.00052}, term2Const: 1.0, term2Cos: map[int]float64{1: -0.03731, 2: 0.00052}},
	"S2": {term1Sin: map[int]float64{1: 0.00225}, term2Const: 1.0, term2Cos: map[int]float64{1: 0.00225}},
	"N2": {term1Sin: map[int]float64{1: -0.03731, 2: 0.00052}, term2Const: 1.0, term2Cos: map[int]float64{1: -0.03731, 2: 0.00052}},
	"K2": {term1Sin: map[int]float64{1: -0.3108, 2: -0.0324}, term2Const: 1.0, term2Cos: map[int]float64{1: 0.2852, 2: 0.0324}},
	"K1": {term1Sin: map[int]float64{1: -0.1554, 2: 0.0029}, term2Const: 1.0, term2Cos: map[int]float64{1: 0.1158, 2: -0.0029}},
	"O1": {term1Sin: map[int]float64{1: 0.189, 2: -0.0058}, term2Const: 1.0, term2Cos: map[int]float64{1: 0.189, 2: -0.0058}},
	"P1": {term1Sin: map[int]float64{1: -0.0112}, term2Const: 1.0, term2Cos: map[int]float64{1: -0.0112}},
	"Q1": {term1Sin: map[int]float64{1: 0.1886}, term2Const: 1.0, term2Cos: map[int]float64{1: 0.1886}},
}

// LunarNode returns the mean longitude of the lunar ascending node N
// in degrees at t (Schureman 1958).
func LunarNode(t time.Time) float64 {
	// Julian centuries from J2000.0; Unix epoch is 10957.5 days earlier.
	days := float64(t.Unix())/86400.0 - 10957.5
	T := days / 36525.0
	N := 125.04452 - 1934.136261*T + 0.0020708*T*T + T*T*T/450000.0
	N = math.Mod(N, 360.0)
	if N < 0 {
		N += 360.0
	}
	return N
}

// Corrections returns the nodal amplitude factor f and phase
// correction u (degrees) for a constituent at t. Constituents outside
// the modulation tables get the identity correction.
func Corrections(name string, t time.Time) (f, u float64) {
	coeff, ok := nodalCoeffs[name]
	if !ok {
		return 1.0, 0.0
	}
	nRad := deg2rad(LunarNode(t))
	term1 := 0.0
	for k, a := range coeff.term1Sin {
		term1 += a * math.Sin(float64(k)*nRad)
	}
	term2 := coeff.term2Const
	for k, b := range coeff.term2Cos {
		term2 += b * math.Cos(float64(k)*nRad)
	}
	f = math.Sqrt(term1*term1 + term2*term2)
	u = rad2deg(math.Atan2(term1, term2))
	return f, u
}

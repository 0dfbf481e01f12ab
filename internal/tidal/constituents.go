// Package tidal provides harmonic tidal-constituent arithmetic for
// building boundary forcing files and filling gaps in observed
// water-level series.
package tidal

import "math"

// Constituent angular speeds in degrees per hour.
var Speeds = map[string]float64{
	// Semidiurnal.
	"M2": 28.9841042,
	"S2": 30.0000000,
	"N2": 28.4397295,
	"K2": 30.0821373,

	// Diurnal.
	"K1": 15.0410686,
	"O1": 13.9430356,
	"P1": 14.9589314,
	"Q1": 13.3986609,

	// Shallow water.
	"M4":  57.9682084,
	"M6":  86.9523127,
	"MK3": 44.0251729,
	"S4":  60.0000000,
	"MN4": 57.4238337,
	"MS4": 58.9841042,

	// Long period.
	"Mf":  1.0980331,
	"Mm":  0.5443747,
	"Ssa": 0.0821373,
	"Sa":  0.0410686,
}

// Param holds the harmonic amplitude and phase of one constituent at
// one location.
type Param struct {
	Name          string
	AmplitudeM    float64
	PhaseDeg      float64
	SpeedDegPerHr float64
}

// Speed returns the angular speed of a named constituent.
func Speed(name string) (float64, bool) {
	speed, ok := Speeds[name]
	return speed, ok
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func rad2deg(r float64) float64 { return r * 180 / math.Pi }

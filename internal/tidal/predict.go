package tidal

import (
	"math"
	"time"
)

// Level is one predicted water level.
type Level struct {
	Time    time.Time
	HeightM float64
}

// Prediction holds everything needed to synthesize a water-level
// series from harmonic constituents at one location.
type Prediction struct {
	Constituents  []Param
	MSL           float64
	ReferenceTime time.Time
	ApplyNodal    bool
}

// Height returns the predicted water level at t:
//
//	h(t) = MSL + sum_k f_k A_k cos(w_k dt + u_k - phi_k)
func (p Prediction) Height(t time.Time) float64 {
	dtHours := t.Sub(p.ReferenceTime).Hours()
	height := p.MSL
	for _, c := range p.Constituents {
		f, u := 1.0, 0.0
		if p.ApplyNodal {
			f, u = Corrections(c.Name, t)
		}
		phase := deg2rad(c.SpeedDegPerHr*dtHours + u - c.PhaseDeg)
		height += f * c.AmplitudeM * math.Cos(phase)
	}
	return height
}

// Series predicts water levels from start to end inclusive at interval.
func (p Prediction) Series(start, end time.Time, interval time.Duration) []Level {
	levels := make([]Level, 0)
	for t := start; !t.After(end); t = t.Add(interval) {
		levels = append(levels, Level{Time: t, HeightM: p.Height(t)})
	}
	return levels
}

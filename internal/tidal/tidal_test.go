package tidal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedKnownConstituents(t *testing.T) {
	speed, ok := Speed("M2")
	require.True(t, ok)
	assert.InDelta(t, 28.9841042, speed, 1e-7)

	_, ok = Speed("XX9")
	assert.False(t, ok)
}

func TestCorrectionsIdentityForUnknown(t *testing.T) {
	f, u := Corrections("Sa", time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1.0, f)
	assert.Equal(t, 0.0, u)
}

func TestCorrectionsS2NearIdentity(t *testing.T) {
	f, u := Corrections("S2", time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 1.0, f, 0.01)
	assert.InDelta(t, 0.0, u, 0.5)
}

func TestCorrectionsM2Range(t *testing.T) {
	// M2 nodal factor varies roughly between 0.96 and 1.04 over the
	// 18.6 year cycle.
	for year := 2014; year <= 2033; year++ {
		f, u := Corrections("M2", time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC))
		assert.Greater(t, f, 0.95, "year %d", year)
		assert.Less(t, f, 1.05, "year %d", year)
		assert.Less(t, math.Abs(u), 3.0, "year %d", year)
	}
}

func TestLunarNodeWrapsToDegrees(t *testing.T) {
	for _, date := range []time.Time{
		time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 7, 15, 12, 0, 0, 0, time.UTC),
	} {
		n := LunarNode(date)
		assert.GreaterOrEqual(t, n, 0.0)
		assert.Less(t, n, 360.0)
	}
}

func TestHeightSingleConstituent(t *testing.T) {
	ref := time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC)
	p := Prediction{
		Constituents: []Param{
			{Name: "S2", AmplitudeM: 1.0, PhaseDeg: 0, SpeedDegPerHr: 30.0},
		},
		MSL:           3.0,
		ReferenceTime: ref,
	}

	// S2 has a 12 h period: maximum at t=0, minimum 6 h later.
	assert.InDelta(t, 4.0, p.Height(ref), 1e-9)
	assert.InDelta(t, 2.0, p.Height(ref.Add(6*time.Hour)), 1e-9)
	assert.InDelta(t, 4.0, p.Height(ref.Add(12*time.Hour)), 1e-9)
}

func TestSeriesCoversRangeInclusive(t *testing.T) {
	ref := time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC)
	p := Prediction{
		Constituents:  []Param{{Name: "M2", AmplitudeM: 0.8, PhaseDeg: 31.0, SpeedDegPerHr: 28.9841042}},
		ReferenceTime: ref,
	}
	levels := p.Series(ref, ref.Add(24*time.Hour), time.Hour)
	require.Len(t, levels, 25)
	assert.Equal(t, ref, levels[0].Time)
	assert.Equal(t, ref.Add(24*time.Hour), levels[24].Time)

	// Amplitude bound: |h| <= f*A with f close to 1.
	for _, lv := range levels {
		assert.LessOrEqual(t, math.Abs(lv.HeightM), 0.9)
	}
}

func TestNodalModulationChangesHeight(t *testing.T) {
	ref := time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC)
	base := Prediction{
		Constituents:  []Param{{Name: "K2", AmplitudeM: 1.0, PhaseDeg: 0, SpeedDegPerHr: 30.0821373}},
		ReferenceTime: ref,
	}
	modulated := base
	modulated.ApplyNodal = true

	at := ref.Add(3 * time.Hour)
	assert.NotEqual(t, base.Height(at), modulated.Height(at))
}

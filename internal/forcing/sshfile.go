package forcing

import (
	"fmt"
	"math"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/pkg/errors"

	"github.com/salishsea-meopar/nowcast/internal/tidal"
)

var ErrNoObservations = errors.New("forcing: no usable water level observations")

// ObsLevel is one observed water level. NaN marks a missing reading.
type ObsLevel struct {
	Time    time.Time
	HeightM float64
}

// SSHAnomalies converts hourly Neah Bay water levels into hourly
// sea-surface-height anomalies relative to the harmonic tide
// prediction. Gaps in the observations get linearly interpolated
// anomalies; leading and trailing gaps take the nearest known anomaly.
func SSHAnomalies(obs []ObsLevel, pred tidal.Prediction) ([]float64, error) {
	anomalies := make([]float64, len(obs))
	known := 0
	for i, o := range obs {
		if math.IsNaN(o.HeightM) {
			anomalies[i] = math.NaN()
			continue
		}
		anomalies[i] = o.HeightM - pred.Height(o.Time)
		known++
	}
	if known == 0 {
		return nil, ErrNoObservations
	}
	fillGaps(anomalies)
	return anomalies, nil
}

func fillGaps(series []float64) {
	n := len(series)

	first, last := -1, -1
	for i, v := range series {
		if !math.IsNaN(v) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	for i := 0; i < first; i++ {
		series[i] = series[first]
	}
	for i := last + 1; i < n; i++ {
		series[i] = series[last]
	}

	// Interior gaps: linear interpolation between bracketing values.
	for i := first + 1; i < last; i++ {
		if !math.IsNaN(series[i]) {
			continue
		}
		lo := i - 1
		hi := i
		for math.IsNaN(series[hi]) {
			hi++
		}
		step := (series[hi] - series[lo]) / float64(hi-lo)
		for k := lo + 1; k < hi; k++ {
			series[k] = series[lo] + step*float64(k-lo)
		}
		i = hi
	}
}

// WriteSSHFile writes the hourly western-boundary sea-surface-height
// forcing file: sossheig(time_counter, yb, xb) with the anomaly
// replicated along the boundary.
func WriteSSHFile(path string, seg BoundarySegment, anomalies []float64, start time.Time) error {
	if len(anomalies) == 0 {
		return ErrNoObservations
	}
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer ds.Close()

	timeDim, err := ds.AddDim("time_counter", uint64(len(anomalies)))
	if err != nil {
		return errors.Wrap(err, "add time_counter dimension")
	}
	ybDim, err := ds.AddDim("yb", 1)
	if err != nil {
		return errors.Wrap(err, "add yb dimension")
	}
	xbDim, err := ds.AddDim("xb", uint64(seg.Length))
	if err != nil {
		return errors.Wrap(err, "add xb dimension")
	}

	timeVar, err := ds.AddVar("time_counter", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return errors.Wrap(err, "add time_counter variable")
	}
	units := fmt.Sprintf("hours since %s", start.UTC().Format("2006-01-02 15:04:05"))
	if err := writeVarAttrs(timeVar, units, "time axis"); err != nil {
		return err
	}

	ssh, err := ds.AddVar("sossheig", netcdf.DOUBLE, []netcdf.Dim{timeDim, ybDim, xbDim})
	if err != nil {
		return errors.Wrap(err, "add sossheig variable")
	}
	if err := writeVarAttrs(ssh, "m", "sea surface height anomaly"); err != nil {
		return err
	}

	nbi, err := addIntVar(ds, "nbidta", []netcdf.Dim{ybDim, xbDim}, "i grid position")
	if err != nil {
		return err
	}
	nbj, err := addIntVar(ds, "nbjdta", []netcdf.Dim{ybDim, xbDim}, "j grid position")
	if err != nil {
		return err
	}

	attrs := StandardAttrs(
		"Neah Bay sea surface height open boundary conditions",
		"NOAA Neah Bay observed and forecast water levels",
		fmt.Sprintf("%s boundary ssh anomalies, hourly from %s",
			seg.Name, start.UTC().Format("2006-01-02 15:04")),
		"nowcast-worker get-neahbay-ssh", time.Now())
	if err := WriteAttrs(ds, attrs); err != nil {
		return err
	}

	hours := make([]float64, len(anomalies))
	for i := range hours {
		hours[i] = float64(i)
	}
	if err := timeVar.WriteFloat64s(hours); err != nil {
		return errors.Wrap(err, "write time_counter")
	}

	field := make([]float64, len(anomalies)*seg.Length)
	for t, a := range anomalies {
		for k := 0; k < seg.Length; k++ {
			field[t*seg.Length+k] = a
		}
	}
	if err := ssh.WriteFloat64s(field); err != nil {
		return errors.Wrap(err, "write sossheig")
	}

	iIdx, jIdx, _ := boundaryIndexes(seg)
	if err := nbi.WriteInt32s(iIdx); err != nil {
		return errors.Wrap(err, "write nbidta")
	}
	if err := nbj.WriteInt32s(jIdx); err != nil {
		return errors.Wrap(err, "write nbjdta")
	}
	return nil
}

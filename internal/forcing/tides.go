package forcing

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/pkg/errors"

	"github.com/salishsea-meopar/nowcast/internal/tidal"
)

// BoundarySegment locates the open boundary in the model grid: the
// run of (i, j) cells the harmonics apply to.
type BoundarySegment struct {
	Name     string
	IStart   int
	JStart   int
	Length   int
	AlongRow bool // boundary runs along a grid row (varying i) rather than a column
}

// TideHarmonics holds one constituent's harmonics along a boundary
// segment. Current harmonics are optional; elevation is required.
type TideHarmonics struct {
	Constituent  tidal.Param
	ElevAmpM     []float64
	ElevPhaseDeg []float64
	UAmpMS       []float64
	UPhaseDeg    []float64
	VAmpMS       []float64
	VPhaseDeg    []float64
}

// Validate checks array lengths against the boundary segment.
func (h TideHarmonics) Validate(seg BoundarySegment) error {
	if len(h.ElevAmpM) != seg.Length || len(h.ElevPhaseDeg) != seg.Length {
		return errors.Errorf(
			"constituent %s: elevation harmonics length %d/%d does not match boundary length %d",
			h.Constituent.Name, len(h.ElevAmpM), len(h.ElevPhaseDeg), seg.Length)
	}
	if (len(h.UAmpMS) > 0 && len(h.UAmpMS) != seg.Length) ||
		(len(h.VAmpMS) > 0 && len(h.VAmpMS) != seg.Length) {
		return errors.Errorf(
			"constituent %s: current harmonics do not match boundary length %d",
			h.Constituent.Name, seg.Length)
	}
	return nil
}

// WriteTideFiles writes the NEMO tidal boundary files for one
// constituent: <name>_grid_T.nc (elevation) and, when current
// harmonics are present, <name>_grid_U.nc and <name>_grid_V.nc.
// It returns the paths written.
func WriteTideFiles(dir string, seg BoundarySegment, h TideHarmonics, now time.Time) ([]string, error) {
	if err := h.Validate(seg); err != nil {
		return nil, err
	}

	name := h.Constituent.Name
	paths := []string{filepath.Join(dir, fmt.Sprintf("SalishSea_%s_grid_T.nc", name))}
	z1, z2 := harmonicComponents(h.ElevAmpM, h.ElevPhaseDeg)
	err := writeTideFile(paths[0], seg, name, "z1", "z2", "m",
		"tidal elevation: cosine", "tidal elevation: sine", z1, z2, now)
	if err != nil {
		return nil, err
	}

	if len(h.UAmpMS) > 0 {
		path := filepath.Join(dir, fmt.Sprintf("SalishSea_%s_grid_U.nc", name))
		u1, u2 := harmonicComponents(h.UAmpMS, h.UPhaseDeg)
		err := writeTideFile(path, seg, name, "u1", "u2", "m/s",
			"tidal x-velocity: cosine", "tidal x-velocity: sine", u1, u2, now)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	if len(h.VAmpMS) > 0 {
		path := filepath.Join(dir, fmt.Sprintf("SalishSea_%s_grid_V.nc", name))
		v1, v2 := harmonicComponents(h.VAmpMS, h.VPhaseDeg)
		err := writeTideFile(path, seg, name, "v1", "v2", "m/s",
			"tidal y-velocity: cosine", "tidal y-velocity: sine", v1, v2, now)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// harmonicComponents converts amplitude/phase harmonics to the
// cosine/sine component pair NEMO expects.
func harmonicComponents(amp, phaseDeg []float64) (c1, c2 []float64) {
	c1 = make([]float64, len(amp))
	c2 = make([]float64, len(amp))
	for i := range amp {
		rad := phaseDeg[i] * math.Pi / 180
		c1[i] = amp[i] * math.Cos(rad)
		c2[i] = amp[i] * math.Sin(rad)
	}
	return c1, c2
}

func writeTideFile(
	path string, seg BoundarySegment, constituent,
	var1, var2, units, long1, long2 string,
	c1, c2 []float64, now time.Time,
) error {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer ds.Close()

	xbDim, err := ds.AddDim("xb", uint64(seg.Length))
	if err != nil {
		return errors.Wrap(err, "add xb dimension")
	}
	ybDim, err := ds.AddDim("yb", 1)
	if err != nil {
		return errors.Wrap(err, "add yb dimension")
	}
	dims := []netcdf.Dim{ybDim, xbDim}

	nbi, err := addIntVar(ds, "nbidta", dims, "i grid position")
	if err != nil {
		return err
	}
	nbj, err := addIntVar(ds, "nbjdta", dims, "j grid position")
	if err != nil {
		return err
	}
	nbr, err := addIntVar(ds, "nbrdta", dims, "boundary discretization rank")
	if err != nil {
		return err
	}

	v1Var, err := ds.AddVar(var1, netcdf.DOUBLE, dims)
	if err != nil {
		return errors.Wrapf(err, "add %s variable", var1)
	}
	if err := writeVarAttrs(v1Var, units, long1); err != nil {
		return err
	}
	v2Var, err := ds.AddVar(var2, netcdf.DOUBLE, dims)
	if err != nil {
		return errors.Wrapf(err, "add %s variable", var2)
	}
	if err := writeVarAttrs(v2Var, units, long2); err != nil {
		return err
	}

	attrs := StandardAttrs(
		fmt.Sprintf("Tidal %s boundary conditions, %s boundary", constituent, seg.Name),
		"tidegen harmonic boundary builder",
		fmt.Sprintf("%s and %s harmonics for the %s open boundary", var1, var2, seg.Name),
		fmt.Sprintf("tidegen %s", constituent), now)
	if err := WriteAttrs(ds, attrs); err != nil {
		return err
	}

	iIdx, jIdx, rank := boundaryIndexes(seg)
	if err := nbi.WriteInt32s(iIdx); err != nil {
		return errors.Wrap(err, "write nbidta")
	}
	if err := nbj.WriteInt32s(jIdx); err != nil {
		return errors.Wrap(err, "write nbjdta")
	}
	if err := nbr.WriteInt32s(rank); err != nil {
		return errors.Wrap(err, "write nbrdta")
	}
	if err := v1Var.WriteFloat64s(c1); err != nil {
		return errors.Wrapf(err, "write %s", var1)
	}
	if err := v2Var.WriteFloat64s(c2); err != nil {
		return errors.Wrapf(err, "write %s", var2)
	}
	return nil
}

func addIntVar(ds netcdf.Dataset, name string, dims []netcdf.Dim, longName string) (netcdf.Var, error) {
	v, err := ds.AddVar(name, netcdf.INT, dims)
	if err != nil {
		return netcdf.Var{}, errors.Wrapf(err, "add %s variable", name)
	}
	if err := writeVarAttrs(v, "non dim", longName); err != nil {
		return netcdf.Var{}, err
	}
	return v, nil
}

func boundaryIndexes(seg BoundarySegment) (iIdx, jIdx, rank []int32) {
	iIdx = make([]int32, seg.Length)
	jIdx = make([]int32, seg.Length)
	rank = make([]int32, seg.Length)
	for k := 0; k < seg.Length; k++ {
		if seg.AlongRow {
			iIdx[k] = int32(seg.IStart + k)
			jIdx[k] = int32(seg.JStart)
		} else {
			iIdx[k] = int32(seg.IStart)
			jIdx[k] = int32(seg.JStart + k)
		}
		rank[k] = 1
	}
	return iIdx, jIdx, rank
}

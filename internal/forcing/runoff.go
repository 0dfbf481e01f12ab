package forcing

import (
	"fmt"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/pkg/errors"
)

const waterDensity = 1000.0 // kg/m^3

// GridCell is one (j, i) cell of the model grid.
type GridCell struct {
	J int
	I int
}

// RiverMouth maps a gauged river onto the grid cells its discharge is
// spread over.
type RiverMouth struct {
	Name       string
	Cells      []GridCell
	CellAreaM2 float64
	// FlowFraction scales the gauged flow up to the full watershed
	// (gauges sit upstream of ungauged tributaries).
	FlowFraction float64
}

// RunoffGrid accumulates river discharge onto the model grid as a
// surface freshwater flux in kg/m^2/s.
type RunoffGrid struct {
	NY, NX int
	Flux   []float64
}

// NewRunoffGrid returns a zeroed runoff field of the given grid shape.
func NewRunoffGrid(ny, nx int) *RunoffGrid {
	return &RunoffGrid{NY: ny, NX: nx, Flux: make([]float64, ny*nx)}
}

// AddRiver spreads flowM3S of discharge over the river's cells.
func (g *RunoffGrid) AddRiver(river RiverMouth, flowM3S float64) error {
	if len(river.Cells) == 0 {
		return errors.Errorf("river %s has no grid cells", river.Name)
	}
	if river.CellAreaM2 <= 0 {
		return errors.Errorf("river %s has non-positive cell area", river.Name)
	}
	fraction := river.FlowFraction
	if fraction <= 0 {
		fraction = 1
	}
	perCell := flowM3S * fraction * waterDensity / (river.CellAreaM2 * float64(len(river.Cells)))
	for _, cell := range river.Cells {
		if cell.J < 0 || cell.J >= g.NY || cell.I < 0 || cell.I >= g.NX {
			return errors.Errorf(
				"river %s cell (%d, %d) outside %dx%d grid", river.Name, cell.J, cell.I, g.NY, g.NX)
		}
		g.Flux[cell.J*g.NX+cell.I] += perCell
	}
	return nil
}

// WriteRunoffFile writes the daily runoff forcing file for runDate.
func WriteRunoffFile(path string, grid *RunoffGrid, runDate time.Time) error {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer ds.Close()

	yDim, err := ds.AddDim("y", uint64(grid.NY))
	if err != nil {
		return errors.Wrap(err, "add y dimension")
	}
	xDim, err := ds.AddDim("x", uint64(grid.NX))
	if err != nil {
		return errors.Wrap(err, "add x dimension")
	}

	runoff, err := ds.AddVar("rorunoff", netcdf.DOUBLE, []netcdf.Dim{yDim, xDim})
	if err != nil {
		return errors.Wrap(err, "add rorunoff variable")
	}
	if err := writeVarAttrs(runoff, "kg m-2 s-1", "river runoff freshwater flux"); err != nil {
		return err
	}

	attrs := StandardAttrs(
		fmt.Sprintf("River runoff forcing for %s", runDate.Format("2006-01-02")),
		"gauged discharge spread over river mouth cells",
		"daily runoff from fitted monthly climatology and gauged flows",
		fmt.Sprintf("nowcast-worker make-runoff --run-date %s", runDate.Format("2006-01-02")),
		time.Now())
	if err := WriteAttrs(ds, attrs); err != nil {
		return err
	}

	if err := runoff.WriteFloat64s(grid.Flux); err != nil {
		return errors.Wrap(err, "write rorunoff")
	}
	return nil
}

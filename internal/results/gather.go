// Package results recombines per-processor NEMO result files into
// whole-domain files. NEMO's MPI decomposition writes one NetCDF file
// per rank carrying DOMAIN_* attributes that locate the rank's
// subdomain in the global grid.
package results

import (
	"fmt"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/pkg/errors"
)

var (
	ErrNoRankFiles        = errors.New("results: no per-processor files")
	ErrInconsistentDomain = errors.New("results: inconsistent global domain size")
)

// Subdomain describes one rank's slab of the global grid
// (1-based inclusive positions, NEMO convention).
type Subdomain struct {
	Path     string
	GlobalNX int
	GlobalNY int
	FirstI   int
	FirstJ   int
	LastI    int
	LastJ    int
}

func (s Subdomain) nx() int { return s.LastI - s.FirstI + 1 }
func (s Subdomain) ny() int { return s.LastJ - s.FirstJ + 1 }

// ReadDecomposition reads the DOMAIN_* global attributes of one
// per-rank file.
func ReadDecomposition(path string) (Subdomain, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return Subdomain{}, errors.Wrapf(err, "open %s", path)
	}
	defer ds.Close()

	sizeGlobal, err := readIntPair(ds, "DOMAIN_size_global")
	if err != nil {
		return Subdomain{}, errors.Wrapf(err, "%s", path)
	}
	first, err := readIntPair(ds, "DOMAIN_position_first")
	if err != nil {
		return Subdomain{}, errors.Wrapf(err, "%s", path)
	}
	last, err := readIntPair(ds, "DOMAIN_position_last")
	if err != nil {
		return Subdomain{}, errors.Wrapf(err, "%s", path)
	}

	sub := Subdomain{
		Path:     path,
		GlobalNX: int(sizeGlobal[0]),
		GlobalNY: int(sizeGlobal[1]),
		FirstI:   int(first[0]),
		FirstJ:   int(first[1]),
		LastI:    int(last[0]),
		LastJ:    int(last[1]),
	}
	if sub.nx() <= 0 || sub.ny() <= 0 {
		return Subdomain{}, errors.Errorf("results: degenerate subdomain in %s", path)
	}
	return sub, nil
}

func readIntPair(ds netcdf.Dataset, name string) ([2]int32, error) {
	var pair [2]int32
	a := ds.Attr(name)
	buf := make([]int32, 2)
	if err := a.ReadInt32s(buf); err != nil {
		return pair, errors.Wrapf(err, "read attribute %s", name)
	}
	pair[0], pair[1] = buf[0], buf[1]
	return pair, nil
}

// Gather recombines the named 2D (y, x) variables from the per-rank
// files into a single whole-domain file at outPath.
func Gather(outPath string, varNames []string, rankPaths []string) error {
	if len(rankPaths) == 0 {
		return ErrNoRankFiles
	}

	subs := make([]Subdomain, len(rankPaths))
	for i, path := range rankPaths {
		sub, err := ReadDecomposition(path)
		if err != nil {
			return err
		}
		if i > 0 && (sub.GlobalNX != subs[0].GlobalNX || sub.GlobalNY != subs[0].GlobalNY) {
			return errors.Wrapf(ErrInconsistentDomain,
				"%s says %dx%d but %s says %dx%d",
				subs[0].Path, subs[0].GlobalNX, subs[0].GlobalNY,
				sub.Path, sub.GlobalNX, sub.GlobalNY)
		}
		subs[i] = sub
	}

	nx, ny := subs[0].GlobalNX, subs[0].GlobalNY
	fields := make(map[string][]float64, len(varNames))
	attrs := make(map[string][2]string, len(varNames))
	for _, name := range varNames {
		fields[name] = make([]float64, nx*ny)
	}

	for _, sub := range subs {
		if err := copySubdomain(sub, varNames, fields, attrs, nx); err != nil {
			return err
		}
	}

	return writeGathered(outPath, varNames, fields, attrs, nx, ny, len(rankPaths))
}

func copySubdomain(
	sub Subdomain, varNames []string,
	fields map[string][]float64, attrs map[string][2]string, globalNX int,
) error {
	ds, err := netcdf.OpenFile(sub.Path, netcdf.NOWRITE)
	if err != nil {
		return errors.Wrapf(err, "open %s", sub.Path)
	}
	defer ds.Close()

	snx, sny := sub.nx(), sub.ny()
	for _, name := range varNames {
		v, err := ds.Var(name)
		if err != nil {
			return errors.Wrapf(err, "variable %s missing from %s", name, sub.Path)
		}
		data := make([]float64, snx*sny)
		if err := v.ReadFloat64s(data); err != nil {
			return errors.Wrapf(err, "read %s from %s", name, sub.Path)
		}
		dst := fields[name]
		for j := 0; j < sny; j++ {
			srcRow := data[j*snx : (j+1)*snx]
			dstOff := (sub.FirstJ-1+j)*globalNX + (sub.FirstI - 1)
			copy(dst[dstOff:dstOff+snx], srcRow)
		}
		if _, ok := attrs[name]; !ok {
			attrs[name] = [2]string{readStringAttr(v, "units"), readStringAttr(v, "long_name")}
		}
	}
	return nil
}

func readStringAttr(v netcdf.Var, name string) string {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return string(buf)
}

func writeGathered(
	outPath string, varNames []string,
	fields map[string][]float64, attrs map[string][2]string, nx, ny, nRanks int,
) error {
	out, err := netcdf.CreateFile(outPath, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return errors.Wrapf(err, "create %s", outPath)
	}
	defer out.Close()

	yDim, err := out.AddDim("y", uint64(ny))
	if err != nil {
		return errors.Wrap(err, "add y dimension")
	}
	xDim, err := out.AddDim("x", uint64(nx))
	if err != nil {
		return errors.Wrap(err, "add x dimension")
	}

	history := fmt.Sprintf("[%s] ncgather %d files",
		time.Now().UTC().Format("2006-01-02 15:04:05"), nRanks)
	if err := out.Attr("history").WriteBytes([]byte(history)); err != nil {
		return errors.Wrap(err, "write history attribute")
	}

	for _, name := range varNames {
		v, err := out.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{yDim, xDim})
		if err != nil {
			return errors.Wrapf(err, "add %s variable", name)
		}
		meta := attrs[name]
		if meta[0] != "" {
			if err := v.Attr("units").WriteBytes([]byte(meta[0])); err != nil {
				return errors.Wrapf(err, "write %s units", name)
			}
		}
		if meta[1] != "" {
			if err := v.Attr("long_name").WriteBytes([]byte(meta[1])); err != nil {
				return errors.Wrapf(err, "write %s long_name", name)
			}
		}
		if err := v.WriteFloat64s(fields[name]); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
	}
	return nil
}

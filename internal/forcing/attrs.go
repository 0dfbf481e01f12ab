// Package forcing builds the NetCDF boundary-condition files consumed
// by the NEMO Salish Sea configuration: tidal-constituent boundary
// files, river runoff, and sea-surface-height open boundary conditions.
package forcing

import (
	"fmt"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/pkg/errors"
)

const (
	institution = "UBC EOAS & DFO IOS"
	conventions = "CF-1.6"
	projectURL  = "https://salishsea-meopar-docs.readthedocs.org/"
)

// DatasetAttrs are the global attributes every produced dataset
// carries.
type DatasetAttrs struct {
	Title      string
	Source     string
	References string
	Comment    string
	History    string
}

// StandardAttrs returns the conventional global attributes for a file
// produced by tool with the given command line.
func StandardAttrs(title, source, comment, cmdline string, now time.Time) DatasetAttrs {
	return DatasetAttrs{
		Title:      title,
		Source:     source,
		References: projectURL,
		Comment:    comment,
		History:    fmt.Sprintf("[%s] %s", now.UTC().Format("2006-01-02 15:04:05"), cmdline),
	}
}

// WriteAttrs writes the global attributes onto an open dataset in
// define mode.
func WriteAttrs(ds netcdf.Dataset, attrs DatasetAttrs) error {
	pairs := []struct {
		name, value string
	}{
		{"Conventions", conventions},
		{"title", attrs.Title},
		{"institution", institution},
		{"source", attrs.Source},
		{"references", attrs.References},
		{"history", attrs.History},
		{"comment", attrs.Comment},
	}
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		if err := ds.Attr(p.name).WriteBytes([]byte(p.value)); err != nil {
			return errors.Wrapf(err, "write global attribute %s", p.name)
		}
	}
	return nil
}

func writeVarAttrs(v netcdf.Var, units, longName string) error {
	if units != "" {
		if err := v.Attr("units").WriteBytes([]byte(units)); err != nil {
			return errors.Wrap(err, "write units attribute")
		}
	}
	if longName != "" {
		if err := v.Attr("long_name").WriteBytes([]byte(longName)); err != nil {
			return errors.Wrap(err, "write long_name attribute")
		}
	}
	return nil
}

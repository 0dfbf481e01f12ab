package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parro-it/fileargs"
	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/forcing"
	"github.com/salishsea-meopar/nowcast/internal/logging"
	"github.com/salishsea-meopar/nowcast/internal/tidal"
)

const usage = `usage: tidegen [flags] <start date> [<end date>]
       tidegen [flags] -dates <dates file>

Dates are YYYY-MM-DD. One set of tidal boundary files is written per
run period, nodal corrections evaluated at the period midpoint.
`

func main() {
	table := flag.String("table", "", "TOML constituent table (required)")
	out := flag.String("out", ".", "output directory root")
	datesFile := flag.String("dates", "", "run periods file (one YYYYMMDDHH duration line per period)")
	segName := flag.String("boundary", "west", "boundary segment name")
	iStart := flag.Int("istart", 1, "boundary start i index")
	jStart := flag.Int("jstart", 384, "boundary start j index")
	length := flag.Int("length", 87, "boundary length in grid cells")
	alongRow := flag.Bool("alongrow", false, "boundary runs along a grid row")
	flag.Parse()

	logging.ConfigureDebug("tidegen")
	if *table == "" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	periods, err := runPeriods(*datesFile, flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read run periods")
	}

	pred, err := tidal.LoadTable(*table)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load constituent table")
	}
	seg := forcing.BoundarySegment{
		Name:     *segName,
		IStart:   *iStart,
		JStart:   *jStart,
		Length:   *length,
		AlongRow: *alongRow,
	}

	now := time.Now()
	for _, period := range periods {
		dir := filepath.Join(*out, period.Start.Format("20060102"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("failed to create output directory")
		}
		mid := period.Start.Add(period.Duration / 2)
		for _, c := range pred.Constituents {
			h := boundaryHarmonics(c, seg.Length, pred.ApplyNodal, mid)
			paths, err := forcing.WriteTideFiles(dir, seg, h, now)
			if err != nil {
				log.Fatal().Err(err).Str("constituent", c.Name).
					Msg("failed to write tide files")
			}
			for _, p := range paths {
				log.Info().Str("path", p).Msg("wrote")
			}
		}
	}
}

// boundaryHarmonics spreads one constituent's harmonics uniformly
// along the boundary, with nodal corrections folded into the
// amplitude and phase when requested.
func boundaryHarmonics(c tidal.Param, length int, nodal bool, at time.Time) forcing.TideHarmonics {
	amp, phase := c.AmplitudeM, c.PhaseDeg
	if nodal {
		f, u := tidal.Corrections(c.Name, at)
		amp *= f
		phase -= u
	}
	amps := make([]float64, length)
	phases := make([]float64, length)
	for i := range amps {
		amps[i] = amp
		phases[i] = phase
	}
	return forcing.TideHarmonics{
		Constituent:  c,
		ElevAmpM:     amps,
		ElevPhaseDeg: phases,
	}
}

// runPeriods reads periods from a dates file, or builds a single
// period from start/end date arguments.
func runPeriods(datesFile string, args []string) ([]*fileargs.Period, error) {
	if datesFile != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(cwd, datesFile)
		if err != nil {
			rel = datesFile
		}
		fa, err := fileargs.ReadFile(os.DirFS(cwd), rel)
		if err != nil {
			return nil, err
		}
		return fa.Periods, nil
	}

	if len(args) < 1 || len(args) > 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	start, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return nil, fmt.Errorf("bad start date %q: %w", args[0], err)
	}
	duration := 24 * time.Hour
	if len(args) == 2 {
		end, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			return nil, fmt.Errorf("bad end date %q: %w", args[1], err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("end date %s is not after start date %s", args[1], args[0])
		}
		duration = end.Sub(start)
	}
	return []*fileargs.Period{{Start: start, Duration: duration}}, nil
}

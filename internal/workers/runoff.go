package workers

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/forcing"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

// Model grid shape.
const (
	gridNY = 898
	gridNX = 398
)

// riverMouths maps gauged rivers onto their discharge cells. The flow
// fractions scale gauged flow up to full watershed discharge; the
// Fraser carries most of the freshwater into the Strait of Georgia.
var riverMouths = map[string]forcing.RiverMouth{
	"Fraser": {
		Name: "Fraser",
		Cells: []forcing.GridCell{
			{J: 500, I: 394}, {J: 500, I: 395},
			{J: 501, I: 394}, {J: 501, I: 395},
		},
		CellAreaM2:   440_000,
		FlowFraction: 1.1,
	},
	"Englishman": {
		Name:         "Englishman",
		Cells:        []forcing.GridCell{{J: 415, I: 120}},
		CellAreaM2:   440_000,
		FlowFraction: 1.0,
	},
}

// MakeRunoff turns gauged river discharge into the surface freshwater
// flux forcing file for the run date.
type MakeRunoff struct {
	env worker.Env
}

func newMakeRunoff(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("make_runoff: unexpected arguments %v", args)
	}
	return &MakeRunoff{env: env}, nil
}

func (t *MakeRunoff) Name() string { return "make_runoff" }

func (t *MakeRunoff) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	flows, err := readFlows(cfg.Rivers.FlowFile)
	if err != nil {
		return "", nil, err
	}

	grid := forcing.NewRunoffGrid(gridNY, gridNX)
	for name, flow := range flows {
		river, ok := riverMouths[name]
		if !ok {
			return "", nil, fmt.Errorf("make_runoff: no grid mapping for river %q", name)
		}
		if err := grid.AddRiver(river, flow); err != nil {
			return "", nil, err
		}
	}

	if err := os.MkdirAll(cfg.Rivers.ForcingDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("make_runoff: %w", err)
	}
	name := fmt.Sprintf("RFraserCElse_y%04dm%02dd%02d.nc",
		t.env.RunDate.Year(), t.env.RunDate.Month(), t.env.RunDate.Day())
	path := filepath.Join(cfg.Rivers.ForcingDir, name)
	if err := forcing.WriteRunoffFile(path, grid, t.env.RunDate); err != nil {
		return "", nil, err
	}
	log.Info().Str("path", path).Int("rivers", len(flows)).Msg("runoff forcing file written")
	return "success", map[string]string{"runoff file": path}, nil
}

// readFlows parses the river discharge CSV: "river,flow_m3s" rows,
// optional header.
func readFlows(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("make_runoff: open flow file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("make_runoff: parse flow file %s: %w", path, err)
	}

	flows := make(map[string]float64, len(records))
	for i, rec := range records {
		name := strings.TrimSpace(rec[0])
		raw := strings.TrimSpace(rec[1])
		flow, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("make_runoff: bad flow %q for river %s", raw, name)
		}
		flows[name] = flow
	}
	if len(flows) == 0 {
		return nil, fmt.Errorf("make_runoff: no river flows in %s", path)
	}
	return flows, nil
}

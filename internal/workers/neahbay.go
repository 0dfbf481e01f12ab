package workers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/forcing"
	"github.com/salishsea-meopar/nowcast/internal/tidal"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

// westernBoundary is the open boundary in the Strait of Juan de Fuca
// where the Neah Bay sea-surface-height anomaly is applied.
var westernBoundary = forcing.BoundarySegment{
	Name:   "west",
	IStart: 1,
	JStart: 384,
	Length: 87,
}

// GetNeahBaySSH fetches Neah Bay water-level observations, converts
// them to anomalies against the harmonic tide prediction, and writes
// the western-boundary sea-surface-height forcing file.
type GetNeahBaySSH struct {
	env worker.Env
}

func newGetNeahBaySSH(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("get_neahbay_ssh: unexpected arguments %v", args)
	}
	return &GetNeahBaySSH{env: env}, nil
}

func (t *GetNeahBaySSH) Name() string { return "get_neahbay_ssh" }

func (t *GetNeahBaySSH) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	raw, err := t.readObs(ctx, cfg.NeahBay)
	if err != nil {
		return "", nil, err
	}
	obs, err := parseObs(bytes.NewReader(raw))
	if err != nil {
		return "", nil, err
	}

	pred, err := tidal.LoadTable(cfg.NeahBay.Constituent)
	if err != nil {
		return "", nil, err
	}
	anomalies, err := forcing.SSHAnomalies(obs, pred)
	if err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(cfg.NeahBay.ForcingDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("get_neahbay_ssh: %w", err)
	}
	name := fmt.Sprintf("ssh_y%04dm%02dd%02d.nc",
		t.env.RunDate.Year(), t.env.RunDate.Month(), t.env.RunDate.Day())
	path := filepath.Join(cfg.NeahBay.ForcingDir, name)
	if err := forcing.WriteSSHFile(path, westernBoundary, anomalies, obs[0].Time); err != nil {
		return "", nil, err
	}
	log.Info().Str("path", path).Int("hours", len(anomalies)).Msg("ssh forcing file written")
	return "success", map[string]string{"ssh file": path}, nil
}

func (t *GetNeahBaySSH) readObs(ctx context.Context, cfg config.NeahBayConfig) ([]byte, error) {
	if cfg.URL != "" {
		return t.env.Fetch.Get(ctx, cfg.URL)
	}
	data, err := os.ReadFile(cfg.ObsFile)
	if err != nil {
		return nil, fmt.Errorf("get_neahbay_ssh: read observations: %w", err)
	}
	return data, nil
}

// parseObs reads the tabular water-level text: one observation per
// line as "YYYY-MM-DD HH:MM height_m". A height of "NaN" or "-" marks
// a missing reading; comment lines start with "#".
func parseObs(r io.Reader) ([]forcing.ObsLevel, error) {
	var obs []forcing.ObsLevel
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("get_neahbay_ssh: bad observation line %q", line)
		}
		ts, err := time.Parse("2006-01-02 15:04", fields[0]+" "+fields[1])
		if err != nil {
			return nil, fmt.Errorf("get_neahbay_ssh: bad timestamp in %q: %w", line, err)
		}
		height := math.NaN()
		if fields[2] != "NaN" && fields[2] != "-" {
			height, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("get_neahbay_ssh: bad height in %q: %w", line, err)
			}
		}
		obs = append(obs, forcing.ObsLevel{Time: ts.UTC(), HeightM: height})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, forcing.ErrNoObservations
	}
	return obs, nil
}

package workers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

// DownloadWeather fetches one HRDPS forecast's GRIB2 files: every
// configured variable for every forecast hour, in parallel up to the
// configured limit.
type DownloadWeather struct {
	env      worker.Env
	forecast string // "06" or "18"
}

func newDownloadWeather(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("download_weather: expected one forecast argument (06 or 18)")
	}
	forecast := args[0]
	if forecast != "06" && forecast != "18" {
		return nil, fmt.Errorf("download_weather: bad forecast %q (want 06 or 18)", forecast)
	}
	return &DownloadWeather{env: env, forecast: forecast}, nil
}

func (t *DownloadWeather) Name() string { return "download_weather" }

func (t *DownloadWeather) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	date := t.env.RunDate.Format("20060102")
	destRoot := filepath.Join(cfg.Weather.GRIBDir, date, t.forecast)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Weather.MaxParallel)

	files := 0
	for hour := 1; hour <= cfg.Weather.ForecastDuration; hour++ {
		hhh := fmt.Sprintf("%03d", hour)
		destDir := filepath.Join(destRoot, hhh)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("download_weather: %w", err)
		}
		for _, variable := range cfg.Weather.Variables {
			vars := map[string]string{
				"date":     date,
				"forecast": t.forecast,
				"hour":     hhh,
				"variable": variable,
			}
			filename := expand(cfg.Weather.FilenameTemplate, vars)
			vars["filename"] = filename
			url := expand(cfg.Weather.URLTemplate, vars)
			dest := filepath.Join(destDir, filename)
			files++
			g.Go(func() error {
				return t.env.Fetch.Download(ctx, url, dest)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return "failure " + t.forecast, nil, err
	}
	log.Info().Str("forecast", t.forecast).Int("files", files).
		Str("dir", destRoot).Msg("forecast files downloaded")
	return "success " + t.forecast, map[string]string{t.forecast: destRoot}, nil
}

// FollowUp closes out the nowcast day after the evening forecast.
func (t *DownloadWeather) FollowUp(sent string) (string, bool) {
	if t.forecast == "18" && sent == "success 18" {
		return "the end", true
	}
	return "", false
}

// expand substitutes {name} placeholders in a URL or filename template.
func expand(template string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

package workers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

// DownloadResults copies a finished run's result files from the run
// host into the local results tree. Local runs just get verified in
// place.
type DownloadResults struct {
	env worker.Env
}

func newDownloadResults(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("download_results: unexpected arguments %v", args)
	}
	return &DownloadResults{env: env}, nil
}

func (t *DownloadResults) Name() string { return "download_results" }

func (t *DownloadResults) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	day := runDirName(t.env.RunDate)
	dest := filepath.Join(cfg.Run.ResultsDir, day)

	if cfg.Run.Host == "" || cfg.Run.Host == "localhost" {
		if _, err := os.Stat(dest); err != nil {
			return "", nil, fmt.Errorf("download_results: results missing: %w", err)
		}
		log.Info().Str("results", dest).Msg("results already local")
		return "success", map[string]string{"results dir": dest}, nil
	}

	if err := os.MkdirAll(cfg.Run.ResultsDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("download_results: %w", err)
	}
	src := fmt.Sprintf("%s:%s", cfg.Run.Host, filepath.Join(cfg.Run.ResultsDir, day))
	local := worker.LocalRunner{}
	out, err := local.Run("rsync", "-rlt", src+"/", dest+"/")
	if err != nil {
		return "", nil, fmt.Errorf("download_results: rsync: %w: %s", err, out)
	}
	log.Info().Str("src", src).Str("dest", dest).Msg("results downloaded")
	return "success", map[string]string{"results dir": dest}, nil
}

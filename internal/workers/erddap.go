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

// PingERDDAP tells the ERDDAP server to reload the datasets refreshed
// by one run type, by touching the per-dataset flag files its flag
// monitor watches.
type PingERDDAP struct {
	env     worker.Env
	dataset string
}

func newPingERDDAP(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("ping_erddap: expected one dataset argument")
	}
	return &PingERDDAP{env: env, dataset: args[0]}, nil
}

func (t *PingERDDAP) Name() string { return "ping_erddap" }

func (t *PingERDDAP) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	if cfg.ERDDAP.FlagDir == "" {
		return "", nil, fmt.Errorf("ping_erddap: erddap flag_dir not configured")
	}
	// A run type with no dataset IDs is not an error; there is just
	// nothing to reload.
	touched := []string{}
	for _, id := range cfg.ERDDAP.DatasetIDs[t.dataset] {
		flag := filepath.Join(cfg.ERDDAP.FlagDir, id)
		if err := touch(flag); err != nil {
			return "", nil, fmt.Errorf("ping_erddap: %w", err)
		}
		log.Debug().Str("flag", flag).Msg("touched")
		touched = append(touched, id)
	}
	log.Info().Str("dataset", t.dataset).Int("flags", len(touched)).
		Msg("ERDDAP dataset flag files created")
	return "success " + t.dataset, map[string][]string{t.dataset: touched}, nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

package workers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

// cmdTask runs one configured external command with the run date
// appended, the shared shape of the plotting and page-rendering
// workers.
type cmdTask struct {
	env  worker.Env
	name string
	cmd  func(config.Config) []string
}

func (t *cmdTask) Name() string { return t.name }

func (t *cmdTask) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	argv := t.cmd(cfg)
	if len(argv) == 0 {
		return "", nil, fmt.Errorf("%s: no command configured", t.name)
	}
	args := append(append([]string{}, argv[1:]...), t.env.RunDate.Format("2006-01-02"))
	out, err := t.env.Runner.Run(argv[0], args...)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w: %s", t.name, err, out)
	}
	log.Info().Str("worker", t.name).Str("cmd", argv[0]).Msg("command finished")
	return "success", nil, nil
}

func newMakePlots(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("make_plots: unexpected arguments %v", args)
	}
	return &cmdTask{env: env, name: "make_plots",
		cmd: func(cfg config.Config) []string { return cfg.Web.PlotsCmd }}, nil
}

func newMakeSitePage(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("make_site_page: unexpected arguments %v", args)
	}
	return &cmdTask{env: env, name: "make_site_page",
		cmd: func(cfg config.Config) []string { return cfg.Web.PagesCmd }}, nil
}

// PushToWeb rsyncs the rendered site to the public web server.
type PushToWeb struct {
	env worker.Env
}

func newPushToWeb(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("push_to_web: unexpected arguments %v", args)
	}
	return &PushToWeb{env: env}, nil
}

func (t *PushToWeb) Name() string { return "push_to_web" }

func (t *PushToWeb) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	if cfg.Web.SiteDir == "" || cfg.Web.ServerPath == "" {
		return "", nil, fmt.Errorf("push_to_web: site_dir and server_path must be configured")
	}
	local := worker.LocalRunner{}
	out, err := local.Run("rsync", "-rlt", "--delete",
		cfg.Web.SiteDir+"/", cfg.Web.ServerPath+"/")
	if err != nil {
		return "", nil, fmt.Errorf("push_to_web: rsync: %w: %s", err, out)
	}
	log.Info().Str("dest", cfg.Web.ServerPath).Msg("site pushed")
	return "success", map[string]string{"server path": cfg.Web.ServerPath}, nil
}

package workers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

var itendRe = regexp.MustCompile(`(?m)^\s*nn_itend\s*=\s*(\d+)`)

// runDirName is the dated run directory name, e.g. "29aug26".
func runDirName(runDate time.Time) string {
	return strings.ToLower(runDate.Format("02Jan06"))
}

// RunNEMO stages a dated run directory and launches the NEMO
// executable through the configured runner, detached. The runs
// directory is on a filesystem shared with the run host.
type RunNEMO struct {
	env worker.Env
}

func newRunNEMO(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("run_nemo: unexpected arguments %v", args)
	}
	return &RunNEMO{env: env}, nil
}

func (t *RunNEMO) Name() string { return "run_nemo" }

func (t *RunNEMO) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	runDir := filepath.Join(cfg.Run.RunsDir, runDirName(t.env.RunDate))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("run_nemo: %w", err)
	}
	if err := stageNamelist(cfg.Run.Namelist, runDir, t.env.RunDate); err != nil {
		return "", nil, err
	}

	script := fmt.Sprintf("cd %s && mpirun -np %d %s",
		runDir, cfg.Run.MPIProcs, cfg.Run.NEMOCommand)
	if err := t.env.Runner.StartDetached("bash", "-c", script); err != nil {
		return "", nil, fmt.Errorf("run_nemo: launch: %w", err)
	}
	log.Info().Str("run_dir", runDir).Int("procs", cfg.Run.MPIProcs).Msg("NEMO run launched")
	return "success", map[string]string{"run dir": runDir}, nil
}

// stageNamelist copies the namelist template into the run directory
// with the run date substituted for its {run_date} placeholder.
func stageNamelist(template, runDir string, runDate time.Time) error {
	data, err := os.ReadFile(template)
	if err != nil {
		return fmt.Errorf("run_nemo: read namelist template: %w", err)
	}
	body := strings.ReplaceAll(string(data), "{run_date}", runDate.Format("20060102"))
	dest := filepath.Join(runDir, "namelist")
	if err := os.WriteFile(dest, []byte(body), 0o644); err != nil {
		return fmt.Errorf("run_nemo: write namelist: %w", err)
	}
	return nil
}

// WatchNEMO polls the run's time.step file until the simulation
// reaches its final time step.
type WatchNEMO struct {
	env  worker.Env
	poll time.Duration
}

func newWatchNEMO(env worker.Env, args []string) (worker.Task, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("watch_nemo: unexpected arguments %v", args)
	}
	return &WatchNEMO{env: env, poll: time.Minute}, nil
}

func (t *WatchNEMO) Name() string { return "watch_nemo" }

func (t *WatchNEMO) Run(ctx context.Context, cfg config.Config) (string, any, error) {
	runDir := filepath.Join(cfg.Run.RunsDir, runDirName(t.env.RunDate))
	final, err := finalTimeStep(filepath.Join(runDir, "namelist"))
	if err != nil {
		return "", nil, err
	}

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	stepFile := filepath.Join(runDir, "time.step")
	for {
		step, err := currentTimeStep(stepFile)
		if err == nil {
			log.Debug().Int("step", step).Int("final", final).Msg("NEMO progress")
			if step >= final {
				log.Info().Str("run_dir", runDir).Msg("NEMO run complete")
				return "success", map[string]any{
					"run dir":    runDir,
					"final step": final,
				}, nil
			}
		} else if !os.IsNotExist(err) {
			return "", nil, err
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func finalTimeStep(namelist string) (int, error) {
	data, err := os.ReadFile(namelist)
	if err != nil {
		return 0, fmt.Errorf("watch_nemo: read namelist: %w", err)
	}
	m := itendRe.FindSubmatch(data)
	if m == nil {
		return 0, fmt.Errorf("watch_nemo: no nn_itend in %s", namelist)
	}
	return strconv.Atoi(string(m[1]))
}

// currentTimeStep reads the single integer NEMO writes to time.step.
// Returns os.ErrNotExist-style errors before the run's first write.
func currentTimeStep(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	step, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("watch_nemo: bad time.step contents %q", strings.TrimSpace(string(data)))
	}
	return step, nil
}

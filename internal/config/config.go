// Package config loads and validates the YAML configuration shared by
// the nowcast manager and its workers.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/salishsea-meopar/nowcast/internal/pipeline"
	"github.com/salishsea-meopar/nowcast/internal/protocol"
)

// Config is the top-level nowcast system configuration.
type Config struct {
	ChecklistDir string            `yaml:"checklist_dir"`
	Logging      LoggingConfig     `yaml:"logging"`
	Manager      ManagerConfig     `yaml:"manager"`
	Weather      WeatherConfig     `yaml:"weather"`
	NeahBay      NeahBayConfig     `yaml:"neah_bay"`
	Rivers       RiversConfig      `yaml:"rivers"`
	ERDDAP       ERDDAPConfig      `yaml:"erddap"`
	Run          RunConfig         `yaml:"run"`
	Web          WebConfig         `yaml:"web"`
	Workers      map[string]Worker `yaml:"workers"`
	MsgTypes     protocol.Registry `yaml:"msg_types"`
}

// LoggingConfig controls the manager/worker log file.
type LoggingConfig struct {
	LogFile     string `yaml:"log_file"`
	BackupCount int    `yaml:"backup_count"`
}

// ManagerConfig holds the manager's socket and status API addresses.
type ManagerConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	StatusAddr  string   `yaml:"status_addr"`
	CorsOrigins []string `yaml:"cors_origins"`
}

// WeatherConfig describes the HRDPS GRIB2 forecast download source.
type WeatherConfig struct {
	URLTemplate      string   `yaml:"url_template"`
	FilenameTemplate string   `yaml:"filename_template"`
	ForecastDuration int      `yaml:"forecast_duration"`
	GRIBDir          string   `yaml:"grib_dir"`
	Variables        []string `yaml:"variables"`
	MaxParallel      int      `yaml:"max_parallel"`
}

// NeahBayConfig describes the Neah Bay water-level source used for the
// western open-boundary sea-surface-height forcing.
type NeahBayConfig struct {
	URL         string `yaml:"url"`
	ObsFile     string `yaml:"obs_file"`
	ForcingDir  string `yaml:"forcing_dir"`
	Constituent string `yaml:"constituents_file"`
}

// RiversConfig describes the river discharge inputs for runoff forcing.
type RiversConfig struct {
	FlowFile   string `yaml:"flow_file"`
	ForcingDir string `yaml:"forcing_dir"`
}

// ERDDAPConfig describes the ERDDAP server's dataset-reload flag
// directory and which dataset IDs each run type refreshes.
type ERDDAPConfig struct {
	FlagDir    string              `yaml:"flag_dir"`
	DatasetIDs map[string][]string `yaml:"dataset_ids"`
}

// RunConfig describes where and how NEMO runs are executed.
type RunConfig struct {
	Host        string `yaml:"host"`
	SSH         SSH    `yaml:"ssh"`
	RunsDir     string `yaml:"runs_dir"`
	ResultsDir  string `yaml:"results_dir"`
	NEMOCommand string `yaml:"nemo_cmd"`
	MPIProcs    int    `yaml:"mpi_procs"`
	Namelist    string `yaml:"namelist"`
}

// SSH holds credentials for remote run hosts.
type SSH struct {
	User       string `yaml:"user"`
	Port       string `yaml:"port"`
	KeyPath    string `yaml:"key_path"`
	KnownHosts string `yaml:"known_hosts"`
}

// WebConfig describes the nowcast web site publication target.
type WebConfig struct {
	SiteDir    string   `yaml:"site_dir"`
	ServerPath string   `yaml:"server_path"`
	PlotsCmd   []string `yaml:"plots_cmd"`
	PagesCmd   []string `yaml:"pages_cmd"`
}

// Worker describes one worker process: how to launch it, where it
// runs, and which workers follow it for each success message type.
type Worker struct {
	Cmd  []string            `yaml:"cmd"`
	Host string              `yaml:"host"`
	Next map[string][]string `yaml:"next"`
}

// Load reads path, applies defaults, and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	if _, err := pipeline.Build(cfg.NextEdges()); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// NextEdges returns the worker next tables keyed by worker name, in
// the shape pipeline.Build consumes. Every declared worker appears as
// a key so terminal workers become graph vertices too.
func (c Config) NextEdges() map[string]map[string][]string {
	edges := make(map[string]map[string][]string, len(c.Workers))
	for name, w := range c.Workers {
		edges[name] = w.Next
	}
	return edges
}

func applyDefaults(cfg *Config) {
	if cfg.Manager.ListenAddr == "" {
		cfg.Manager.ListenAddr = ":5348"
	}
	if cfg.Manager.StatusAddr == "" {
		cfg.Manager.StatusAddr = ":8784"
	}
	if cfg.Logging.BackupCount <= 0 {
		cfg.Logging.BackupCount = 7
	}
	if cfg.Weather.ForecastDuration <= 0 {
		cfg.Weather.ForecastDuration = 42
	}
	if cfg.Weather.MaxParallel <= 0 {
		cfg.Weather.MaxParallel = 4
	}
	if cfg.Run.MPIProcs <= 0 {
		cfg.Run.MPIProcs = 16
	}
	if cfg.ChecklistDir == "" {
		cfg.ChecklistDir = "checklists"
	}
}

// Validate applies the structural checks that do not need the worker
// dependency graph; Load additionally rejects cyclic worker graphs.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Manager.ListenAddr) == "" {
		return fmt.Errorf("manager config missing listen_addr")
	}
	if strings.TrimSpace(cfg.Logging.LogFile) == "" {
		return fmt.Errorf("logging config missing log_file")
	}
	for name, w := range cfg.Workers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("worker with empty name")
		}
		if len(w.Cmd) == 0 {
			return fmt.Errorf("worker %s missing cmd", name)
		}
		if _, ok := cfg.MsgTypes[name]; !ok {
			return fmt.Errorf("worker %s has no msg_types registry entry", name)
		}
		for msgType, targets := range w.Next {
			if _, ok := cfg.MsgTypes[name][msgType]; !ok {
				return fmt.Errorf(
					"worker %s next[%s] references unregistered message type", name, msgType)
			}
			for _, target := range targets {
				if _, ok := cfg.Workers[target]; !ok {
					return fmt.Errorf(
						"worker %s next[%s] references undeclared worker %s", name, msgType, target)
				}
			}
		}
	}
	return nil
}

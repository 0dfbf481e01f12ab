package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/salishsea-meopar/nowcast/internal/pipeline"
)

const minimalYAML = `
checklist_dir: /tmp/checklists
logging:
  log_file: /tmp/nowcast.log
manager:
  listen_addr: ":5348"
workers:
  download-weather:
    cmd: ["nowcast-worker", "download-weather"]
    next:
      "success 18": ["make-runoff"]
  make-runoff:
    cmd: ["nowcast-worker", "make-runoff"]
msg_types:
  download-weather:
    "success 18": "18 forecast files downloaded"
    "failure 18": "18 forecast files download failed"
    "crash": "download-weather worker crashed"
  make-runoff:
    "success": "runoff file created"
    "failure": "runoff file creation failed"
    "crash": "make-runoff worker crashed"
`

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nowcast.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Manager.StatusAddr != ":8784" {
		t.Fatalf("status addr default: %q", cfg.Manager.StatusAddr)
	}
	if cfg.Logging.BackupCount != 7 {
		t.Fatalf("backup count default: %d", cfg.Logging.BackupCount)
	}
	if cfg.Weather.ForecastDuration != 42 {
		t.Fatalf("forecast duration default: %d", cfg.Weather.ForecastDuration)
	}
	if _, err := cfg.MsgTypes.Lookup("download-weather", "success 18"); err != nil {
		t.Fatalf("registry lookup: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsUndeclaredNextWorker(t *testing.T) {
	bad := strings.Replace(minimalYAML, `["make-runoff"]`, `["no-such-worker"]`, 1)
	_, err := Load(writeConfig(t, bad))
	if err == nil || !strings.Contains(err.Error(), "undeclared worker") {
		t.Fatalf("expected undeclared worker error, got %v", err)
	}
}

func TestValidateRejectsWorkerWithoutRegistry(t *testing.T) {
	bad := strings.Replace(minimalYAML, "  make-runoff:\n    \"success\": \"runoff file created\"\n    \"failure\": \"runoff file creation failed\"\n    \"crash\": \"make-runoff worker crashed\"\n", "", 1)
	_, err := Load(writeConfig(t, bad))
	if err == nil || !strings.Contains(err.Error(), "msg_types registry") {
		t.Fatalf("expected registry error, got %v", err)
	}
}

func TestLoadRejectsCyclicWorkers(t *testing.T) {
	bad := strings.Replace(minimalYAML,
		"  make-runoff:\n    cmd: [\"nowcast-worker\", \"make-runoff\"]\n",
		"  make-runoff:\n    cmd: [\"nowcast-worker\", \"make-runoff\"]\n    next:\n      \"success\": [\"download-weather\"]\n",
		1)
	_, err := Load(writeConfig(t, bad))
	if !errors.Is(err, pipeline.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestValidateRejectsMissingLogFile(t *testing.T) {
	bad := strings.Replace(minimalYAML, "log_file: /tmp/nowcast.log", "log_file: \"\"", 1)
	_, err := Load(writeConfig(t, bad))
	if err == nil || !strings.Contains(err.Error(), "log_file") {
		t.Fatalf("expected log_file error, got %v", err)
	}
}

func TestTemplateValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nowcast.yaml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("template config does not validate: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatal("expected error overwriting existing file without force")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("force overwrite: %v", err)
	}
}

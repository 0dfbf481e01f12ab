package workers

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

func TestRegistryUnknownTask(t *testing.T) {
	_, err := New(worker.Env{}, "make_coffee")
	require.ErrorIs(t, err, worker.ErrUnknownTask)
	assert.Contains(t, err.Error(), "make_runoff")
}

func TestRegistryKnownTasks(t *testing.T) {
	env := worker.Env{}
	for _, name := range Names() {
		args := []string{}
		switch name {
		case "download_weather":
			args = []string{"06"}
		case "ping_erddap":
			args = []string{"nowcast"}
		}
		task, err := New(env, name, args...)
		require.NoError(t, err, name)
		assert.Equal(t, name, task.Name())
	}
}

func TestParseObs(t *testing.T) {
	input := strings.Join([]string{
		"# Neah Bay observed water levels",
		"2026-08-29 00:00 2.31",
		"2026-08-29 01:00 NaN",
		"2026-08-29 02:00 -",
		"2026-08-29 03:00 1.87",
	}, "\n")
	obs, err := parseObs(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, obs, 4)
	assert.Equal(t, 2.31, obs[0].HeightM)
	assert.True(t, math.IsNaN(obs[1].HeightM))
	assert.True(t, math.IsNaN(obs[2].HeightM))
	assert.Equal(t, time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC), obs[3].Time)
}

func TestParseObsBadLine(t *testing.T) {
	_, err := parseObs(strings.NewReader("2026-08-29 00:00"))
	assert.Error(t, err)
}

func TestReadFlows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.csv")
	body := "river,flow_m3s\nFraser,3420.5\nEnglishman,12.8\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	flows, err := readFlows(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Fraser": 3420.5, "Englishman": 12.8}, flows)
}

func TestReadFlowsBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.csv")
	require.NoError(t, os.WriteFile(path, []byte("river,flow_m3s\nFraser,lots\n"), 0o644))
	_, err := readFlows(path)
	assert.Error(t, err)
}

func TestRunDirName(t *testing.T) {
	assert.Equal(t, "29aug26", runDirName(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)))
}

func TestFinalTimeStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "namelist")
	body := "&namrun\n   nn_it000 = 1\n   nn_itend = 8640\n/\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	final, err := finalTimeStep(path)
	require.NoError(t, err)
	assert.Equal(t, 8640, final)
}

func TestStageNamelist(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "namelist.template")
	require.NoError(t, os.WriteFile(template,
		[]byte("&namrun\n   cn_date0 = \"{run_date}\"\n/\n"), 0o644))

	runDir := filepath.Join(dir, "29aug26")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, stageNamelist(template, runDir,
		time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)))

	data, err := os.ReadFile(filepath.Join(runDir, "namelist"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "cn_date0 = \"20260829\"")
}

func TestPingERDDAPTouchesFlags(t *testing.T) {
	flagDir := t.TempDir()
	cfg := config.Config{ERDDAP: config.ERDDAPConfig{
		FlagDir: flagDir,
		DatasetIDs: map[string][]string{
			"nowcast": {"ubcSSnBathymetry2V1", "ubcSSn3DTracerFields1hV1"},
		},
	}}

	task, err := New(worker.Env{}, "ping_erddap", "nowcast")
	require.NoError(t, err)
	msgType, payload, err := task.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "success nowcast", msgType)
	assert.Equal(t, map[string][]string{
		"nowcast": {"ubcSSnBathymetry2V1", "ubcSSn3DTracerFields1hV1"},
	}, payload)
	for _, id := range cfg.ERDDAP.DatasetIDs["nowcast"] {
		_, err := os.Stat(filepath.Join(flagDir, id))
		assert.NoError(t, err, id)
	}
}

func TestPingERDDAPUnknownRunType(t *testing.T) {
	cfg := config.Config{ERDDAP: config.ERDDAPConfig{FlagDir: t.TempDir()}}
	task, err := New(worker.Env{}, "ping_erddap", "forecast2")
	require.NoError(t, err)
	msgType, payload, err := task.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "success forecast2", msgType)
	assert.Equal(t, map[string][]string{"forecast2": {}}, payload)
}

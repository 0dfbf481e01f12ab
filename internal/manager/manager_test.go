package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/protocol"
	"github.com/salishsea-meopar/nowcast/internal/protocol/frame"
	"github.com/salishsea-meopar/nowcast/internal/testutil/testlog"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ChecklistDir: t.TempDir(),
		Workers: map[string]config.Worker{
			"download_weather": {
				Cmd: []string{"nowcast-worker", "download_weather"},
				Next: map[string][]string{
					"success 06": {"make_runoff"},
				},
			},
			"make_runoff": {Cmd: []string{"nowcast-worker", "make_runoff"}},
		},
		MsgTypes: protocol.Registry{
			"download_weather": {
				"success 06": "06 forecast files downloaded",
				"failure 06": "06 forecast downloads failed",
				"crash":      "download_weather worker crashed",
				"the end":    "nowcast day complete",
			},
			"make_runoff": {
				"success": "runoff file created",
			},
		},
	}
}

func TestHandleUnregisteredWorker(t *testing.T) {
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	reply, after := m.Handle(protocol.Message{Source: "mystery", MsgType: "success"})
	assert.True(t, reply.IsError)
	assert.Equal(t, "unregistered worker", reply.Message.MsgType)
	assert.Nil(t, after)
}

func TestHandleUnregisteredMsgType(t *testing.T) {
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	reply, _ := m.Handle(protocol.Message{Source: "download_weather", MsgType: "success 99"})
	assert.True(t, reply.IsError)
	assert.Equal(t, "unregistered message type", reply.Message.MsgType)
}

func TestHandleSuccessLaunchesNext(t *testing.T) {
	testlog.Start(t)
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	var launched []string
	m.SetLaunchFunc(func(_ context.Context, name string, _ config.Worker) error {
		launched = append(launched, name)
		return nil
	})

	msg := protocol.Message{
		Source:  "download_weather",
		MsgType: "success 06",
		Payload: map[string]string{"06": "/tmp/grib/06"},
	}
	reply, after := m.Handle(msg)
	require.False(t, reply.IsError)
	require.NotNil(t, after)
	after(context.Background())

	assert.Equal(t, []string{"make_runoff"}, launched)
	assert.Equal(t, 1, m.Checklist().Len())
}

func TestHandleFailureRecordsWithoutLaunch(t *testing.T) {
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	reply, after := m.Handle(protocol.Message{Source: "download_weather", MsgType: "failure 06"})
	assert.False(t, reply.IsError)
	assert.Nil(t, after)
	assert.Equal(t, 1, m.Checklist().Len())
}

func TestHandleTheEndPersistsAndClears(t *testing.T) {
	cfg := testConfig(t)
	m, err := New(cfg, "nowcast.yaml")
	require.NoError(t, err)

	m.Handle(protocol.Message{Source: "download_weather", MsgType: "success 06", Payload: "done"})
	reply, after := m.Handle(protocol.Message{Source: "download_weather", MsgType: "the end"})
	require.False(t, reply.IsError)
	require.NotNil(t, after)
	after(context.Background())

	assert.Equal(t, 0, m.Checklist().Len())
	name := "checklist-" + time.Now().Format("2006-01-02") + ".yaml"
	_, err = os.Stat(filepath.Join(cfg.ChecklistDir, name))
	assert.NoError(t, err)
	next := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	assert.Equal(t, next, m.RunDate().Format("2006-01-02"))
}

func TestChecklistPersistEmptyDay(t *testing.T) {
	dir := t.TempDir()
	cl := NewChecklist()
	path, err := cl.Persist(dir, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestStatusCountsMessages(t *testing.T) {
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	m.Handle(protocol.Message{Source: "download_weather", MsgType: "failure 06"})
	m.Handle(protocol.Message{Source: "download_weather", MsgType: "failure 06"})

	s := m.Status()
	assert.Equal(t, 2, s.MsgCounts["failure 06"])
	assert.Equal(t, "download_weather", s.LastSource)
}

func TestStatusReportsRunDate(t *testing.T) {
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, time.Now().Format("2006-01-02"), status["run_date"])
}

func TestMetricsRouteExportsCounters(t *testing.T) {
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	recordMessage("download_weather", "success 06", false, 5*time.Millisecond)
	recordLaunch("make_runoff", true)

	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "nowcast_manager_messages_total")
	assert.Contains(t, string(body), "nowcast_manager_worker_launches_total")
}

func TestServeConnRejectsGarbageFrame(t *testing.T) {
	testlog.Start(t)
	m, err := New(testConfig(t), "nowcast.yaml")
	require.NoError(t, err)

	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.serveConn(context.Background(), server)
	}()

	garbage := bytes.Repeat([]byte{0xa5}, int(frame.FixedHeaderLen))
	_, err = client.Write(garbage)
	require.NoError(t, err)

	f, err := frame.ReadFrame(client, frame.DefaultLimits())
	require.NoError(t, err)
	assert.NotZero(t, f.Header.Flags&frame.FlagIsError)

	reply, err := protocol.DecodeFrame(f, frame.TypeReply)
	require.NoError(t, err)
	assert.Equal(t, "unreadable frame", reply.MsgType)

	client.Close()
	<-done
}

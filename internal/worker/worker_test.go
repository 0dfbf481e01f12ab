package worker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/protocol"
	"github.com/salishsea-meopar/nowcast/internal/protocol/frame"
)

func testRegistry() protocol.Registry {
	return protocol.Registry{
		"make_runoff": {
			"success": "runoff file created",
		},
	}
}

// serveOnce accepts one connection and replies with an ack.
func serveOnce(t *testing.T, ln net.Listener) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		t.Errorf("accept: %v", err)
		return
	}
	defer conn.Close()
	f, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		t.Errorf("read frame: %v", err)
		return
	}
	msg, err := protocol.DecodeFrame(f, frame.TypeStatus)
	if err != nil {
		t.Errorf("decode: %v", err)
		return
	}
	if msg.Source != "make_runoff" || msg.MsgType != "success" {
		t.Errorf("unexpected message %s/%s", msg.Source, msg.MsgType)
	}
	reply, err := protocol.EncodeFrame(frame.TypeReply, frame.FlagIsReply, protocol.Message{
		Source:  "nowcast-mgr",
		MsgType: "ack",
	})
	if err != nil {
		t.Errorf("encode reply: %v", err)
		return
	}
	if err := frame.WriteFrame(conn, reply, frame.DefaultLimits()); err != nil {
		t.Errorf("write reply: %v", err)
	}
}

func TestTellManager(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		serveOnce(t, ln)
	}()

	cfg := config.Config{
		Manager:  config.ManagerConfig{ListenAddr: ln.Addr().String()},
		MsgTypes: testRegistry(),
	}
	reply, err := TellManager(context.Background(), cfg, DefaultDialConfig(), protocol.Message{
		Source:  "make_runoff",
		MsgType: "success",
		Payload: map[string]string{"runoff file": "/tmp/r.nc"},
	})
	if err != nil {
		t.Fatalf("TellManager: %v", err)
	}
	if reply.MsgType != "ack" {
		t.Errorf("reply msg_type = %q, want ack", reply.MsgType)
	}
	<-done
}

func TestTellManagerRejectsUnregistered(t *testing.T) {
	cfg := config.Config{MsgTypes: testRegistry()}
	_, err := TellManager(context.Background(), cfg, DefaultDialConfig(), protocol.Message{
		Source:  "make_runoff",
		MsgType: "success 42",
	})
	if err == nil {
		t.Fatal("expected error for unregistered message type")
	}
}

func TestTellManagerRetriesExhausted(t *testing.T) {
	cfg := config.Config{
		Manager:  config.ManagerConfig{ListenAddr: "127.0.0.1:1"},
		MsgTypes: testRegistry(),
	}
	dial := DialConfig{
		Timeout:      100 * time.Millisecond,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	}
	start := time.Now()
	_, err := TellManager(context.Background(), cfg, dial, protocol.Message{
		Source:  "make_runoff",
		MsgType: "success",
	})
	if err == nil {
		t.Fatal("expected error when manager is unreachable")
	}
	if got := time.Since(start); got > 5*time.Second {
		t.Errorf("retries took %v, retry budget not bounded", got)
	}
}

func TestNextDelay(t *testing.T) {
	cfg := DialConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2.0}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := nextDelay(cfg, tc.attempt); got != tc.want {
			t.Errorf("nextDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

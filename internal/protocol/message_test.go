package protocol

import (
	"errors"
	"testing"

	"github.com/salishsea-meopar/nowcast/internal/protocol/frame"
)

func testRegistry() Registry {
	return Registry{
		"download-weather": {
			"success 06": "06 forecast files downloaded",
			"failure 06": "06 forecast files download failed",
			"crash":      "download-weather worker crashed",
			"the end":    "nowcast day completed",
		},
	}
}

func TestMessageFrameRoundTrip(t *testing.T) {
	in := Message{
		Source:  "download-weather",
		MsgType: "success 06",
		Payload: map[string]any{"06": true},
	}
	f, err := EncodeFrame(frame.TypeStatus, 0, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeFrame(f, frame.TypeStatus)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Source != in.Source || out.MsgType != in.MsgType {
		t.Fatalf("envelope mismatch: %+v", out)
	}
	payload, ok := out.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type: %T", out.Payload)
	}
	if payload["06"] != true {
		t.Fatalf("payload content: %+v", payload)
	}
}

func TestDecodeFrameWrongHeaderType(t *testing.T) {
	f, err := EncodeFrame(frame.TypeStatus, 0, Message{Source: "w", MsgType: "crash"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeFrame(f, frame.TypeReply); !errors.Is(err, ErrUnexpectedMessageType) {
		t.Fatalf("expected ErrUnexpectedMessageType, got %v", err)
	}
}

func TestMessageValidate(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{"missing source", Message{MsgType: "success 06"}},
		{"missing msg_type", Message{Source: "download-weather"}},
		{"whitespace source", Message{Source: "  ", MsgType: "crash"}},
	}
	for _, tc := range cases {
		if err := tc.msg.Validate(); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("%s: expected ErrInvalidMessage, got %v", tc.name, err)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := testRegistry()

	words, err := reg.Lookup("download-weather", "success 06")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if words != "06 forecast files downloaded" {
		t.Fatalf("unexpected words: %q", words)
	}

	if _, err := reg.Lookup("no-such-worker", "success 06"); !errors.Is(err, ErrUnregisteredWorker) {
		t.Fatalf("expected ErrUnregisteredWorker, got %v", err)
	}
	if _, err := reg.Lookup("download-weather", "success 99"); !errors.Is(err, ErrUnregisteredMsgType) {
		t.Fatalf("expected ErrUnregisteredMsgType, got %v", err)
	}
}

func TestEncodeFrameAssignsMessageIDs(t *testing.T) {
	msg := Message{Source: "make_runoff", MsgType: "success"}
	a, err := EncodeFrame(frame.TypeStatus, 0, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeFrame(frame.TypeStatus, 0, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if a.Header.MessageID == 0 {
		t.Fatal("message id not assigned")
	}
	if b.Header.MessageID == a.Header.MessageID {
		t.Fatalf("message ids not unique: %d", a.Header.MessageID)
	}
}

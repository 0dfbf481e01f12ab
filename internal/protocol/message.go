// Package protocol defines the message envelope exchanged between
// nowcast workers and the manager, and the registry that constrains
// which messages each worker may send.
package protocol

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/salishsea-meopar/nowcast/internal/protocol/frame"
)

var (
	ErrInvalidMessage        = errors.New("protocol: invalid message")
	ErrUnregisteredWorker    = errors.New("protocol: unregistered worker")
	ErrUnregisteredMsgType   = errors.New("protocol: unregistered message type")
	ErrUnexpectedMessageType = errors.New("protocol: unexpected frame message type")
)

var messageID atomic.Uint64

// Message is the envelope carried as a frame payload. Payload is
// whatever the sender recorded for the step; it survives a YAML
// round trip unchanged in structure.
type Message struct {
	Source  string `yaml:"source"`
	MsgType string `yaml:"msg_type"`
	Payload any    `yaml:"payload,omitempty"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.Source) == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.MsgType) == "" {
		return fmt.Errorf("%w: missing msg_type", ErrInvalidMessage)
	}
	return nil
}

// EncodeFrame serializes msg as the payload of a frame with the given
// header message type (TypeStatus or TypeReply). Each frame gets a
// fresh message id; repliers overwrite it with the request's id.
func EncodeFrame(msgType uint32, flags uint32, msg Message) (frame.Frame, error) {
	if err := msg.Validate(); err != nil {
		return frame.Frame{}, err
	}
	payload, err := yaml.Marshal(msg)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("protocol: marshal message: %w", err)
	}
	return frame.Frame{
		Header: frame.Header{
			MessageType: msgType,
			Flags:       flags,
			MessageID:   messageID.Add(1),
		},
		Payload: payload,
	}, nil
}

// DecodeFrame parses a frame payload back into a Message, checking the
// frame's header message type.
func DecodeFrame(f frame.Frame, wantType uint32) (Message, error) {
	if f.Header.MessageType != wantType {
		return Message{}, fmt.Errorf(
			"%w: got %d want %d", ErrUnexpectedMessageType, f.Header.MessageType, wantType)
	}
	var msg Message
	if err := yaml.Unmarshal(f.Payload, &msg); err != nil {
		return Message{}, fmt.Errorf("protocol: unmarshal message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Registry maps worker name -> message type -> human description.
// It is loaded from the msg_types section of the nowcast config.
type Registry map[string]map[string]string

// Lookup returns the registered description for (source, msgType).
func (r Registry) Lookup(source, msgType string) (string, error) {
	types, ok := r[source]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnregisteredWorker, source)
	}
	words, ok := types[msgType]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrUnregisteredMsgType, msgType, source)
	}
	return words, nil
}

// Package worker provides the shared runtime for nowcast worker
// processes: do the task, report the outcome to the manager over the
// request/reply socket, exit.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/protocol"
	"github.com/salishsea-meopar/nowcast/internal/protocol/frame"
)

var (
	ErrUnknownTask      = errors.New("worker: unknown task")
	ErrManagerUnreached = errors.New("worker: manager unreachable")
)

// Task is one worker implementation. Run returns the status message
// type to report (e.g. "success 06") and the checklist payload.
type Task interface {
	Name() string
	Run(ctx context.Context, cfg config.Config) (msgType string, payload any, err error)
}

// Env carries the runtime pieces every task shares.
type Env struct {
	Config  config.Config
	Fetch   Fetcher
	Runner  Runner
	RunDate time.Time
}

// Fetcher is satisfied by fetch.Client.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Download(ctx context.Context, url, path string) error
}

// DialConfig bounds the manager connection retries.
type DialConfig struct {
	Timeout      time.Duration
	InitialDelay time.Duration
	Multiplier   float64
	MaxAttempts  int
}

func DefaultDialConfig() DialConfig {
	return DialConfig{
		Timeout:      5 * time.Second,
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	}
}

// nextDelay returns the dial retry delay for attempt n (1-based).
func nextDelay(cfg DialConfig, attempt int) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	multiplier := cfg.Multiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	return time.Duration(float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
}

// RunTask runs the named task under signal cancellation and reports
// the outcome to the manager. A task error becomes a "crash" report.
func RunTask(task Task, cfg config.Config, dial DialConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msgType, payload, err := task.Run(ctx, cfg)
	if err != nil {
		log.Error().Str("worker", task.Name()).Err(err).Msg("task failed")
		if msgType == "" {
			msgType = "crash"
			payload = err.Error()
		}
	}

	reply, err := TellManager(ctx, cfg, dial, protocol.Message{
		Source:  task.Name(),
		MsgType: msgType,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("worker", task.Name()).
		Str("sent", msgType).
		Str("reply", reply.MsgType).
		Msg("manager replied")

	if fu, ok := task.(FollowUpper); ok {
		if next, send := fu.FollowUp(msgType); send {
			if _, err := TellManager(ctx, cfg, dial, protocol.Message{
				Source:  task.Name(),
				MsgType: next,
			}); err != nil {
				return err
			}
			log.Info().Str("worker", task.Name()).Str("sent", next).Msg("follow-up sent")
		}
	}
	return nil
}

// FollowUpper is implemented by tasks that send a second message after
// their status report, such as "the end" that closes out the nowcast
// day after the evening forecast download.
type FollowUpper interface {
	FollowUp(sentMsgType string) (msgType string, send bool)
}

// TellManager sends one status message and waits for the manager's
// reply, retrying the connection with exponential backoff.
func TellManager(
	ctx context.Context, cfg config.Config, dial DialConfig, msg protocol.Message,
) (protocol.Message, error) {
	if _, err := cfg.MsgTypes.Lookup(msg.Source, msg.MsgType); err != nil {
		return protocol.Message{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= dial.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(nextDelay(dial, attempt-1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return protocol.Message{}, ctx.Err()
			case <-timer.C:
			}
		}
		reply, err := exchange(cfg.Manager.ListenAddr, dial.Timeout, msg)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		log.Warn().Int("attempt", attempt).Err(err).Msg("manager connection failed")
	}
	return protocol.Message{}, fmt.Errorf("%w after %d attempts: %v",
		ErrManagerUnreached, dial.MaxAttempts, lastErr)
}

func exchange(addr string, timeout time.Duration, msg protocol.Message) (protocol.Message, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return protocol.Message{}, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	f, err := protocol.EncodeFrame(frame.TypeStatus, 0, msg)
	if err != nil {
		return protocol.Message{}, err
	}
	if err := frame.WriteFrame(conn, f, frame.DefaultLimits()); err != nil {
		return protocol.Message{}, err
	}

	replyFrame, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.DecodeFrame(replyFrame, frame.TypeReply)
}

package manager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/logging"
	"github.com/salishsea-meopar/nowcast/internal/pipeline"
	"github.com/salishsea-meopar/nowcast/internal/protocol"
	"github.com/salishsea-meopar/nowcast/internal/protocol/frame"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

const Source = "nowcast-mgr"

var (
	ErrShutdown = errors.New("manager: shutting down")
)

// Manager sequences the nowcast pipeline. It accepts one framed
// request at a time, replies before taking any follow-up action, and
// launches the next workers in the DAG when a step succeeds.
type Manager struct {
	cfg        config.Config
	cfgPath    string
	debug      bool
	graph      *pipeline.Graph
	checklist  *Checklist
	runDate    time.Time
	runLog     *logging.RotatingFile
	launch     LaunchFunc
	startedAt  time.Time
	mu         sync.Mutex
	msgCounts  map[string]int
	lastMsg    protocol.Message
	lastMsgAt  time.Time
	handleTime time.Duration
}

// LaunchFunc starts a worker process without waiting for it. The
// default implementation runs the worker's configured command locally
// or over SSH depending on its host.
type LaunchFunc func(ctx context.Context, name string, w config.Worker) error

// New builds a Manager from a validated configuration. cfgPath is the
// path to the configuration file, appended to every launched worker
// command so that workers read the same config the manager did.
func New(cfg config.Config, cfgPath string) (*Manager, error) {
	g, err := pipeline.Build(cfg.NextEdges())
	if err != nil {
		return nil, err
	}
	now := time.Now()
	m := &Manager{
		cfg:       cfg,
		cfgPath:   cfgPath,
		graph:     g,
		checklist: NewChecklist(),
		runDate:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		startedAt: now,
		msgCounts: make(map[string]int),
	}
	m.launch = m.launchWorker
	return m, nil
}

// SetLaunchFunc replaces the worker launcher. Tests use this to
// record launches instead of spawning processes.
func (m *Manager) SetLaunchFunc(fn LaunchFunc) { m.launch = fn }

// SetDebug keeps logging on the console instead of the run log file.
// The log file still gets opened and rotated for the workers' sake.
func (m *Manager) SetDebug(debug bool) { m.debug = debug }

// Checklist exposes the live checklist, for the status API.
func (m *Manager) Checklist() *Checklist { return m.checklist }

// RunDate is the nowcast day currently in progress. It advances when
// "the end" closes out the day.
func (m *Manager) RunDate() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runDate
}

// Pipeline exposes the worker DAG, for the status API.
func (m *Manager) Pipeline() *pipeline.Graph { return m.graph }

// Run opens the run log, listens on the configured address, and
// serves requests until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	rl, err := logging.OpenRotatingFile(m.cfg.Logging.LogFile, m.cfg.Logging.BackupCount)
	if err != nil {
		return err
	}
	m.runLog = rl
	defer rl.Close()
	if !m.debug {
		logging.ConfigureRuntime(Source, rl)
	}

	ln, err := net.Listen("tcp", m.cfg.Manager.ListenAddr)
	if err != nil {
		return fmt.Errorf("manager: listen on %s: %w", m.cfg.Manager.ListenAddr, err)
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("listening for worker messages")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("listener closed, shutting down")
				return ErrShutdown
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}
		m.serveConn(ctx, conn)
	}
}

// serveConn handles a single request/reply exchange. The manager is
// deliberately serial: one worker at a time, reply written before any
// follow-up runs.
func (m *Manager) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	started := time.Now()
	conn.SetDeadline(started.Add(30 * time.Second))

	var reply Reply
	var after func(context.Context)
	source, msgType := "unknown", "unreadable"
	f, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("unreadable frame")
		reply = nack("unreadable frame")
	} else if msg, derr := protocol.DecodeFrame(f, frame.TypeStatus); derr != nil {
		log.Warn().Err(derr).Msg("undecodable message")
		reply = nack("invalid message")
		msgType = "undecodable"
	} else {
		source, msgType = msg.Source, msg.MsgType
		reply, after = m.Handle(msg)
	}

	rf, err := protocol.EncodeFrame(frame.TypeReply, reply.flags(), reply.Message)
	if err != nil {
		log.Error().Err(err).Msg("encode reply")
		return
	}
	// Replies carry the request's message id.
	rf.Header.MessageID = f.Header.MessageID
	if err := frame.WriteFrame(conn, rf, frame.DefaultLimits()); err != nil {
		log.Warn().Err(err).Msg("write reply")
		return
	}

	if after != nil {
		after(ctx)
	}

	elapsed := time.Since(started)
	m.mu.Lock()
	m.handleTime = elapsed
	m.mu.Unlock()
	recordMessage(source, msgType, reply.IsError, elapsed)
}

// Reply pairs a protocol message with its error flag.
type Reply struct {
	Message protocol.Message
	IsError bool
}

func (r Reply) flags() uint32 {
	fl := frame.FlagIsReply
	if r.IsError {
		fl |= frame.FlagIsError
	}
	return fl
}

func ack(payload any) Reply {
	return Reply{Message: protocol.Message{Source: Source, MsgType: "ack", Payload: payload}}
}

func nack(msgType string) Reply {
	return Reply{
		Message: protocol.Message{Source: Source, MsgType: msgType},
		IsError: true,
	}
}

// Handle dispatches one worker message. It returns the reply to send
// and an optional follow-up to run after the reply is on the wire.
func (m *Manager) Handle(msg protocol.Message) (Reply, func(context.Context)) {
	m.mu.Lock()
	m.msgCounts[msg.MsgType]++
	m.lastMsg = msg
	m.lastMsgAt = time.Now()
	m.mu.Unlock()

	text, err := m.cfg.MsgTypes.Lookup(msg.Source, msg.MsgType)
	switch {
	case errors.Is(err, protocol.ErrUnregisteredWorker):
		log.Error().Str("source", msg.Source).Msg("message from unregistered worker")
		return nack("unregistered worker"), nil
	case errors.Is(err, protocol.ErrUnregisteredMsgType):
		log.Error().Str("source", msg.Source).Str("msg_type", msg.MsgType).
			Msg("unregistered message type")
		return nack("unregistered message type"), nil
	case err != nil:
		log.Error().Err(err).Msg("message lookup")
		return nack("invalid message"), nil
	}
	log.Info().Str("source", msg.Source).Str("msg_type", msg.MsgType).Msg(text)

	switch {
	case msg.MsgType == "the end" || msg.MsgType == "end of nowcast":
		return ack(nil), m.finishDay
	case strings.HasPrefix(msg.MsgType, "success"):
		m.checklist.Update(msg.Source, msg.MsgType, msg.Payload)
		source, msgType := msg.Source, msg.MsgType
		return ack(nil), func(ctx context.Context) { m.launchNext(ctx, source, msgType) }
	case strings.HasPrefix(msg.MsgType, "failure"), strings.HasPrefix(msg.MsgType, "crash"):
		m.checklist.Update(msg.Source, msg.MsgType, msg.Payload)
		return ack(nil), nil
	case msg.MsgType == "need":
		// Worker is asking for checklist state rather than reporting.
		return ack(m.checklist.Snapshot()), nil
	default:
		return ack(nil), nil
	}
}

// launchNext starts every worker downstream of the given step.
func (m *Manager) launchNext(ctx context.Context, source, msgType string) {
	for _, name := range m.graph.Next(source, msgType) {
		w, ok := m.cfg.Workers[name]
		if !ok {
			log.Error().Str("worker", name).Msg("next worker not configured")
			continue
		}
		if err := m.launch(ctx, name, w); err != nil {
			log.Error().Err(err).Str("worker", name).Msg("launch failed")
			recordLaunch(name, false)
			continue
		}
		recordLaunch(name, true)
		log.Info().Str("worker", name).Str("after", source).Msg("launched worker")
	}
}

func (m *Manager) launchWorker(_ context.Context, name string, w config.Worker) error {
	if len(w.Cmd) == 0 {
		return fmt.Errorf("manager: worker %s has no command", name)
	}
	// Workers read the same config file the manager did.
	args := append(append([]string{}, w.Cmd[1:]...), m.cfgPath)
	var r worker.Runner
	if w.Host == "" || w.Host == "localhost" {
		r = worker.LocalRunner{}
	} else {
		r = worker.SSHRunner{
			Host:           w.Host,
			Port:           m.cfg.Run.SSH.Port,
			User:           m.cfg.Run.SSH.User,
			KeyPath:        m.cfg.Run.SSH.KeyPath,
			KnownHostsPath: m.cfg.Run.SSH.KnownHosts,
		}
	}
	return r.StartDetached(w.Cmd[0], args...)
}

// finishDay persists and clears the checklist, rotates the run log so
// each nowcast day starts a fresh file, and advances the run date.
func (m *Manager) finishDay(ctx context.Context) {
	day := m.RunDate()
	path, err := m.checklist.Persist(m.cfg.ChecklistDir, day)
	if err != nil {
		log.Error().Err(err).Msg("persist checklist")
	} else {
		log.Info().Str("path", path).Int("steps", m.checklist.Len()).Msg("checklist persisted")
	}
	m.checklist.Clear()
	if m.runLog != nil {
		if err := m.runLog.Rotate(day); err != nil {
			log.Error().Err(err).Msg("rotate run log")
		}
	}
	m.mu.Lock()
	m.runDate = day.AddDate(0, 0, 1)
	m.mu.Unlock()
	log.Info().Str("next", m.RunDate().Format("2006-01-02")).Msg("nowcast day complete")
}

// Status summarizes the manager's runtime state for the HTTP API.
type Status struct {
	Source     string         `json:"source"`
	RunDate    string         `json:"run_date"`
	Uptime     string         `json:"uptime"`
	Steps      int            `json:"checklist_steps"`
	MsgCounts  map[string]int `json:"msg_counts"`
	LastSource string         `json:"last_source,omitempty"`
	LastType   string         `json:"last_msg_type,omitempty"`
	LastAt     string         `json:"last_msg_at,omitempty"`
	LastHandle string         `json:"last_handle_time,omitempty"`
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int, len(m.msgCounts))
	for k, v := range m.msgCounts {
		counts[k] = v
	}
	s := Status{
		Source:    Source,
		RunDate:   m.runDate.Format("2006-01-02"),
		Uptime:    time.Since(m.startedAt).Round(time.Second).String(),
		Steps:     m.checklist.Len(),
		MsgCounts: counts,
	}
	if !m.lastMsgAt.IsZero() {
		s.LastSource = m.lastMsg.Source
		s.LastType = m.lastMsg.MsgType
		s.LastAt = m.lastMsgAt.Format(time.RFC3339)
	}
	if m.handleTime > 0 {
		s.LastHandle = m.handleTime.String()
	}
	return s
}

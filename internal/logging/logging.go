// Package logging configures zerolog for the nowcast manager, workers,
// and command-line tools.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "NOWCAST_LOG_LEVEL"
	EnvLogTimestamp = "NOWCAST_LOG_TIMESTAMP"
	EnvLogNoColor   = "NOWCAST_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileDebug
	ProfileTest
)

var configureOnce sync.Once

// ConfigureRuntime sets up the process-global logger writing to w.
// Pass nil to log to stdout through the console writer.
func ConfigureRuntime(component string, w io.Writer) zerolog.Logger {
	return configure(ProfileRuntime, component, w)
}

// ConfigureDebug sets up console logging for workers run in the
// foreground with --debug.
func ConfigureDebug(component string) zerolog.Logger {
	return configure(ProfileDebug, component, nil)
}

// ConfigureTests sets up quiet console logging for test runs.
func ConfigureTests() zerolog.Logger {
	return configure(ProfileTest, "test", nil)
}

func configure(profile Profile, component string, w io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	configureOnce.Do(func() {
		level := defaultLevel(profile)
		if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
			level = lvl
		}

		if w == nil {
			console := zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: time.RFC3339,
				NoColor:    noColor(),
			}
			w = console
		}

		ctx := zerolog.New(w).Level(level).With().Str("component", component)
		if timestamps(profile) {
			ctx = ctx.Timestamp()
		}
		logger = ctx.Logger()
		log.Logger = logger
	})
	return log.Logger
}

func defaultLevel(profile Profile) zerolog.Level {
	switch profile {
	case ProfileDebug, ProfileTest:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func timestamps(profile Profile) bool {
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		return v
	}
	return profile != ProfileTest
}

func noColor() bool {
	v, ok := parseBool(os.Getenv(EnvLogNoColor))
	return ok && v
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

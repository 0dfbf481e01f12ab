// Package testlog routes package test logging through the shared
// zerolog setup so test output stays readable.
package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("start")
}

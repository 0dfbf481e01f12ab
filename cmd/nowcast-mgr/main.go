package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/logging"
	"github.com/salishsea-meopar/nowcast/internal/manager"
)

func main() {
	configPath := flag.String("config", "nowcast.yaml", "nowcast configuration file")
	debug := flag.Bool("debug", false, "log to the console at debug level")
	flag.Parse()

	// Without -debug the manager configures logging itself once the
	// run log file is open.
	if *debug {
		logging.ConfigureDebug(manager.Source)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Info().Str("path", *configPath).Msg("loaded config")

	mgr, err := manager.New(cfg, *configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build manager")
	}
	mgr.SetDebug(*debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(ctx) })
	g.Go(func() error { return mgr.ServeStatus(ctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, manager.ErrShutdown) {
		log.Fatal().Err(err).Msg("manager stopped")
	}
	log.Info().Msg("manager stopped")
}

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/fetch"
	"github.com/salishsea-meopar/nowcast/internal/logging"
	"github.com/salishsea-meopar/nowcast/internal/worker"
	"github.com/salishsea-meopar/nowcast/internal/workers"
)

func usage() {
	fmt.Fprintf(os.Stderr,
		"usage: nowcast-worker [flags] <task> [task args...] <config file>\ntasks: %s\n",
		strings.Join(workers.Names(), ", "))
	flag.PrintDefaults()
}

func main() {
	debug := flag.Bool("debug", false, "log to the console at debug level")
	runDateArg := flag.String("run-date", "", "run date as YYYY-MM-DD (default today)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}
	name := args[0]
	configPath := args[len(args)-1]
	taskArgs := args[1 : len(args)-1]

	runDate := time.Now()
	if *runDateArg != "" {
		var err error
		runDate, err = time.Parse("2006-01-02", *runDateArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad -run-date %q: %v\n", *runDateArg, err)
			os.Exit(2)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.ConfigureDebug(name)
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if *debug {
		logging.ConfigureDebug(name)
	} else {
		f, err := os.OpenFile(cfg.Logging.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logging.ConfigureDebug(name)
			log.Fatal().Err(err).Msg("failed to open log file")
		}
		defer f.Close()
		logging.ConfigureRuntime(name, f)
	}

	env := worker.Env{
		Config:  cfg,
		Fetch:   fetch.New(),
		Runner:  runner(cfg),
		RunDate: runDate,
	}
	task, err := workers.New(env, name, taskArgs...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build task")
	}
	if err := worker.RunTask(task, cfg, worker.DefaultDialConfig()); err != nil {
		log.Fatal().Str("worker", name).Err(err).Msg("worker failed")
	}
}

// runner picks local or SSH execution for run-host commands.
func runner(cfg config.Config) worker.Runner {
	if cfg.Run.Host == "" || cfg.Run.Host == "localhost" {
		return worker.LocalRunner{}
	}
	return worker.SSHRunner{
		Host:           cfg.Run.Host,
		Port:           cfg.Run.SSH.Port,
		User:           cfg.Run.SSH.User,
		KeyPath:        cfg.Run.SSH.KeyPath,
		KnownHostsPath: cfg.Run.SSH.KnownHosts,
	}
}

// nowcast-msg sends a single message to the nowcast manager and
// prints the reply. Debugging/ops tool; it bypasses the worker
// runtime but uses the same wire protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/salishsea-meopar/nowcast/internal/config"
	"github.com/salishsea-meopar/nowcast/internal/logging"
	"github.com/salishsea-meopar/nowcast/internal/protocol"
	"github.com/salishsea-meopar/nowcast/internal/worker"
)

func main() {
	configPath := flag.String("config", "nowcast.yaml", "nowcast configuration file")
	source := flag.String("source", "", "worker name to send as (required)")
	msgType := flag.String("type", "", "message type to send (required)")
	payload := flag.String("payload", "", "optional YAML payload")
	timeout := flag.Duration("timeout", 10*time.Second, "overall send timeout")
	flag.Parse()

	logging.ConfigureDebug("nowcast-msg")
	if *source == "" || *msgType == "" {
		fmt.Fprintln(os.Stderr, "usage: nowcast-msg -source <worker> -type <msg type> [-payload <yaml>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var body any
	if *payload != "" {
		if err := yaml.Unmarshal([]byte(*payload), &body); err != nil {
			log.Fatal().Err(err).Msg("bad payload YAML")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	reply, err := worker.TellManager(ctx, cfg, worker.DefaultDialConfig(), protocol.Message{
		Source:  *source,
		MsgType: *msgType,
		Payload: body,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("send failed")
	}

	out, err := yaml.Marshal(reply)
	if err != nil {
		log.Fatal().Err(err).Msg("unprintable reply")
	}
	fmt.Print(string(out))
}

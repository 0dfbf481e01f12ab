package main

import (
	"flag"
	"log"

	"github.com/salishsea-meopar/nowcast/internal/config"
)

func main() {
	output := flag.String("output", "nowcast.yaml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "nowcast.yaml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.Load(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated nowcast config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote nowcast config template to %s", *output)
}

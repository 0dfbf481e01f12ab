package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/salishsea-meopar/nowcast/internal/logging"
	"github.com/salishsea-meopar/nowcast/internal/results"
)

func main() {
	out := flag.String("out", "", "combined output file (required)")
	varsArg := flag.String("vars", "", "comma-separated variable names to gather (required)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr,
			"usage: ncgather -out combined.nc -vars sossheig,votemper <per-rank files or globs>")
		flag.PrintDefaults()
	}
	flag.Parse()

	logging.ConfigureDebug("ncgather")
	if *out == "" || *varsArg == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	varNames := strings.Split(*varsArg, ",")
	for i := range varNames {
		varNames[i] = strings.TrimSpace(varNames[i])
	}

	rankPaths, err := expandGlobs(flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve rank files")
	}
	if err := results.Gather(*out, varNames, rankPaths); err != nil {
		log.Fatal().Err(err).Msg("gather failed")
	}
	log.Info().Str("out", *out).Int("ranks", len(rankPaths)).
		Strs("vars", varNames).Msg("combined file written")
}

// expandGlobs resolves each argument as a glob pattern, falling back
// to a literal path, and returns the sorted unique result.
func expandGlobs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

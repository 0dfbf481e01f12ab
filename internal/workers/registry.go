// Package workers holds the individual nowcast task implementations
// and the name registry the worker binary dispatches on.
package workers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/salishsea-meopar/nowcast/internal/worker"
)

type factory func(env worker.Env, args []string) (worker.Task, error)

var registry = map[string]factory{
	"download_weather": newDownloadWeather,
	"get_neahbay_ssh":  newGetNeahBaySSH,
	"make_runoff":      newMakeRunoff,
	"run_nemo":         newRunNEMO,
	"watch_nemo":       newWatchNEMO,
	"download_results": newDownloadResults,
	"make_plots":       newMakePlots,
	"make_site_page":   newMakeSitePage,
	"push_to_web":      newPushToWeb,
	"ping_erddap":      newPingERDDAP,
}

// Names lists the known worker tasks in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named task. args are the task's own command line
// arguments (after the worker name and config path).
func New(env worker.Env, name string, args ...string) (worker.Task, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (known tasks: %s)",
			worker.ErrUnknownTask, name, strings.Join(Names(), ", "))
	}
	return build(env, args)
}

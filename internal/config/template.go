package config

import (
	"fmt"
	"os"
)

const template = `# Nowcast system configuration.
checklist_dir: /data/nowcast/checklists

logging:
  log_file: /data/nowcast/logs/nowcast.log
  backup_count: 7

manager:
  listen_addr: :5348
  status_addr: :8784
  cors_origins:
    - https://salishsea.example.ca

weather:
  url_template: https://dd.weather.gc.ca/model_hrdps/west/grib2/{forecast}/{hour}/{filename}
  filename_template: CMC_hrdps_west_{variable}_ps2.5km_{date}{forecast}_P{hour}-00.grib2
  forecast_duration: 42
  grib_dir: /data/nowcast/grib
  variables:
    - UGRD_TGL_10
    - VGRD_TGL_10
    - DSWRF_SFC_0
    - DLWRF_SFC_0
    - TMP_TGL_2
    - SPFH_TGL_2
    - APCP_SFC_0
    - PRMSL_MSL_0
  max_parallel: 4

neah_bay:
  url: https://tidesandcurrents.example.gov/stations/9443090/water_levels.txt
  forcing_dir: /data/nowcast/forcing/ssh
  constituents_file: /data/nowcast/tides/neah_bay.toml

rivers:
  flow_file: /data/nowcast/rivers/flows.csv
  forcing_dir: /data/nowcast/forcing/rivers

erddap:
  flag_dir: /data/erddap/flag
  dataset_ids:
    nowcast:
      - ubcSSnSurfaceTracerFields1hV1
      - ubcSSn3DTracerFields1hV1

run:
  host: westgrid.example.ca
  ssh:
    user: nowcast
    port: "22"
    key_path: /home/nowcast/.ssh/id_rsa
    known_hosts: /home/nowcast/.ssh/known_hosts
  runs_dir: /data/nowcast/runs
  results_dir: /data/nowcast/results
  nemo_cmd: ./nemo.exe
  mpi_procs: 16
  namelist: /data/nowcast/templates/namelist

web:
  site_dir: /data/nowcast/www/site
  server_path: /var/www/html/nowcast
  plots_cmd: [bin/make-plots]
  pages_cmd: [bin/make-pages]

workers:
  download_weather:
    cmd: [nowcast-worker, download_weather, "06"]
    next:
      success 06: [get_neahbay_ssh, make_runoff]
  get_neahbay_ssh:
    cmd: [nowcast-worker, get_neahbay_ssh]
    next:
      success: [run_nemo]
  make_runoff:
    cmd: [nowcast-worker, make_runoff]
  run_nemo:
    cmd: [nowcast-worker, run_nemo]
    next:
      success: [watch_nemo]
  watch_nemo:
    cmd: [nowcast-worker, watch_nemo]
    next:
      success: [download_results]
  download_results:
    cmd: [nowcast-worker, download_results]
    next:
      success: [make_plots, ping_erddap]
  ping_erddap:
    cmd: [nowcast-worker, ping_erddap, nowcast]
  make_plots:
    cmd: [nowcast-worker, make_plots]
    next:
      success: [make_site_page]
  make_site_page:
    cmd: [nowcast-worker, make_site_page]
    next:
      success: [push_to_web]
  push_to_web:
    cmd: [nowcast-worker, push_to_web]

msg_types:
  download_weather:
    success 06: 06 forecast files downloaded
    failure 06: 06 forecast downloads failed
    success 18: 18 forecast files downloaded
    failure 18: 18 forecast downloads failed
    crash: download_weather worker crashed
    the end: nowcast day complete
  get_neahbay_ssh:
    success: ssh boundary forcing file created
    failure: ssh boundary forcing file creation failed
    crash: get_neahbay_ssh worker crashed
  make_runoff:
    success: runoff forcing file created
    failure: runoff forcing file creation failed
    crash: make_runoff worker crashed
  run_nemo:
    success: NEMO run launched
    failure: NEMO run launch failed
    crash: run_nemo worker crashed
  watch_nemo:
    success: NEMO run completed
    failure: NEMO run failed
    crash: watch_nemo worker crashed
  download_results:
    success: run results downloaded
    failure: run results download failed
    crash: download_results worker crashed
  ping_erddap:
    success nowcast: nowcast ERDDAP dataset flag files created
    failure nowcast: nowcast ERDDAP dataset flag files creation failed
    crash: ping_erddap worker crashed
  make_plots:
    success: plots rendered
    failure: plot rendering failed
    crash: make_plots worker crashed
  make_site_page:
    success: site pages rendered
    failure: site page rendering failed
    crash: make_site_page worker crashed
  push_to_web:
    success: site pushed to web server
    failure: site push failed
    crash: push_to_web worker crashed
`

// WriteTemplate writes the annotated example configuration to path.
// Existing files are preserved unless force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config template target %s exists (use -force to overwrite)", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o644)
}

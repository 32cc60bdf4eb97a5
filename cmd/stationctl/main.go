// Stationctl is the command-line client for monitoring and controlling a
// running stationd instance. It connects over HTTP and WebSocket to query
// status, start syncs, and stream live events from the daemon.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/large-farva/groundstation/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Station daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --cache are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "satellites":
		err = ctl.Satellites(*host, *jsonOut)

	case "show":
		opts := ctl.ShowOptions{JSON: *jsonOut}
		showFlags := pflag.NewFlagSet("show", pflag.ContinueOnError)
		showFlags.BoolVar(&opts.Raw, "raw", false, "Print the file exactly as stored")
		_ = showFlags.Parse(subArgs)
		if showFlags.NArg() < 1 {
			err = fmt.Errorf("usage: stationctl show <norad-id> [--raw]")
			break
		}
		opts.CatalogNumber, err = strconv.Atoi(showFlags.Arg(0))
		if err != nil {
			err = fmt.Errorf("invalid NORAD id %q", showFlags.Arg(0))
			break
		}
		err = ctl.Show(*host, opts)

	case "modes":
		err = ctl.Modes(*host, *jsonOut)

	case "history":
		opts := ctl.HistoryOptions{JSON: *jsonOut}
		histFlags := pflag.NewFlagSet("history", pflag.ContinueOnError)
		histFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of runs shown")
		_ = histFlags.Parse(subArgs)
		err = ctl.History(*host, opts)

	case "tle-info":
		err = ctl.TLEInfo(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (info, error, warn)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	// ── Control commands ──────────────────────────────────────────
	case "sync":
		opts := ctl.SyncOptions{JSON: *jsonOut}
		syncFlags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
		syncFlags.BoolVar(&opts.Cache, "cache", false, "Replay the last downloaded feed instead of fetching")
		_ = syncFlags.Parse(subArgs)
		err = ctl.Sync(*host, opts)

	case "tle-refresh":
		err = ctl.TLERefresh(*host, *jsonOut)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  stationctl: ground station control CLI

  USAGE
    stationctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, uptime, and the last sync
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    satellites      List the transponder files on disk
    show ID         Show the transponders stored for one satellite
    modes           List the cached mode table
    history         List recent sync runs
    tle-info        Show TLE cache status and freshness
    logs            Show recent daemon log messages

  COMMANDS (control)
    sync            Synchronize the transponder files now
    tle-refresh     Force a TLE data update from the network
    pause           Pause periodic syncs
    resume          Resume periodic syncs

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    show:
        --raw               Print the file exactly as stored

    history:
        --limit N           Limit number of runs shown

    sync:
        --cache             Replay the last downloaded feed

    logs:
        --level LEVEL       Filter by log level (info, error, warn)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

  EXAMPLES
    stationctl status
    stationctl --json status
    stationctl --host http://192.168.8.1:8080 watch
    stationctl sync
    stationctl sync --cache
    stationctl satellites
    stationctl show 25544
    stationctl show 25544 --raw
    stationctl history --limit 10
    stationctl logs --level error --limit 20
    stationctl watch --filter sync_finished,log

`)
}

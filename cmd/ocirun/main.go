// Package main is the ocirun CLI: the single binary that plays every
// role spec §4.H's process pipeline names (supervisor, intermediate,
// init) plus the lifecycle commands of spec §6. reexec.Init() must run
// before any flag parsing, since a re-exec'd intermediate or init stage
// is invoked with a sentinel argv[0] rather than a real subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer/reexec"
)

const specConfig = "config.json"

func main() {
	if reexec.Init() {
		return
	}

	app := cli.NewApp()
	app.Name = "ocirun"
	app.Usage = "an OCI-compliant low-level container runtime"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "root",
			Value: defaultRoot(),
			Usage: "root directory for container state",
		},
		cli.StringFlag{
			Name:  "log",
			Usage: "set the log destination (defaults to stderr)",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "set the log format: text or json",
		},
		cli.BoolFlag{
			Name:  "systemd-cgroup",
			Usage: "use systemd's transient units for cgroup management",
		},
	}
	app.Before = func(context *cli.Context) error {
		return setupLogging(context)
	}
	app.Commands = []cli.Command{
		createCommand,
		startCommand,
		stateCommand,
		killCommand,
		deleteCommand,
		execCommand,
		pauseCommand,
		resumeCommand,
		eventsCommand,
		listCommand,
		specCommand,
		psCommand,
		updateCommand,
	}
	app.CommandNotFound = func(context *cli.Context, command string) {
		fmt.Fprintf(os.Stderr, "ocirun: unknown command %q\n", command)
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// defaultRoot follows the rootless fallback spec §6 names: XDG_RUNTIME_DIR
// when set and we aren't root, /run/ocirun otherwise.
func defaultRoot() string {
	if os.Geteuid() != 0 {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return dir + "/ocirun"
		}
	}
	return "/run/ocirun"
}

// fatal prints err and exits 1, the general-failure code spec §6 names
// for every command whose failure isn't a hook's own exit status.
func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ocirun:", err)
	os.Exit(1)
}

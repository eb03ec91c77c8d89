package main

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var killCommand = cli.Command{
	Name:      "kill",
	Usage:     "send a signal to a container",
	ArgsUsage: "<id> <signal>",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "all", Usage: "send the signal to every task in the container's cgroup"},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 2, exactArgs); err != nil {
			return err
		}
		sig, err := parseSignal(context.Args().Get(1))
		if err != nil {
			return err
		}
		c, err := libcontainer.Load(rootDir(context), containerID(context))
		if err != nil {
			return err
		}
		return c.Signal(sig, context.Bool("all"))
	},
}

// signalMap covers the subset of signals a container lifecycle realistically
// needs to send; anything else can still be given numerically.
var signalMap = map[string]unix.Signal{
	"HUP":  unix.SIGHUP,
	"INT":  unix.SIGINT,
	"QUIT": unix.SIGQUIT,
	"KILL": unix.SIGKILL,
	"TERM": unix.SIGTERM,
	"USR1": unix.SIGUSR1,
	"USR2": unix.SIGUSR2,
	"CONT": unix.SIGCONT,
	"STOP": unix.SIGSTOP,
}

func parseSignal(s string) (unix.Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return unix.Signal(n), nil
	}
	name := strings.ToUpper(strings.TrimPrefix(s, "SIG"))
	if sig, ok := signalMap[name]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}

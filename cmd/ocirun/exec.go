package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var execCommand = cli.Command{
	Name:      "exec",
	Usage:     "run a new process inside a running container",
	ArgsUsage: "<id> <command> [args...]",
	Flags: []cli.Flag{
		cli.StringSliceFlag{Name: "env, e", Usage: "environment variables (KEY=VALUE)"},
		cli.StringFlag{Name: "cwd", Usage: "working directory for the exec'd process"},
		cli.StringFlag{Name: "user, u", Usage: "user (uid[:gid]) to run the process as"},
		cli.StringFlag{Name: "console-socket", Usage: "unix socket to send the terminal master fd to"},
		cli.BoolFlag{Name: "tty, t", Usage: "accepted for compatibility; has no effect"},
		cli.StringFlag{Name: "pid-file", Usage: "file to write the exec'd process's pid to"},
		cli.BoolFlag{Name: "no-new-privs", Usage: "set PR_SET_NO_NEW_PRIVS"},
		cli.BoolFlag{Name: "detach, d", Usage: "detach from the exec'd process"},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 2, minArgs); err != nil {
			return err
		}
		c, err := libcontainer.Load(rootDir(context), containerID(context))
		if err != nil {
			return err
		}
		res, err := c.Exec(libcontainer.ExecOptions{
			Args:            context.Args()[1:],
			Env:             append(os.Environ(), context.StringSlice("env")...),
			Cwd:             context.String("cwd"),
			User:            context.String("user"),
			ConsoleSocket:   context.String("console-socket"),
			PidFile:         context.String("pid-file"),
			NoNewPrivileges: context.Bool("no-new-privs"),
		})
		if err != nil {
			return err
		}
		// The exec'd process is reparented away from this CLI invocation by
		// the time the intermediate generation exits (startInitProcess
		// reaps it to re-point at init's real pid, same as create), so
		// there is no child relationship left to block on here regardless
		// of --detach; print the pid either way.
		fmt.Println(res.Pid)
		return nil
	},
}

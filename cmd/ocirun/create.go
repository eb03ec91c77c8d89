package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "create a container",
	ArgsUsage: "<id>",
	Description: `The create command creates an instance of a container from a bundle.
After a successful create the container is left in the "created" state,
waiting on its notify socket for the start command.`,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "bundle, b", Value: ".", Usage: "path to the OCI bundle"},
		cli.StringFlag{Name: "pid-file", Usage: "file to write the container's pid to"},
		cli.StringFlag{Name: "console-socket", Usage: "unix socket to send the terminal master fd to"},
		cli.BoolFlag{Name: "no-pivot", Usage: "accepted for compatibility; has no effect (pivot_root is always used)"},
		cli.BoolFlag{Name: "no-new-keyring", Usage: "do not create a new session keyring"},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		_, err := libcontainer.Create(rootDir(context), containerID(context), libcontainer.CreateOptions{
			Bundle:        context.String("bundle"),
			PidFile:       context.String("pid-file"),
			ConsoleSocket: context.String("console-socket"),
			NoNewKeyring:  context.Bool("no-new-keyring"),
			Rootless:      os.Geteuid() != 0,
			SystemdCgroup: context.GlobalBool("systemd-cgroup"),
		})
		return err
	},
}

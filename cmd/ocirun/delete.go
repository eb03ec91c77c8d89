package main

import (
	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var deleteCommand = cli.Command{
	Name:      "delete",
	Usage:     "delete a stopped container",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "force, f", Usage: "kill a still-running container before deleting it"},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		c, err := libcontainer.Load(rootDir(context), containerID(context))
		if err != nil {
			if libcontainer.IsKind(err, libcontainer.NotFound) && context.Bool("force") {
				return nil
			}
			return err
		}
		return c.Delete(context.Bool("force"))
	},
}

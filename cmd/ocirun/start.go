package main

import (
	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var startCommand = cli.Command{
	Name:      "start",
	Usage:     "start a created container",
	ArgsUsage: "<id>",
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		c, err := libcontainer.Load(rootDir(context), containerID(context))
		if err != nil {
			return err
		}
		return c.Start()
	},
}

package main

import (
	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var pauseCommand = cli.Command{
	Name:      "pause",
	Usage:     "freeze a container's processes",
	ArgsUsage: "<id>",
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		c, err := libcontainer.Load(rootDir(context), containerID(context))
		if err != nil {
			return err
		}
		return c.Pause()
	},
}

var resumeCommand = cli.Command{
	Name:      "resume",
	Usage:     "thaw a paused container's processes",
	ArgsUsage: "<id>",
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		c, err := libcontainer.Load(rootDir(context), containerID(context))
		if err != nil {
			return err
		}
		return c.Resume()
	},
}

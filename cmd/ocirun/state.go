package main

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var stateCommand = cli.Command{
	Name:      "state",
	Usage:     "output the state of a container",
	ArgsUsage: "<id>",
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		c, err := libcontainer.Load(rootDir(context), containerID(context))
		if err != nil {
			return err
		}
		s, err := c.State()
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(s)
	},
}

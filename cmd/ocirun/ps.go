package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var psCommand = cli.Command{
	Name:      "ps",
	Usage:     "list the task pids running in a container's cgroup",
	ArgsUsage: "<id>",
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		pids, err := libcontainer.ContainerPids(rootDir(context), containerID(context))
		if err != nil {
			return err
		}
		for _, pid := range pids {
			fmt.Println(pid)
		}
		return nil
	},
}

package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
)

var eventsCommand = cli.Command{
	Name:      "events",
	Usage:     "stream a container's cgroup statistics as JSON",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "stats", Usage: "print a single stats snapshot and exit"},
		cli.DurationFlag{Name: "interval", Value: 5 * time.Second, Usage: "polling interval for repeated output"},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		id := containerID(context)
		root := rootDir(context)
		enc := json.NewEncoder(os.Stdout)

		stats, err := libcontainer.ContainerStats(root, id)
		if err != nil {
			return err
		}
		if err := enc.Encode(stats); err != nil {
			return err
		}
		if context.Bool("stats") {
			return nil
		}

		ticker := time.NewTicker(context.Duration("interval"))
		defer ticker.Stop()
		for range ticker.C {
			stats, err := libcontainer.ContainerStats(root, id)
			if err != nil {
				return err
			}
			if err := enc.Encode(stats); err != nil {
				return err
			}
		}
		return nil
	},
}

package main

import (
	"github.com/docker/go-units"
	"github.com/urfave/cli"

	"github.com/ocirun/ocirun/libcontainer"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

var updateCommand = cli.Command{
	Name:      "update",
	Usage:     "update a container's cgroup resource limits",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "memory, m", Usage: "memory limit (e.g. 300M, 1G); -1 for unlimited"},
		cli.StringFlag{Name: "memory-swap", Usage: "total memory+swap limit; -1 for unlimited"},
		cli.Uint64Flag{Name: "cpu-shares", Usage: "CPU shares (relative weight)"},
		cli.Int64Flag{Name: "cpu-quota", Usage: "CPU CFS quota in microseconds; -1 for unlimited"},
		cli.Uint64Flag{Name: "cpu-period", Usage: "CPU CFS period in microseconds"},
		cli.Int64Flag{Name: "pids-limit", Usage: "maximum number of processes; -1 for unlimited"},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1, exactArgs); err != nil {
			return err
		}
		root := rootDir(context)
		id := containerID(context)

		r := &configs.Resources{
			CpuShares: context.Uint64("cpu-shares"),
			CpuQuota:  context.Int64("cpu-quota"),
			CpuPeriod: context.Uint64("cpu-period"),
			PidsLimit: context.Int64("pids-limit"),
		}

		if s := context.String("memory"); s != "" {
			v, err := parseMemoryLimit(s)
			if err != nil {
				return err
			}
			r.Memory = v
		}
		if s := context.String("memory-swap"); s != "" {
			v, err := parseMemoryLimit(s)
			if err != nil {
				return err
			}
			r.MemorySwap = v
		}

		return libcontainer.ContainerUpdate(root, id, r)
	},
}

// parseMemoryLimit accepts "-1" for unlimited (the cgroup convention this
// runtime uses throughout, see cgroups/fs2's applyMemory) or a
// human-readable size like "300M"/"1.5G" via go-units, the same notation
// `docker update --memory` accepts.
func parseMemoryLimit(s string) (int64, error) {
	if s == "-1" {
		return -1, nil
	}
	v, err := units.RAMInBytes(s)
	if err != nil {
		return 0, err
	}
	return v, nil
}

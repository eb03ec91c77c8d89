package cgroups

import (
	"strings"

	"github.com/moby/sys/mountinfo"
)

// FindV1MountPoints discovers each v1 subsystem's mount point by parsing
// /proc/self/mountinfo (spec §4.C "v1 ... Discovers subsystem mount points
// by parsing /proc/self/mountinfo"), returning subsystem name -> mount
// point directory.
func FindV1MountPoints() (map[string]string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("cgroup"))
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, m := range mounts {
		for _, opt := range strings.Split(m.VFSOptions, ",") {
			if isKnownV1Subsystem(opt) {
				out[opt] = m.Mountpoint
			}
		}
	}
	return out, nil
}

var knownV1Subsystems = map[string]bool{
	"cpu": true, "cpuacct": true, "cpuset": true, "memory": true,
	"pids": true, "blkio": true, "hugetlb": true, "devices": true,
	"freezer": true, "net_cls": true, "net_prio": true,
	"perf_event": true, "rdma": true, "name=systemd": true,
}

func isKnownV1Subsystem(opt string) bool {
	return knownV1Subsystems[opt]
}

// FindV2MountPoint locates the single unified v2 hierarchy, normally
// /sys/fs/cgroup.
func FindV2MountPoint() (string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("cgroup2"))
	if err != nil {
		return "", err
	}
	if len(mounts) == 0 {
		return "/sys/fs/cgroup", nil
	}
	return mounts[0].Mountpoint, nil
}

// +build linux

package cgroups

import "golang.org/x/sys/unix"

// cgroup2SuperMagic is CGROUP2_SUPER_MAGIC from linux/magic.h.
const cgroup2SuperMagic = 0x63677270

type unixStatfs = unix.Statfs_t

func statfs(path string, buf *unixStatfs) error {
	return unix.Statfs(path, buf)
}

// Package fs implements the cgroup v1 backend: one subdirectory per
// mounted controller, discovered via cgroups.FindV1MountPoints and written
// to with the per-controller subsystem implementations in this package
// (spec §4.C "v1").
package fs

import (
	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

// subsystem is one v1 controller: set resources, read stats. Mirrors the
// teacher's `subsystem` interface referenced by libcontainer/cgroups/systemd
// (github.com/opencontainers/runc/libcontainer/cgroups/fs.CpusetGroup etc.
// in _examples/other_examples/...systemd-v1.go.go).
type subsystem interface {
	Name() string
	Apply(path string, r *configs.Resources) error
	GetStats(path string, stats *cgroups.Stats) error
}

// subsystems is the fixed list applied in order; order doesn't affect
// correctness here (each writes to its own controller directory) but
// matches the teacher's legacySubsystems ordering for familiarity.
var subsystems = []subsystem{
	&CpusetGroup{},
	&DevicesGroup{},
	&MemoryGroup{},
	&CpuGroup{},
	&PidsGroup{},
	&BlkioGroup{},
	&HugetlbGroup{},
	&FreezerGroup{},
	&NetClsGroup{},
	&NetPrioGroup{},
}

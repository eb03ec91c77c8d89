// Package manager is the single construction point for component C's three
// backends, kept separate from package cgroups itself to avoid an import
// cycle (fs, fs2 and systemd all depend on cgroups for the shared Manager
// interface and helpers).
package manager

import (
	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/cgroups/fs"
	"github.com/ocirun/ocirun/libcontainer/cgroups/fs2"
	"github.com/ocirun/ocirun/libcontainer/cgroups/systemd"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

// New picks the cgroup backend at construction time: the systemd-delegated
// backend when cg.Systemd is set (the --systemd-cgroup flag) and v1 or v2
// otherwise depending on which hierarchy /sys/fs/cgroup is mounted as
// (spec §9 "Cgroup manager as tagged variant chosen at construction time").
func New(cg *configs.Cgroup) (cgroups.Manager, error) {
	unified := cgroups.IsCgroup2UnifiedMode()

	if cg.Systemd {
		return systemd.NewManager(cg, unified)
	}
	if unified {
		return fs2.NewManager(cg)
	}
	return fs.NewManager(cg)
}

// Reopen reconstructs a Manager for a container some earlier process
// already applied: every lifecycle command except create/start runs as a
// fresh invocation with no in-memory Manager to reuse, so kill/delete/pause
// need a way to address the same cgroup again without re-creating it.
func Reopen(cg *configs.Cgroup) (cgroups.Manager, error) {
	mgr, err := New(cg)
	if err != nil {
		return nil, err
	}
	if sm, ok := mgr.(interface{ Attach() error }); ok {
		if err := sm.Attach(); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

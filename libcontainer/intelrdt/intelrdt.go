// Package intelrdt applies the optional Intel RDT (resctrl) resource
// control surface alongside the cgroup manager: a fifth resource-control
// backend, narrower and independent from component C's Manager interface,
// applied and destroyed in lockstep with it (SPEC_FULL.md "Intel RDT
// (intelrdt) resource control").
package intelrdt

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/moby/sys/mountinfo"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// IsSupported reports whether the host kernel has the resctrl filesystem
// mounted at all. A host without it present isn't an error by itself; per
// SPEC_FULL.md this is recorded as a warning, not a hard failure.
func IsSupported() bool {
	_, err := findMountPoint()
	return err == nil
}

func findMountPoint() (string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("resctrl"))
	if err != nil {
		return "", err
	}
	if len(mounts) == 0 {
		return "", fmt.Errorf("intelrdt: resctrl filesystem not mounted")
	}
	return mounts[0].Mountpoint, nil
}

// Manager applies one container's *configs.IntelRdt to a resctrl control
// group. Its lifecycle mirrors cgroups.Manager's Apply/Destroy pair, but it
// is deliberately not a cgroups.Manager itself: resctrl groups are keyed by
// CLOS id, not by the container's cgroup path, and containers that share a
// ClosID are expected to join the same group rather than get one each.
type Manager struct {
	id     string
	config *configs.IntelRdt
	path   string
}

// NewManager builds a Manager for id. config is nil for the common case of
// a container that doesn't request Intel RDT control, in which case every
// method below is a no-op.
func NewManager(id string, config *configs.IntelRdt) *Manager {
	return &Manager{id: id, config: config}
}

// closID is the resctrl group name this container's configuration names,
// defaulting to the container id when the spec didn't ask to join an
// existing class of service.
func (m *Manager) closID() string {
	if m.config.ClosID != "" {
		return m.config.ClosID
	}
	return m.id
}

// resolvePath locates the resctrl group this container's config names,
// without creating it. It works the same whether called from the process
// that ran Apply or, as Destroy is, from a later process that only has the
// config persisted in state.json to go on.
func (m *Manager) resolvePath() (string, error) {
	mp, err := findMountPoint()
	if err != nil {
		return "", fmt.Errorf("intel rdt: %w", err)
	}
	return filepath.Join(mp, m.closID()), nil
}

// Apply creates the resctrl group (tolerating one that already exists, so
// containers sharing a ClosID join it rather than collide), writes the
// requested schemata, and adds pid to the group's tasks file.
func (m *Manager) Apply(pid int) error {
	if m.config == nil {
		return nil
	}
	path, err := m.resolvePath()
	if err != nil {
		return err
	}
	if err := os.Mkdir(path, 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("creating resctrl group %s: %w", path, err)
	}
	m.path = path

	var schemata string
	if m.config.L3CacheSchema != "" {
		schemata += m.config.L3CacheSchema + "\n"
	}
	if m.config.MemBwSchema != "" {
		schemata += m.config.MemBwSchema + "\n"
	}
	if schemata != "" {
		if err := os.WriteFile(filepath.Join(path, "schemata"), []byte(schemata), 0o644); err != nil {
			return fmt.Errorf("writing %s/schemata: %w", path, err)
		}
	}

	if err := os.WriteFile(filepath.Join(path, "tasks"), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("adding pid %d to resctrl group %s: %w", pid, path, err)
	}
	return nil
}

// Path returns the resctrl group directory Apply created, or "" before
// Apply has run or when no configuration was requested.
func (m *Manager) Path() string {
	return m.path
}

// Destroy removes the resctrl group, resolving its path fresh (the caller
// is typically a later process than the one that called Apply, matching
// the Reopen function of package cgroups/manager). It does not force-remove a group that still has
// other containers' tasks in it: the kernel's rmdir on a non-empty control
// group fails on its own, and that failure is returned rather than
// swallowed.
func (m *Manager) Destroy() error {
	if m.config == nil {
		return nil
	}
	path := m.path
	if path == "" {
		p, err := m.resolvePath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing resctrl group %s: %w", path, err)
	}
	return nil
}

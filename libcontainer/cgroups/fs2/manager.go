// Package fs2 implements the cgroup v2 backend: one unified hierarchy
// rooted at /sys/fs/cgroup, controllers enabled top-down in each parent's
// cgroup.subtree_control before use, and device control via an eBPF
// program attached to the cgroup (spec §4.C "v2").
package fs2

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

// UnifiedMountpoint is the conventional v2 mount point; also the default
// FindV2MountPoint falls back to.
const UnifiedMountpoint = "/sys/fs/cgroup"

// subtreeLockPath is the process-wide contended resource spec §5 names:
// "the v2 manager takes a file-lock on a dedicated lock file ... while
// mutating it". Matches the literal path named in spec.md's GLOSSARY
// discussion of youki's design (".youki.lock"), generalized to this
// runtime's own name.
var subtreeLockPath = filepath.Join(UnifiedMountpoint, ".ocirun.lock")

// processWideMu additionally serializes subtree-control edits within this
// process; the file lock in lockSubtree covers cross-process contention.
var processWideMu sync.Mutex

type Manager struct {
	mu      sync.Mutex
	cgroup  *configs.Cgroup
	root    string
	path    string // full path under root, e.g. /sys/fs/cgroup/ocirun/<id>
	devProg *deviceProgram
}

func NewManager(cg *configs.Cgroup) (*Manager, error) {
	root, err := cgroups.FindV2MountPoint()
	if err != nil {
		return nil, err
	}
	rel := cg.Path
	if rel == "" {
		rel = filepath.Join(cg.Parent, cg.Name)
	}
	return &Manager{cgroup: cg, root: root, path: filepath.Join(root, rel)}, nil
}

func (m *Manager) Type() cgroups.ManagerType { return cgroups.TypeV2 }

func (m *Manager) Path(subsystem string) string { return m.path }

func lockSubtree() (func(), error) {
	f, err := os.OpenFile(subtreeLockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening subtree_control lock: %w", err)
	}
	processWideMu.Lock()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		processWideMu.Unlock()
		f.Close()
		return nil, fmt.Errorf("locking subtree_control lock: %w", err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		processWideMu.Unlock()
	}, nil
}

// enableControllers walks from root to the deepest ancestor of m.path,
// writing "+<controller>" to each level's cgroup.subtree_control, so the
// leaf cgroup is allowed to use it (spec §4.C "Before applying a
// controller, walks from the root enabling it in each parent's
// cgroup.subtree_control").
func (m *Manager) enableControllers(controllers []string) error {
	unlock, err := lockSubtree()
	if err != nil {
		return err
	}
	defer unlock()

	rel, err := filepath.Rel(m.root, m.path)
	if err != nil {
		return err
	}
	cur := m.root
	parts := strings.Split(rel, string(filepath.Separator))
	// The root and every ancestor below it are written; the leaf itself
	// never gets its own subtree_control written (that would be for
	// controllers *its children* use); stop one level short.
	for i := range parts {
		if i > 0 {
			cur = filepath.Join(cur, parts[i-1])
			if err := os.MkdirAll(cur, 0755); err != nil {
				return fmt.Errorf("creating cgroup v2 parent %s: %w", cur, err)
			}
		}
		for _, c := range controllers {
			if err := cgroups.WriteFile(cur, "cgroup.subtree_control", "+"+c); err != nil {
				logrus.Debugf("cgroup v2: enabling %s at %s: %v", c, cur, err)
			}
		}
	}
	return nil
}

func (m *Manager) create() error {
	return os.MkdirAll(m.path, 0755)
}

func (m *Manager) Apply(r *configs.Resources) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	needed := neededControllers(r)
	if err := m.enableControllers(needed); err != nil {
		return err
	}
	if err := m.create(); err != nil {
		return fmt.Errorf("creating cgroup v2 directory: %w", err)
	}

	if err := applyCPU(m.path, r); err != nil {
		return err
	}
	if err := applyMemory(m.path, r); err != nil {
		return err
	}
	if err := applyPids(m.path, r); err != nil {
		return err
	}
	if err := applyCpuset(m.path, r); err != nil {
		return err
	}
	if err := applyIO(m.path, r); err != nil {
		return err
	}
	if err := applyHugetlb(m.path, r); err != nil {
		return err
	}

	if len(r.Devices) > 0 {
		prog, err := attachDeviceProgram(m.path, r.Devices)
		if err != nil {
			if m.cgroup.Rootless {
				logrus.Warnf("cgroup v2: device eBPF program: %v (continuing, rootless)", err)
			} else {
				return err
			}
		} else {
			m.devProg = prog
		}
	}

	for k, v := range r.Unified {
		if err := cgroups.WriteFile(m.path, k, v); err != nil {
			if m.cgroup.Rootless {
				logrus.Warnf("cgroup v2: writing unified %s: %v (continuing, rootless)", k, err)
				continue
			}
			return fmt.Errorf("writing unified cgroup file %s: %w", k, err)
		}
	}
	return nil
}

func neededControllers(r *configs.Resources) []string {
	var out []string
	if r.CpuShares != 0 || r.CpuQuota != 0 || r.CpuPeriod != 0 {
		out = append(out, "cpu")
	}
	if r.Memory != 0 || r.MemoryReservation != 0 {
		out = append(out, "memory")
	}
	if r.PidsLimit != 0 {
		out = append(out, "pids")
	}
	if r.CpusetCpus != "" || r.CpusetMems != "" {
		out = append(out, "cpuset")
	}
	if r.BlkioWeight != 0 || len(r.BlkioThrottle) > 0 {
		out = append(out, "io")
	}
	if len(r.HugetlbLimit) > 0 {
		out = append(out, "hugetlb")
	}
	return out
}

func (m *Manager) AddTask(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cgroups.WriteCgroupProc(m.path, pid)
}

func (m *Manager) AddThread(tid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cgroups.WriteFile(m.path, "cgroup.threads", strconv.Itoa(tid))
}

func (m *Manager) Freeze(state cgroups.FreezerState) error {
	val := "0"
	if state == cgroups.Frozen {
		val = "1"
	}
	if err := cgroups.WriteFile(m.path, "cgroup.freeze", val); err != nil {
		return err
	}
	if state != cgroups.Frozen {
		return nil
	}
	return pollFrozen(m.path)
}

func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.devProg != nil {
		m.devProg.detach()
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cgroup v2 %s: %w", m.path, err)
	}
	return nil
}

package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

// Manager is the cgroup v1 backend: one subdirectory per mounted
// controller under each controller's own hierarchy (spec §4.C "v1").
type Manager struct {
	mu     sync.Mutex
	cgroup *configs.Cgroup
	mounts map[string]string // subsystem -> mount point
	paths  map[string]string // subsystem -> this container's directory
}

// NewManager discovers v1 mount points and computes this container's
// per-controller paths from cg.Parent/cg.Name.
func NewManager(cg *configs.Cgroup) (*Manager, error) {
	mounts, err := cgroups.FindV1MountPoints()
	if err != nil {
		return nil, err
	}
	m := &Manager{cgroup: cg, mounts: mounts, paths: map[string]string{}}
	rel := cg.Path
	if rel == "" {
		rel = filepath.Join(cg.Parent, cg.Name)
	}
	for name, mp := range mounts {
		m.paths[name] = filepath.Join(mp, rel)
	}
	return m, nil
}

func (m *Manager) Type() cgroups.ManagerType { return cgroups.TypeV1 }

func (m *Manager) Path(subsystem string) string { return m.paths[subsystem] }

func (m *Manager) create() error {
	for name, path := range m.paths {
		if err := os.MkdirAll(path, 0755); err != nil {
			if m.cgroup.Rootless {
				logrus.Warnf("cgroup v1: could not create %s cgroup at %s: %v (continuing, rootless)", name, path, err)
				delete(m.paths, name)
				continue
			}
			return fmt.Errorf("creating cgroup v1 %s directory: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) Apply(r *configs.Resources) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.create(); err != nil {
		return err
	}
	if r.Unified != nil {
		return fmt.Errorf("cgroups: unified resources are not valid on a v1 hierarchy")
	}
	for _, s := range subsystems {
		path, ok := m.paths[s.Name()]
		if !ok {
			// controller not mounted or rootless-skipped; spec: warn-and-skip
			logrus.Warnf("cgroup v1: %s controller not available, skipping", s.Name())
			continue
		}
		if err := s.Apply(path, r); err != nil {
			if m.cgroup.Rootless {
				logrus.Warnf("cgroup v1: applying %s resources: %v (continuing, rootless)", s.Name(), err)
				continue
			}
			return fmt.Errorf("applying %s cgroup: %w", s.Name(), err)
		}
	}
	return nil
}

func (m *Manager) AddTask(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, path := range m.paths {
		if err := cgroups.WriteCgroupProc(path, pid); err != nil {
			if m.cgroup.Rootless {
				logrus.Warnf("cgroup v1: adding pid to %s: %v (continuing, rootless)", name, err)
				continue
			}
			return fmt.Errorf("adding pid %d to %s cgroup: %w", pid, name, err)
		}
	}
	return nil
}

func (m *Manager) AddThread(tid int) error {
	// v1 has no cgroup.threads; every subsystem's tasks file accepts a tid
	// the same way it accepts a pid (spec §4.C "on v1 writes to every
	// subsystem's tasks").
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, path := range m.paths {
		if err := cgroups.WriteFile(path, "tasks", fmt.Sprintf("%d", tid)); err != nil {
			if m.cgroup.Rootless {
				logrus.Warnf("cgroup v1: adding thread to %s: %v (continuing, rootless)", name, err)
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Manager) Stats() (*cgroups.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &cgroups.Stats{}
	for _, s := range subsystems {
		path, ok := m.paths[s.Name()]
		if !ok {
			continue
		}
		if err := s.GetStats(path, stats); err != nil {
			return nil, fmt.Errorf("reading %s stats: %w", s.Name(), err)
		}
	}
	return stats, nil
}

func (m *Manager) Freeze(state cgroups.FreezerState) error {
	path, ok := m.paths["freezer"]
	if !ok {
		return fmt.Errorf("cgroups: freezer controller not available: %w", errCgroupUnsupported("freezer"))
	}
	return Freeze(path, state)
}

func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range m.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing cgroup %s: %w", path, err)
		}
	}
	return nil
}

type unsupportedErr struct{ controller string }

func (e *unsupportedErr) Error() string { return fmt.Sprintf("controller %q not mounted", e.controller) }

func errCgroupUnsupported(controller string) error { return &unsupportedErr{controller} }

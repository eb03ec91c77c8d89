// Package systemd implements the systemd-delegated cgroup backend: rather
// than creating cgroup directories directly, it asks systemd (over D-Bus) to
// start a transient scope unit with Delegate=true, then manages the
// delegated subtree underneath it the same way the fs/fs2 backends manage
// their own trees (spec §4.C "systemd"; --systemd-cgroup).
package systemd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/cgroups/fs"
	"github.com/ocirun/ocirun/libcontainer/cgroups/fs2"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

// delegate is the subset of cgroups.Manager that the filesystem backends
// (fs, fs2) provide once the unit has delegated a subtree to us; the
// systemd Manager forwards to one of these for everything file-based.
type delegate interface {
	AddTask(pid int) error
	AddThread(tid int) error
	Apply(r *configs.Resources) error
	Stats() (*cgroups.Stats, error)
	Freeze(state cgroups.FreezerState) error
	Destroy() error
	Path(subsystem string) string
}

// Manager drives a systemd transient unit for delegation/accounting and
// delegates the resulting subtree to the matching filesystem backend.
type Manager struct {
	mu       sync.Mutex
	cgroup   *configs.Cgroup
	unified  bool
	unitName string
	delegate delegate
}

// NewManager constructs a systemd-delegated manager. unified selects
// whether the delegated subtree is managed as a v2 unified hierarchy (true)
// or a v1 per-controller hierarchy (false); the caller (component C's
// top-level constructor) decides this from IsCgroup2UnifiedMode.
func NewManager(cg *configs.Cgroup, unified bool) (*Manager, error) {
	return &Manager{cgroup: cg, unified: unified, unitName: unitName(cg)}, nil
}

func (m *Manager) Type() cgroups.ManagerType {
	if m.unified {
		return cgroups.TypeV2Systemd
	}
	return cgroups.TypeV1Systemd
}

// Attach reconstructs the delegate for a unit that a previous process
// already started with Apply (used by lifecycle operations other than
// create/start, which run as fresh invocations with no in-memory Manager
// to reuse). It does not start or touch the transient unit itself.
func (m *Manager) Attach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delegate != nil {
		return nil
	}
	delegated := &configs.Cgroup{
		Name:     m.cgroup.Name,
		Parent:   m.cgroup.Parent,
		Path:     m.delegatedPath(),
		Rootless: m.cgroup.Rootless,
	}
	var (
		d   delegate
		err error
	)
	if m.unified {
		d, err = fs2.NewManager(delegated)
	} else {
		d, err = fs.NewManager(delegated)
	}
	if err != nil {
		return fmt.Errorf("reattaching delegated cgroup manager: %w", err)
	}
	m.delegate = d
	return nil
}

func (m *Manager) Path(subsystem string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delegate == nil {
		return ""
	}
	return m.delegate.Path(subsystem)
}

// unitName derives the transient unit's name from the cgroup name,
// following systemd's convention that a unit managing a container runs as
// a ".scope" unit (the runtime is not itself a systemd service), matching
// the teacher's getUnitName/ScopePrefix idiom.
func unitName(cg *configs.Cgroup) string {
	prefix := cg.ScopePrefix
	if prefix == "" {
		prefix = "ocirun"
	}
	if strings.HasSuffix(cg.Name, ".slice") {
		return cg.Name
	}
	return fmt.Sprintf("%s-%s.scope", prefix, cg.Name)
}

func slice(cg *configs.Cgroup) string {
	if cg.Parent != "" {
		return cg.Parent
	}
	return "system.slice"
}

func dial() (*systemdDbus.Conn, error) {
	conn, err := systemdDbus.NewWithContext(context.Background())
	if err != nil {
		return nil, fmt.Errorf("connecting to systemd over D-Bus: %w", err)
	}
	return conn, nil
}

// Apply starts the transient delegated unit (if not already started) and
// then applies resources through the filesystem backend matching the
// delegated subtree, the same two-step shape the teacher's legacyManager
// uses (StartTransientUnit for accounting/delegation, then per-file writes
// for the settings unit properties don't cover, e.g. `Resources.Unified`).
func (m *Manager) Apply(r *configs.Resources) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.startUnit(r); err != nil {
		return err
	}

	delegated := &configs.Cgroup{
		Name:     m.cgroup.Name,
		Parent:   m.cgroup.Parent,
		Path:     m.delegatedPath(),
		Rootless: m.cgroup.Rootless,
	}

	var (
		d   delegate
		err error
	)
	if m.unified {
		d, err = fs2.NewManager(delegated)
	} else {
		d, err = fs.NewManager(delegated)
	}
	if err != nil {
		return fmt.Errorf("constructing delegated cgroup manager: %w", err)
	}
	m.delegate = d

	return m.delegate.Apply(r)
}

// delegatedPath is the path systemd creates for a transient unit under its
// slice, relative to the controller/unified root: <slice>/<unit>.
func (m *Manager) delegatedPath() string {
	return slice(m.cgroup) + "/" + m.unitName
}

func (m *Manager) startUnit(r *configs.Resources) error {
	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	props := []systemdDbus.Property{
		systemdDbus.PropDescription("container " + m.cgroup.Name),
		systemdDbus.PropSlice(slice(m.cgroup)),
		newProp("Delegate", true),
		newProp("MemoryAccounting", true),
		newProp("CPUAccounting", true),
		newProp("IOAccounting", true),
		newProp("TasksAccounting", true),
		newProp("DefaultDependencies", false),
	}
	props = append(props, resourceProperties(r, m.unified)...)

	ch := make(chan string, 1)
	if _, err := conn.StartTransientUnitContext(context.Background(), m.unitName, "replace", props, ch); err != nil {
		return fmt.Errorf("starting transient unit %s: %w", m.unitName, err)
	}
	if res := <-ch; res != "done" {
		return fmt.Errorf("starting transient unit %s: result %q", m.unitName, res)
	}
	return nil
}

func newProp(name string, value interface{}) systemdDbus.Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(value)}
}

func (m *Manager) AddTask(pid int) error {
	m.mu.Lock()
	d := m.delegate
	m.mu.Unlock()
	if d == nil {
		return fmt.Errorf("cgroups: systemd manager has no delegated subtree yet (call Apply first)")
	}
	return d.AddTask(pid)
}

func (m *Manager) AddThread(tid int) error {
	m.mu.Lock()
	d := m.delegate
	m.mu.Unlock()
	if d == nil {
		return fmt.Errorf("cgroups: systemd manager has no delegated subtree yet (call Apply first)")
	}
	return d.AddThread(tid)
}

func (m *Manager) Stats() (*cgroups.Stats, error) {
	m.mu.Lock()
	d := m.delegate
	m.mu.Unlock()
	if d == nil {
		return &cgroups.Stats{}, nil
	}
	return d.Stats()
}

func (m *Manager) Freeze(state cgroups.FreezerState) error {
	m.mu.Lock()
	d := m.delegate
	m.mu.Unlock()
	if d == nil {
		return nil
	}
	return d.Freeze(state)
}

// Destroy stops the transient unit; systemd removes the cgroup subtree
// itself once the unit's last process exits and the unit is stopped (spec
// §4.C "systemd ... Destroy stops the unit rather than rmdir'ing").
func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan string, 1)
	if _, err := conn.StopUnitContext(context.Background(), m.unitName, "replace", ch); err != nil {
		logrus.Warnf("cgroups: stopping unit %s: %v", m.unitName, err)
	} else if res := <-ch; res != "done" {
		logrus.Warnf("cgroups: stopping unit %s: result %q", m.unitName, res)
	}

	if m.delegate != nil {
		if err := m.delegate.Destroy(); err != nil && m.cgroup.Rootless {
			logrus.Warnf("cgroups: removing delegated subtree for %s: %v (continuing, rootless)", m.unitName, err)
			return nil
		} else if err != nil {
			return err
		}
	}
	return nil
}

package libcontainer

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	cgmanager "github.com/ocirun/ocirun/libcontainer/cgroups/manager"
	"github.com/ocirun/ocirun/libcontainer/configs"
	"github.com/ocirun/ocirun/libcontainer/hooks"
	"github.com/ocirun/ocirun/libcontainer/intelrdt"
	"github.com/ocirun/ocirun/libcontainer/specconv"
)

// Container is the handle the lifecycle API (component I) returns: every
// method locks the container's state directory for the duration of the
// call, exactly as spec §4.G requires, and every call is a fresh process
// re-opening state.json rather than holding anything in memory across
// invocations (the CLI is re-exec'd once per subcommand).
type Container struct {
	Root string
	ID   string
}

// Load opens a handle to an existing container without taking any lock;
// callers that need consistency take the lock themselves (State() uses a
// shared lock, mutating calls an exclusive one).
func Load(root, id string) (*Container, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if _, err := loadState(root, id); err != nil {
		return nil, err
	}
	return &Container{Root: root, ID: id}, nil
}

// CreateOptions bundles create's CLI flags (spec §6 `create`).
type CreateOptions struct {
	Bundle        string
	PidFile       string
	ConsoleSocket string
	NoNewKeyring  bool
	Rootless      bool
	SystemdCgroup bool
}

// Create runs the full creating->created transition: spawn the process
// pipeline cascade (component H), wait for procReady, write the container
// record, and optionally drop a --pid-file. The container is left in
// `created`, parked on its notify socket, exactly as spec §4.I's state
// table requires.
func Create(root, id string, opts CreateOptions) (*Container, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := ensureStateDir(root, id, opts.Rootless); err != nil {
		return nil, err
	}
	// From here on any failure must remove what ensureStateDir created, so
	// a half-finished create doesn't permanently squat on the id (spec §7
	// "inside the supervisor, errors trigger a cleanup pass").
	succeeded := false
	defer func() {
		if !succeeded {
			removeStateDir(root, id)
		}
	}()

	lk, err := openFlock(root, id)
	if err != nil {
		return nil, err
	}
	defer lk.Close()
	if err := lk.lock(true); err != nil {
		return nil, err
	}
	defer lk.unlock()

	spec, err := loadBundleSpec(opts.Bundle)
	if err != nil {
		return nil, err
	}

	cg := &configs.Cgroup{
		Name:     id,
		Systemd:  opts.SystemdCgroup,
		Rootless: opts.Rootless,
	}
	cfg, err := specconv.Convert(spec, bundleRootfs(opts.Bundle, spec), cg)
	if err != nil {
		return nil, wrapError(ConfigInvalid, err, "converting bundle spec")
	}
	if opts.NoNewKeyring {
		cfg.NoNewKeyring = true
	}

	notifyPath := notifySocketPath(root, id)
	proc := &Process{
		Args:          spec.Process.Args,
		Env:           spec.Process.Env,
		Cwd:           spec.Process.Cwd,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		ConsoleSocket: opts.ConsoleSocket,
		init:          true,
	}

	res, err := startInitProcess(id, root, cfg, proc, notifyPath)
	if err != nil {
		return nil, err
	}

	s := &State{
		ID:             id,
		Status:         StatusCreated,
		Pid:            res.Pid,
		PidStartTime:   res.PidStartTime,
		Bundle:         opts.Bundle,
		Annotations:    spec.Annotations,
		CreatedAt:      creationTime(),
		UsedNamespaces: usedNamespaces(cfg.Namespaces, res.Pid),
		CgroupPaths:    res.CgroupPaths,
		Cgroup:         cg,
		IntelRdt:       cfg.IntelRdt,
		ConsoleSocket:  opts.ConsoleSocket,
		Rootless:       opts.Rootless,
	}
	if err := saveState(root, s); err != nil {
		return nil, err
	}

	if opts.PidFile != "" {
		if err := os.WriteFile(opts.PidFile, []byte(fmt.Sprintf("%d", res.Pid)), 0644); err != nil {
			return nil, newSystemErrorWithCause(err, "writing pid file")
		}
	}

	succeeded = true
	return &Container{Root: root, ID: id}, nil
}

// creationTime exists only so tests can override "now" without the package
// ever calling time.Now() from more than one place.
var creationTime = func() time.Time { return time.Now() }

// usedNamespaces records, for every namespace type the container entered,
// the /proc/<pid>/ns/<type> path a later exec must setns into to land in
// the same namespace: NamespaceType's string values already match the
// /proc/<pid>/ns/<name> filenames directly, so no separate mapping table
// is needed.
func usedNamespaces(requested configs.Namespaces, pid int) []UsedNamespace {
	var out []UsedNamespace
	for _, ns := range requested {
		out = append(out, UsedNamespace{
			Type: ns.Type,
			Path: fmt.Sprintf("/proc/%d/ns/%s", pid, ns.Type),
		})
	}
	return out
}

// Start moves created->running: it runs startContainer hooks host-side
// (prestart, createRuntime and createContainer already ran inside the
// create supervisor at the procHooks/rootfsReady checkpoints), sends the
// notify START datagram, records `running`, then runs poststart hooks,
// whose failures are only logged. Poststop hooks run in Delete.
// Init's execve is not separately confirmed: the record transitions to
// running as soon as START is delivered, matching spec §4.I's guard
// ("notify START delivered; init's exec succeeded") — an init that fails
// its own execve reports that failure by exiting, which the next State()
// call's isAlive() check surfaces as `stopped`.
func (c *Container) Start() error {
	lk, err := openFlock(c.Root, c.ID)
	if err != nil {
		return err
	}
	defer lk.Close()
	if err := lk.lock(true); err != nil {
		return err
	}
	defer lk.unlock()

	s, err := loadState(c.Root, c.ID)
	if err != nil {
		return err
	}
	if s.Status != StatusCreated {
		return newErrorf(ConfigInvalid, "cannot start container %q in state %q", c.ID, s.Status)
	}
	if !s.isAlive() {
		return newErrorf(Protocol, "container %q's init process is no longer running", c.ID)
	}

	// StartContainer hooks run with the container still `created`,
	// matching spec §4.J's ordering (everything up through createContainer
	// already ran inside the create supervisor).
	if err := hooks.Run(configs.StartContainer, loadHooks(s), s); err != nil {
		return wrapError(HookFailed, err, "running startContainer hooks")
	}

	if err := sendStart(notifySocketPath(c.Root, c.ID)); err != nil {
		return err
	}

	s.Status = StatusRunning
	if err := saveState(c.Root, s); err != nil {
		return err
	}
	if err := hooks.Run(configs.Poststart, loadHooks(s), s); err != nil {
		logrus.Warnf("running poststart hooks for %s: %v", s.ID, err)
	}
	return nil
}

// loadHooks recovers the hook set persisted at create time; State itself
// does not carry the resolved Hooks map (Config does, and Config is not
// persisted), so Start/Kill-time hook classes that need it must be wired
// from wherever the bundle's config.json still lives. Rootless/standard
// deployments keep config.json alongside the bundle, and the bundle path
// is in State.Bundle; resolving hooks from it again keeps state.json
// itself small and free of executable paths it never needs for anything
// but hook classes invoked after create.
func loadHooks(s *State) configs.Hooks {
	if s.Bundle == "" {
		return nil
	}
	spec, err := loadBundleSpec(s.Bundle)
	if err != nil {
		return nil
	}
	return specconv.ConvertHooks(spec)
}

// Signal sends sig to the container's init (or, with all, to every task in
// its cgroup — spec §6 `kill --all`).
func (c *Container) Signal(sig unix.Signal, all bool) error {
	lk, err := openFlock(c.Root, c.ID)
	if err != nil {
		return err
	}
	defer lk.Close()
	if err := lk.lock(true); err != nil {
		return err
	}
	defer lk.unlock()

	s, err := loadState(c.Root, c.ID)
	if err != nil {
		return err
	}
	if s.Status == StatusStopped {
		return newErrorf(NotFound, "container %q is already stopped", c.ID)
	}

	if all {
		pids, err := cgroupPids(s)
		if err != nil {
			return err
		}
		var firstErr error
		for _, pid := range pids {
			if err := unix.Kill(pid, sig); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil {
			return wrapError(Syscall, firstErr, "signaling container tasks")
		}
		return nil
	}

	if !s.isAlive() {
		return newErrorf(NotFound, "container %q's init process is no longer running", c.ID)
	}
	if err := unix.Kill(s.Pid, sig); err != nil {
		return wrapErrorf(Syscall, err, "signaling pid %d", s.Pid)
	}
	if sig == unix.SIGKILL {
		s.Status = StatusStopped
		return saveState(c.Root, s)
	}
	return nil
}

// Pause and Resume drive the freezer state transition (spec §4.I
// running<->paused).
func (c *Container) Pause() error  { return c.setFrozen(true) }
func (c *Container) Resume() error { return c.setFrozen(false) }

func (c *Container) setFrozen(freeze bool) error {
	lk, err := openFlock(c.Root, c.ID)
	if err != nil {
		return err
	}
	defer lk.Close()
	if err := lk.lock(true); err != nil {
		return err
	}
	defer lk.unlock()

	s, err := loadState(c.Root, c.ID)
	if err != nil {
		return err
	}
	trigger := "pause"
	target := StatusPaused
	if !freeze {
		trigger, target = "resume", StatusRunning
	}
	if err := s.transition(trigger); err != nil {
		return err
	}

	mgr, err := cgmanager.Reopen(s.Cgroup)
	if err != nil {
		return err
	}
	state := cgroups.Thawed
	if freeze {
		state = cgroups.Frozen
	}
	if err := mgr.Freeze(state); err != nil {
		return err
	}

	s.Status = target
	return saveState(c.Root, s)
}

// Delete removes a stopped container's on-disk and cgroup footprint.
// force also kills a still-running container first, matching spec §6
// `delete --force`.
func (c *Container) Delete(force bool) error {
	lk, err := openFlock(c.Root, c.ID)
	if err != nil {
		return err
	}
	defer lk.Close()
	if err := lk.lock(true); err != nil {
		return err
	}
	defer lk.unlock()

	s, err := loadState(c.Root, c.ID)
	if err != nil {
		return err
	}

	if s.isAlive() {
		if !force {
			return newErrorf(ConfigInvalid, "container %q still has a running process, use --force", c.ID)
		}
		unix.Kill(s.Pid, unix.SIGKILL)
		for i := 0; i < 50 && s.isAlive(); i++ {
			time.Sleep(20 * time.Millisecond)
		}
	}

	if err := hooks.Run(configs.Poststop, loadHooks(s), s); err != nil {
		// Poststop is logged-only per spec §4.J; hooks.Run already applied
		// that policy, so a non-nil error here would only happen for a
		// class hooks.Run treats as fatal, which poststop never is.
		return err
	}

	if s.Cgroup != nil {
		if mgr, err := cgmanager.Reopen(s.Cgroup); err == nil {
			mgr.Destroy()
		}
	}
	if s.IntelRdt != nil {
		if err := intelrdt.NewManager(s.ID, s.IntelRdt).Destroy(); err != nil {
			logrus.Warnf("intel rdt: destroying resctrl group for %s: %v", s.ID, err)
		}
	}

	return removeStateDir(c.Root, c.ID)
}

// State renders the OCI-shaped state object spec §6 `state` prints.
func (c *Container) State() (*OCIState, error) {
	lk, err := openFlock(c.Root, c.ID)
	if err != nil {
		return nil, err
	}
	defer lk.Close()
	if err := lk.lock(false); err != nil {
		return nil, err
	}
	defer lk.unlock()

	s, err := loadState(c.Root, c.ID)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusRunning && !s.isAlive() {
		s.Status = StatusStopped
		saveState(c.Root, s)
	}
	return s.toOCIState(), nil
}

// List enumerates every container id under root (spec §6 `list`).
func List(root string) ([]*OCIState, error) {
	ids, err := listContainers(root)
	if err != nil {
		return nil, err
	}
	var out []*OCIState
	for _, id := range ids {
		s, err := loadState(root, id)
		if err != nil {
			continue
		}
		out = append(out, s.toOCIState())
	}
	return out, nil
}

// ExecOptions bundles exec's CLI flags (spec §6 `exec`).
type ExecOptions struct {
	Args            []string
	Env             []string
	Cwd             string
	User            string
	ConsoleSocket   string
	PidFile         string
	NoNewPrivileges bool
}

// ExecResult is what Exec hands back once the new process has reported
// procReady and joined the container's namespaces and cgroup.
type ExecResult struct {
	Pid int
}

// Exec runs a new process inside an already-running container (component H
// "exec path"): rather than creating fresh namespaces, the process pipeline
// cascade joins the ones recorded on the container's state by path, and
// joins the existing cgroup instead of applying a new one. There is no
// rootfs to prepare and no hook checkpoint — the target container already
// ran those at create time — and no notify-socket wait, since exec has no
// separate create/start split.
func (c *Container) Exec(opts ExecOptions) (*ExecResult, error) {
	lk, err := openFlock(c.Root, c.ID)
	if err != nil {
		return nil, err
	}
	defer lk.Close()
	if err := lk.lock(false); err != nil {
		return nil, err
	}
	defer lk.unlock()

	s, err := loadState(c.Root, c.ID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusRunning && s.Status != StatusCreated {
		return nil, newErrorf(ConfigInvalid, "cannot exec into container %q in state %q", c.ID, s.Status)
	}
	if !s.isAlive() {
		return nil, newErrorf(Protocol, "container %q's init process is no longer running", c.ID)
	}
	if len(s.UsedNamespaces) == 0 {
		return nil, newErrorf(ConfigInvalid, "container %q has no recorded namespaces to join", c.ID)
	}

	var ns configs.Namespaces
	for _, u := range s.UsedNamespaces {
		ns = append(ns, configs.Namespace{Type: u.Type, Path: u.Path})
	}

	cfg := &configs.Config{
		Namespaces:      ns,
		Cgroups:         s.Cgroup,
		NoNewPrivileges: opts.NoNewPrivileges,
	}

	proc := &Process{
		Args:          opts.Args,
		Env:           opts.Env,
		Cwd:           opts.Cwd,
		User:          opts.User,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		ConsoleSocket: opts.ConsoleSocket,
		init:          false,
	}

	res, err := startInitProcess(c.ID, c.Root, cfg, proc, "")
	if err != nil {
		return nil, err
	}

	if opts.PidFile != "" {
		if err := os.WriteFile(opts.PidFile, []byte(fmt.Sprintf("%d", res.Pid)), 0644); err != nil {
			return nil, newSystemErrorWithCause(err, "writing pid file")
		}
	}

	return &ExecResult{Pid: res.Pid}, nil
}

// ContainerStats reads id's cgroup statistics, for the `events --stats`
// subcommand.
func ContainerStats(root, id string) (*cgroups.Stats, error) {
	lk, err := openFlock(root, id)
	if err != nil {
		return nil, err
	}
	defer lk.Close()
	if err := lk.lock(false); err != nil {
		return nil, err
	}
	defer lk.unlock()

	s, err := loadState(root, id)
	if err != nil {
		return nil, err
	}
	if s.Cgroup == nil {
		return nil, newErrorf(CgroupUnsupported, "container %q has no recorded cgroup", id)
	}
	mgr, err := cgmanager.Reopen(s.Cgroup)
	if err != nil {
		return nil, err
	}
	return mgr.Stats()
}

// ContainerUpdate applies new resource limits to an already-created or
// running container's cgroup, without touching its process tree or
// namespaces (spec §4.C's Manager.Apply is idempotent and safe to call
// again with a revised configs.Resources). The container's recorded
// Cgroup.Resources is replaced with r so a later ContainerStats/ps
// reflects the update, and so `Reopen` after a future lifecycle call
// targets the same limits.
func ContainerUpdate(root, id string, r *configs.Resources) error {
	lk, err := openFlock(root, id)
	if err != nil {
		return err
	}
	defer lk.Close()
	if err := lk.lock(true); err != nil {
		return err
	}
	defer lk.unlock()

	s, err := loadState(root, id)
	if err != nil {
		return err
	}
	if s.Cgroup == nil {
		return newErrorf(CgroupUnsupported, "container %q has no recorded cgroup", id)
	}
	mgr, err := cgmanager.Reopen(s.Cgroup)
	if err != nil {
		return err
	}
	if err := mgr.Apply(r); err != nil {
		return err
	}
	s.Cgroup.Resources = r
	return saveState(root, s)
}

// ContainerPids lists every pid in id's cgroup, for the `ps` subcommand.
func ContainerPids(root, id string) ([]int, error) {
	lk, err := openFlock(root, id)
	if err != nil {
		return nil, err
	}
	defer lk.Close()
	if err := lk.lock(false); err != nil {
		return nil, err
	}
	defer lk.unlock()

	s, err := loadState(root, id)
	if err != nil {
		return nil, err
	}
	return cgroupPids(s)
}

// cgroupPids lists every pid in the container's primary cgroup, for
// `kill --all` and `ps`.
func cgroupPids(s *State) ([]int, error) {
	if s.Cgroup == nil {
		return []int{s.Pid}, nil
	}
	mgr, err := cgmanager.Reopen(s.Cgroup)
	if err != nil {
		return nil, err
	}
	pids, err := cgroups.ReadCgroupProcs(mgr.Path(""))
	if err != nil {
		return nil, wrapError(Syscall, err, "reading cgroup.procs")
	}
	return pids, nil
}

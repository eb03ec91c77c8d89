package libcontainer

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ocirun/ocirun/libcontainer/capabilities"
	"github.com/ocirun/ocirun/libcontainer/configs"
	ociconsole "github.com/ocirun/ocirun/libcontainer/console"
	"github.com/ocirun/ocirun/libcontainer/reexec"
	"github.com/ocirun/ocirun/libcontainer/seccomp"
	"github.com/ocirun/ocirun/libcontainer/system"
)

// Sentinel argv[0] values the supervisor re-execs itself under; main()
// calls reexec.Init() before anything else so these dispatch before any
// CLI flag parsing happens (spec §4.H: "the same binary plays all three
// generations").
const (
	stageIntermediate = "ocirun-intermediate"
	stageInit         = "ocirun-init"
)

// syncPipeFD and initPipeFD are the fixed ExtraFiles slots the supervisor
// always wires up: index 0 of cmd.ExtraFiles lands on fd 3 in the child,
// index 1 on fd 4, and so on. Using fixed slots (rather than an env-var
// encoded fd number) keeps the three stages' wiring code identical.
const (
	syncPipeFD = 3
	initPipeFD = 4
)

func init() {
	reexec.Register(stageIntermediate, runIntermediate)
	reexec.Register(stageInit, runInit)
}

// runIntermediate is generation 2 of spec §4.H's cascade: it unshares the
// user namespace (if requested) and round-trips the id mapping through
// the supervisor, then unshares the pid namespace (if requested) so the
// process it is about to fork lands as pid 1 of a fresh namespace, then
// forks generation 3 (init) and reports its pid back, then exits. A
// freshly unshared pid namespace only ever affects an unsharing task's
// *children*, never the task itself, which is exactly why a dedicated
// middle generation exists at all.
func runIntermediate() {
	sync := os.NewFile(syncPipeFD, "sync")
	initPipe := os.NewFile(initPipeFD, "init-pipe")

	sys := system.Linux{}

	cfg, err := readBootstrapConfig(sync)
	if err != nil {
		fatal(err)
	}

	// User and pid namespaces are always this generation's job, whether the
	// request is "create a new one" (spec §4.H, the container-init path)
	// or "join an existing one" (the exec path, component H "exec path"):
	// both unshare and setns(CLONE_NEWPID) only take effect on the calling
	// task's *future children*, never on the caller itself, so whichever
	// applies must happen here, strictly before init is forked below.
	ns := cfg.Config.Namespaces
	if ns.Contains(configs.NEWUSER) {
		if path := ns.PathOf(configs.NEWUSER); path != "" {
			if err := joinNamespace(sys, path, configs.NEWUSER); err != nil {
				fatalSync(sync, err)
			}
		} else {
			if err := sys.Unshare(unix.CLONE_NEWUSER); err != nil {
				fatalSync(sync, wrapErrorf(Syscall, err, "unshare(user)"))
			}
			if err := writeSync(sync, idMappingRequest); err != nil {
				fatal(err)
			}
			if _, err := readSyncMsg(sync); err != nil {
				fatal(err)
			}
		}
	}

	if ns.Contains(configs.NEWPID) {
		if path := ns.PathOf(configs.NEWPID); path != "" {
			if err := joinNamespace(sys, path, configs.NEWPID); err != nil {
				fatalSync(sync, err)
			}
		} else {
			if err := sys.Unshare(unix.CLONE_NEWPID); err != nil {
				fatalSync(sync, wrapErrorf(Syscall, err, "unshare(pid)"))
			}
		}
	}

	// Hand the same bootstrap document down to init: init's only channel
	// back to the world is initPipe, so it cannot read sync itself (it
	// isn't its descriptor once fd 3 is reused by the next exec).
	if err := writeBootstrapConfig(initPipe, cfg); err != nil {
		fatalSync(sync, err)
	}

	cmd := reexec.Command(stageInit)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.ExtraFiles = []*os.File{initPipe}
	cmd.Dir = "/"
	if err := cmd.Start(); err != nil {
		fatalSync(sync, wrapError(Syscall, err, "starting init process"))
	}
	initPipe.Close()

	if err := writeSyncMsg(sync, syncT{Type: initReady, Pid: cmd.Process.Pid}); err != nil {
		fatal(err)
	}
	os.Exit(0)
}

// runInit is generation 3. For a container's own init (cfg.Process.Init)
// it runs the full spec §4.H choreography: remaining namespaces, hostname,
// the two hook checkpoints around rootfs preparation, privilege narrowing,
// then parks on the notify channel (component E) until `start` wakes it.
// For a later `exec` into an already-running container (component H "exec
// path") there is no rootfs to prepare and no separate start handshake —
// the process runs as soon as it's namespaced and privilege-narrowed, so
// every container-init-only step below is skipped.
func runInit() {
	sync := os.NewFile(syncPipeFD, "sync")
	sys := system.Linux{}

	cfg, err := readBootstrapConfig(sync)
	if err != nil {
		fatal(err)
	}
	c := cfg.Config
	isInit := cfg.Process.Init

	if err := enterRemainingNamespaces(sys, c); err != nil {
		fatalSync(sync, err)
	}

	if err := bringUpLoopback(sys, c.Networks); err != nil {
		fatalSync(sync, err)
	}

	if isInit {
		if c.Namespaces.Contains(configs.NEWUTS) && c.Namespaces.PathOf(configs.NEWUTS) == "" {
			if c.Hostname != "" {
				if err := sys.Sethostname(c.Hostname); err != nil {
					fatalSync(sync, wrapError(Syscall, err, "sethostname"))
				}
			}
			if c.Domainname != "" {
				if err := sys.Setdomainname(c.Domainname); err != nil {
					fatalSync(sync, wrapError(Syscall, err, "setdomainname"))
				}
			}
		}

		// Checkpoint 1: let the supervisor run prestart + createRuntime
		// hooks while it still has an OCI state to hand them (spec §4.J).
		if err := writeSync(sync, procHooks); err != nil {
			fatal(err)
		}
		if _, err := readSyncMsg(sync); err != nil {
			fatal(err)
		}

		if err := (&rootfsPreparer{sys: sys, config: c}).prepare(); err != nil {
			fatalSync(sync, err)
		}

		// Checkpoint 2: let the supervisor run createContainer hooks now
		// that the new root is in place but the user process hasn't
		// started.
		if err := writeSync(sync, rootfsReady); err != nil {
			fatal(err)
		}
		if _, err := readSyncMsg(sync); err != nil {
			fatal(err)
		}
	}

	if cfg.Process.ConsoleSocket != "" {
		if err := setupConsole(cfg.Process.ConsoleSocket); err != nil {
			fatalSync(sync, err)
		}
	}

	if c.NoNewPrivileges {
		if err := sys.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
			fatalSync(sync, wrapError(Syscall, err, "prctl(PR_SET_NO_NEW_PRIVS)"))
		}
	}

	if err := setupRlimits(sys, c.Rlimits); err != nil {
		fatalSync(sync, err)
	}

	if c.Capabilities != nil {
		if err := capabilities.Apply(os.Getpid(), c.Capabilities); err != nil {
			fatalSync(sync, wrapError(Syscall, err, "applying capabilities"))
		}
	}

	// Seccomp is installed last, per spec §4.H: every other privilege
	// narrowing step above still needs syscalls a tight filter might deny.
	if err := seccomp.Apply(nil, c.Seccomp); err != nil {
		fatalSync(sync, wrapError(Syscall, err, "installing seccomp filter"))
	}

	// procReady always fires: it is also the supervisor's cue to apply and
	// join the cgroup (process_linux.go), which an exec needs exactly as
	// much as a container's own init does. Only a container's own init
	// then waits on the notify channel — an exec has no separate `start`
	// step and runs the moment it is namespaced and narrowed.
	var nl *notifyListener
	if isInit {
		nl, err = listenNotify(cfg.NotifySocketPath)
		if err != nil {
			fatalSync(sync, err)
		}
	}

	if err := writeSync(sync, procReady); err != nil {
		fatal(err)
	}
	sync.Close()

	if isInit {
		if err := nl.waitStart(); err != nil {
			fatal(err)
		}
		nl.Close()
	}

	if err := sys.CloseRange(3, ^uint(0), 0); err != nil {
		fatal(err)
	}

	env := cfg.Process.Env
	argv := cfg.Process.Args
	if len(argv) == 0 {
		fatal(newError(ConfigInvalid, "empty process args"))
	}
	if err := sys.Exec(argv[0], argv, env); err != nil {
		fatal(err)
	}
}

// joinNamespace setns's the calling task into an existing namespace by
// path, used for both user and pid namespaces when the exec path requests
// joining a running container's namespace rather than creating a fresh one.
func joinNamespace(sys system.Syscaller, path string, t configs.NamespaceType) error {
	f, err := os.Open(path)
	if err != nil {
		return wrapErrorf(Syscall, err, "opening namespace path %s", path)
	}
	defer f.Close()
	if err := sys.Setns(int(f.Fd()), cloneFlag(t)); err != nil {
		return wrapErrorf(Syscall, err, "setns(%s, %s)", t, path)
	}
	return nil
}

// bringUpLoopback runs inside whatever network namespace the task is now
// in and flips "lo" up for every requested "loopback" network strategy
// (there being exactly one strategy name this runtime implements itself;
// anything beyond it is an external network plugin's job, per
// SPEC_FULL.md's network loopback bring-up supplement). A no-op when no
// net namespace was created (nets is empty in that case, see specconv's
// convertNetworks).
func bringUpLoopback(sys system.Syscaller, nets []*configs.Network) error {
	for _, n := range nets {
		if n.Type != "loopback" {
			continue
		}
		if err := sys.SetInterfaceUp("lo"); err != nil {
			return wrapError(Syscall, err, "bringing up loopback interface")
		}
	}
	return nil
}

// enterRemainingNamespaces applies every requested namespace except user
// and pid: those two are exclusively the intermediate's responsibility
// (spec §8 "namespace entry order") because a task can never usefully
// setns into a pid namespace it just unshared for its own children, and
// by the time init exists the user namespace is already in effect.
func enterRemainingNamespaces(sys system.Syscaller, c *configs.Config) error {
	var remaining configs.Namespaces
	fds := map[configs.NamespaceType]int{}
	for _, n := range c.Namespaces {
		if n.Type == configs.NEWUSER || n.Type == configs.NEWPID {
			continue
		}
		remaining = append(remaining, n)
		if n.Path != "" {
			f, err := os.Open(n.Path)
			if err != nil {
				return wrapErrorf(Syscall, err, "opening namespace path %s", n.Path)
			}
			defer f.Close()
			fds[n.Type] = int(f.Fd())
		}
	}
	return applyNamespaces(sys, fds, remaining)
}

// setupRlimits applies rlimits before capabilities are dropped: raising a
// limit above its current hard value needs CAP_SYS_RESOURCE, which may be
// one of the capabilities about to be removed.
func setupRlimits(sys system.Syscaller, limits []configs.Rlimit) error {
	for _, l := range limits {
		if err := sys.Setrlimit(l.Type, unix.Rlimit{Cur: l.Soft, Max: l.Hard}); err != nil {
			return wrapErrorf(Syscall, err, "setting rlimit %d", l.Type)
		}
	}
	return nil
}

// setupConsole allocates a PTY, sends the master down socketPath via
// SCM_RIGHTS, and makes the slave the process's stdio (spec §6 console
// protocol). It runs after rootfs preparation and hook checkpoints but
// before the privilege-narrowing steps below (NO_NEW_PRIVS, capabilities,
// seccomp): opening a PTY and dup3-ing it onto stdio needs syscalls a
// tight seccomp filter may deny, so the handoff has to happen while the
// process can still make them. The master fd this process still holds
// afterward is reaped later by close_range along with everything else
// above stderr.
func setupConsole(socketPath string) error {
	pty, slavePath, err := ociconsole.New()
	if err != nil {
		return err
	}
	if err := ociconsole.SendMaster(socketPath, int(pty.Fd()), slavePath); err != nil {
		return err
	}
	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		return wrapErrorf(Syscall, err, "opening console slave %s", slavePath)
	}
	defer slave.Close()
	for _, fd := range []int{0, 1, 2} {
		if err := unix.Dup3(int(slave.Fd()), fd, 0); err != nil {
			return wrapErrorf(Syscall, err, "duplicating console slave onto fd %d", fd)
		}
	}
	return nil
}

func readBootstrapConfig(f *os.File) (*bootstrapConfig, error) {
	var cfg bootstrapConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, wrapError(Protocol, err, "decoding bootstrap config")
	}
	return &cfg, nil
}

func writeBootstrapConfig(f *os.File, cfg *bootstrapConfig) error {
	if err := json.NewEncoder(f).Encode(cfg); err != nil {
		return wrapError(Protocol, err, "encoding bootstrap config")
	}
	return nil
}

// fatalSync best-effort-reports err to the supervisor before dying, so
// `create` fails with a real diagnosis instead of just "pipe closed".
func fatalSync(sync *os.File, err error) {
	kind := ConfigInvalid
	if e, ok := err.(*Error); ok {
		kind = e.Kind
	}
	_ = writeSyncError(sync, kind, err.Error())
	fatal(err)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "init: "+err.Error())
	os.Exit(1)
}

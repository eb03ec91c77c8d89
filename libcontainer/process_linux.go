package libcontainer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	cgmanager "github.com/ocirun/ocirun/libcontainer/cgroups/manager"
	"github.com/ocirun/ocirun/libcontainer/configs"
	"github.com/ocirun/ocirun/libcontainer/hooks"
	"github.com/ocirun/ocirun/libcontainer/intelrdt"
	"github.com/ocirun/ocirun/libcontainer/reexec"
	"github.com/ocirun/ocirun/libcontainer/system"
)

// createResult is everything startInitProcess hands back to the `create`
// caller once init has signaled procReady and is parked on its notify
// socket (spec §4.H steps 1-5).
type createResult struct {
	Pid              int
	PidStartTime     uint64
	NotifySocketPath string
	CgroupPaths      map[string]string
}

// startInitProcess runs the full three-generation cascade once: spawn the
// intermediate, round-trip the id-mapping request, collect init's pid,
// then drive init through its two hook checkpoints and its final
// procReady, applying the cgroup policy exactly at the point spec §5
// requires ("cgroup-apply happens-before notify-start"). The caller
// (Container.Create, or Container.Exec for an exec'd process) holds the
// state-directory lock for the duration of this call.
func startInitProcess(id, root string, c *configs.Config, proc *Process, notifyPath string) (res *createResult, retErr error) {
	syncA, syncAChild, err := newSyncSockpair("sync-intermediate")
	if err != nil {
		return nil, err
	}
	defer syncA.Close()
	syncB, syncBChild, err := newSyncSockpair("sync-init")
	if err != nil {
		syncAChild.Close()
		return nil, err
	}
	defer syncB.Close()

	cmd := reexec.Command(stageIntermediate)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = proc.Stdin, proc.Stdout, proc.Stderr
	cmd.ExtraFiles = append(cmd.ExtraFiles, syncAChild, syncBChild)
	cmd.ExtraFiles = append(cmd.ExtraFiles, proc.ExtraFiles...)
	cmd.Dir = "/"

	if err := cmd.Start(); err != nil {
		syncAChild.Close()
		syncBChild.Close()
		return nil, wrapError(Syscall, err, "starting intermediate process")
	}
	syncAChild.Close()
	syncBChild.Close()

	intermediatePid := cmd.Process.Pid
	defer func() {
		if retErr != nil {
			killAndReap(cmd)
		}
	}()

	bootstrap := &bootstrapConfig{
		ID:               id,
		Root:             root,
		Config:           c,
		Process:          newProcessConfig(proc),
		NotifySocketPath: notifyPath,
	}
	if err := writeBootstrapConfig(syncA, bootstrap); err != nil {
		return nil, err
	}

	var initPid int
	ierr := parseSync(syncA, func(sync *syncT) error {
		switch sync.Type {
		case idMappingRequest:
			if err := writeIDMappings(intermediatePid, c.UidMappings, c.GidMappings); err != nil {
				return err
			}
			return writeSync(syncA, idMappingDone)
		case initReady:
			initPid = sync.Pid
			return errStopSync
		default:
			return newErrorf(Protocol, "unexpected sync message %s from intermediate", sync.Type)
		}
	})
	if ierr != nil && ierr != errStopSync {
		return nil, ierr
	}
	if initPid == 0 {
		return nil, newError(Protocol, "intermediate exited without reporting init's pid")
	}

	// The intermediate's job is done: reap it (mirrors the teacher's
	// getChildPid/waitForChildExit pair) and re-point cmd.Process at the
	// real long-lived init process, which the rest of this function,
	// including the deferred killAndReap on failure, must track.
	if _, err := cmd.Process.Wait(); err != nil {
		return nil, wrapError(Syscall, err, "reaping intermediate process")
	}
	initProc, err := os.FindProcess(initPid)
	if err != nil {
		return nil, wrapErrorf(Syscall, err, "finding init process %d", initPid)
	}
	cmd.Process = initProc

	var cgroupPaths map[string]string
	herr := parseSync(syncB, func(sync *syncT) error {
		switch sync.Type {
		case procHooks:
			if err := runCheckpointHooks(c.Hooks, id, root, initPid, configs.Prestart, configs.CreateRuntime); err != nil {
				return err
			}
			return writeSync(syncB, procResume)

		case rootfsReady:
			if err := runCheckpointHooks(c.Hooks, id, root, initPid, configs.CreateContainer); err != nil {
				return err
			}
			return writeSync(syncB, rootfsReadyAck)

		case procReady:
			// A container's own init applies and creates the cgroup for the
			// first time; an exec (proc.init == false) joins the cgroup a
			// prior create already applied, so it must Reopen the existing
			// delegate rather than re-run Apply (which would re-issue
			// StartTransientUnit under systemd and fail with "unit exists").
			var (
				mgr cgroups.Manager
				err error
			)
			if proc.init {
				mgr, err = cgmanager.New(c.Cgroups)
				if err != nil {
					return err
				}
				if err := mgr.Apply(c.Cgroups.Resources); err != nil {
					return wrapError(Syscall, err, "applying cgroup configuration")
				}
			} else {
				mgr, err = cgmanager.Reopen(c.Cgroups)
				if err != nil {
					return err
				}
			}
			if err := mgr.AddTask(initPid); err != nil {
				return wrapErrorf(Syscall, err, "adding pid %d to cgroup", initPid)
			}
			cgroupPaths = map[string]string{"": mgr.Path("")}

			if proc.init && c.IntelRdt != nil {
				rdt := intelrdt.NewManager(id, c.IntelRdt)
				if err := rdt.Apply(initPid); err != nil {
					if !intelrdt.IsSupported() {
						logrus.Warnf("intel rdt: resctrl not supported on this host, skipping: %v", err)
					} else {
						return wrapError(Syscall, err, "applying intel rdt configuration")
					}
				}
			}
			return errStopSync

		default:
			return newErrorf(Protocol, "unexpected sync message %s from init", sync.Type)
		}
	})
	if herr != nil && herr != errStopSync {
		return nil, herr
	}

	st, err := procStartTime(initPid)
	if err != nil {
		return nil, err
	}

	return &createResult{
		Pid:              initPid,
		PidStartTime:     st,
		NotifySocketPath: notifyPath,
		CgroupPaths:      cgroupPaths,
	}, nil
}

// errStopSync is a sentinel parseSync's fn returns to end the loop after
// the one message it was waiting for arrives, without that being treated
// as a failure the way any other non-nil error is.
var errStopSync = fmt.Errorf("sync: expected message received, stopping loop")

func runCheckpointHooks(all configs.Hooks, id, root string, pid int, classes ...configs.HookName) error {
	s, err := loadState(root, id)
	if err != nil {
		return err
	}
	s.Pid = pid
	s.Status = StatusCreating
	for _, class := range classes {
		if err := hooks.Run(class, all, s); err != nil {
			return wrapErrorf(HookFailed, err, "running %s hooks", class)
		}
	}
	return nil
}

// newSyncSockpair returns a connected SOCK_STREAM pair as *os.File, the
// parent's end and the end meant to be handed to a child via
// cmd.ExtraFiles (spec §4.F's "sync pipes" are unix sockets so the same
// descriptor can carry both the length-prefixed JSON protocol and,
// later, ancillary fds for seccomp notify).
func newSyncSockpair(name string) (parent, child *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, wrapError(Syscall, err, "creating sync socketpair")
	}
	parent = os.NewFile(uintptr(fds[0]), name+"-r")
	child = os.NewFile(uintptr(fds[1]), name+"-w")
	return parent, child, nil
}

// writeIDMappings writes /proc/<pid>/{setgroups,uid_map,gid_map}. setgroups
// must be denied before gid_map can be written by an unprivileged mapper
// (spec §4.B "user namespace setup").
func writeIDMappings(pid int, uidMaps, gidMaps []configs.IDMap) error {
	if len(uidMaps) == 0 && len(gidMaps) == 0 {
		return nil
	}
	path := fmt.Sprintf("/proc/%d", pid)
	if len(gidMaps) > 0 {
		if err := os.WriteFile(filepath.Join(path, "setgroups"), []byte("deny"), 0644); err != nil && !os.IsNotExist(err) {
			return wrapError(Syscall, err, "writing setgroups")
		}
	}
	if err := writeIDMapFile(filepath.Join(path, "uid_map"), uidMaps); err != nil {
		return err
	}
	if err := writeIDMapFile(filepath.Join(path, "gid_map"), gidMaps); err != nil {
		return err
	}
	return nil
}

func writeIDMapFile(path string, maps []configs.IDMap) error {
	if len(maps) == 0 {
		return nil
	}
	var buf []byte
	for _, m := range maps {
		buf = append(buf, []byte(fmt.Sprintf("%d %d %d\n", m.ContainerID, m.HostID, m.Size))...)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return wrapErrorf(Syscall, err, "writing %s", path)
	}
	return nil
}

func procStartTime(pid int) (uint64, error) {
	st, err := system.Stat(pid)
	if err != nil {
		return 0, err
	}
	return st.StartTime, nil
}

// killAndReap is the teacher's ignoreTerminateErrors(p.terminate()) idiom,
// generalized: used when any step of the cascade fails partway through, to
// make sure no orphaned intermediate/init survives a failed create.
func killAndReap(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
}

func (c *createResult) String() string {
	return fmt.Sprintf("init pid=%d notify=%s", c.Pid, c.NotifySocketPath)
}

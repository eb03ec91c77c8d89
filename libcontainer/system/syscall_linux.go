// +build linux

// Package system is the syscall facade of spec §4.A: every kernel call the
// rest of libcontainer needs goes through the Linux interface here, so
// tests can substitute a fake and assert call order without root.
package system

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux is the real, default implementation of Syscaller. It is a thin
// pass-through to golang.org/x/sys/unix; the value of the facade is the
// interface boundary, not the implementation.
type Linux struct{}

// Syscaller is the full set of primitives spec §4.A names. Substituted by
// Fake in tests.
type Syscaller interface {
	PivotRoot(newRoot, putOld string) error
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
	Unshare(flags int) error
	Setns(fd int, nstype int) error
	Sethostname(name string) error
	Setdomainname(name string) error
	Chroot(path string) error
	Chdir(path string) error
	CloseRange(first, last uint, flags uint) error
	SetResUid(ruid, euid, suid int) error
	SetResGid(rgid, egid, sgid int) error
	Setgroups(gids []int) error
	Prctl(option int, arg2, arg3, arg4, arg5 uintptr) error
	Setrlimit(resource int, rlim unix.Rlimit) error
	Exec(argv0 string, argv []string, envv []string) error
	SetInterfaceUp(name string) error
}

var _ Syscaller = Linux{}

// Errno wraps a kernel error with the syscall name it came from, matching
// spec §7's Syscall(errno, name) error kind.
type Errno struct {
	Call string
	Err  error
}

func (e *Errno) Error() string { return fmt.Sprintf("%s: %v", e.Call, e.Err) }
func (e *Errno) Unwrap() error { return e.Err }

func wrap(call string, err error) error {
	if err == nil {
		return nil
	}
	return &Errno{Call: call, Err: err}
}

func (Linux) PivotRoot(newRoot, putOld string) error {
	return wrap("pivot_root", unix.PivotRoot(newRoot, putOld))
}

func (Linux) Mount(source, target, fstype string, flags uintptr, data string) error {
	return wrap("mount", unix.Mount(source, target, fstype, flags, data))
}

func (Linux) Unmount(target string, flags int) error {
	return wrap("umount2", unix.Unmount(target, flags))
}

func (Linux) Unshare(flags int) error {
	return wrap("unshare", unix.Unshare(flags))
}

func (Linux) Setns(fd int, nstype int) error {
	return wrap("setns", unix.Setns(fd, nstype))
}

func (Linux) Sethostname(name string) error {
	return wrap("sethostname", unix.Sethostname([]byte(name)))
}

func (Linux) Setdomainname(name string) error {
	return wrap("setdomainname", unix.Setdomainname([]byte(name)))
}

func (Linux) Chroot(path string) error {
	return wrap("chroot", unix.Chroot(path))
}

func (Linux) Chdir(path string) error {
	return wrap("chdir", unix.Chdir(path))
}

// CloseRange closes every fd in [first, last] (used before execve to drop
// everything above stderr except the console fd, per spec §4.H "start path").
func (Linux) CloseRange(first, last uint, flags uint) error {
	return wrap("close_range", unix.CloseRange(first, last, flags))
}

func (Linux) SetResUid(ruid, euid, suid int) error {
	return wrap("setresuid", unix.Setresuid(ruid, euid, suid))
}

func (Linux) SetResGid(rgid, egid, sgid int) error {
	return wrap("setresgid", unix.Setresgid(rgid, egid, sgid))
}

func (Linux) Setgroups(gids []int) error {
	return wrap("setgroups", unix.Setgroups(gids))
}

func (Linux) Prctl(option int, arg2, arg3, arg4, arg5 uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_PRCTL, uintptr(option), arg2, arg3, arg4, arg5, 0)
	if errno != 0 {
		return wrap("prctl", errno)
	}
	return nil
}

// Setrlimit applies one POSIX resource limit to the calling process, used
// by init before it drops the privileges it would need to raise a limit
// again later (spec §4.H init stage).
func (Linux) Setrlimit(resource int, rlim unix.Rlimit) error {
	return wrap("setrlimit", unix.Setrlimit(resource, &rlim))
}

// Exec replaces the calling process image, the final step of the init
// stage (spec §4.H "start path": close_range then execve).
func (Linux) Exec(argv0 string, argv []string, envv []string) error {
	return wrap("execve", unix.Exec(argv0, argv, envv))
}

// ifreqFlags mirrors struct ifreq from linux/if.h, narrowed to the
// ifr_flags member of its union (the only one SetInterfaceUp needs): 16
// bytes of interface name followed by a union sized to its largest member
// (struct sockaddr, 16 bytes), of which only the leading 2-byte flags
// field is read or written here.
type ifreqFlags struct {
	name  [unix.IFNAMSIZ]byte
	flags int16
	_     [14]byte
}

// ifUp is IFF_UP from linux/if.h.
const ifUp = 0x1

// SetInterfaceUp flips IFF_UP on the named interface in the calling task's
// network namespace. "lo" is the only interface this runtime ever brings
// up itself (spec's loopback strategy); since that's a single flag flip
// rather than address/route configuration, a raw SIOCGIFFLAGS/SIOCSIFFLAGS
// round-trip over an AF_INET socket does the job without a netlink library.
func (Linux) SetInterfaceUp(name string) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return wrap("socket", err)
	}
	defer unix.Close(fd)

	var ifr ifreqFlags
	copy(ifr.name[:], name)

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.SIOCGIFFLAGS), uintptr(unsafe.Pointer(&ifr))); errno != 0 {
		return wrap("ioctl(SIOCGIFFLAGS)", errno)
	}

	ifr.flags |= ifUp

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.SIOCSIFFLAGS), uintptr(unsafe.Pointer(&ifr))); errno != 0 {
		return wrap("ioctl(SIOCSIFFLAGS)", errno)
	}
	return nil
}

// ProcStat is the subset of /proc/<pid>/stat system.Stat needs: the
// container record's "pid is still ours" fingerprint (spec §3 invariant)
// is (pid, StartTime), not pid alone, because pids get recycled.
type ProcStat struct {
	StartTime uint64
}

// Stat reads field 22 (starttime) of /proc/<pid>/stat.
func Stat(pid int) (ProcStat, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return ProcStat{}, wrap("stat", err)
	}
	st, err := parseStat(data)
	if err != nil {
		return ProcStat{}, err
	}
	return st, nil
}

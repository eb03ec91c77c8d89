package system

import "golang.org/x/sys/unix"

// Fake is a Syscaller substitute for tests: it records every call in Calls
// and lets the test pre-seed Errs to fail specific calls, so mount ordering
// and the unshare/setns call sequence can be asserted without root. Unshare
// and Setns are recorded by name only, without their namespace flags.
type Fake struct {
	Calls []string
	Errs  map[string]error
}

func NewFake() *Fake {
	return &Fake{Errs: map[string]error{}}
}

func (f *Fake) record(name string) error {
	f.Calls = append(f.Calls, name)
	return f.Errs[name]
}

func (f *Fake) PivotRoot(newRoot, putOld string) error { return f.record("pivot_root") }
func (f *Fake) Mount(source, target, fstype string, flags uintptr, data string) error {
	return f.record("mount:" + target)
}
func (f *Fake) Unmount(target string, flags int) error { return f.record("umount2:" + target) }
func (f *Fake) Unshare(flags int) error                { return f.record("unshare") }
func (f *Fake) Setns(fd int, nstype int) error          { return f.record("setns") }
func (f *Fake) Sethostname(name string) error           { return f.record("sethostname") }
func (f *Fake) Setdomainname(name string) error         { return f.record("setdomainname") }
func (f *Fake) Chroot(path string) error                { return f.record("chroot") }
func (f *Fake) Chdir(path string) error                 { return f.record("chdir") }
func (f *Fake) CloseRange(first, last uint, flags uint) error {
	return f.record("close_range")
}
func (f *Fake) SetResUid(ruid, euid, suid int) error { return f.record("setresuid") }
func (f *Fake) SetResGid(rgid, egid, sgid int) error { return f.record("setresgid") }
func (f *Fake) Setgroups(gids []int) error           { return f.record("setgroups") }
func (f *Fake) Prctl(option int, a2, a3, a4, a5 uintptr) error {
	return f.record("prctl")
}
func (f *Fake) Setrlimit(resource int, rlim unix.Rlimit) error { return f.record("setrlimit") }
func (f *Fake) Exec(argv0 string, argv []string, envv []string) error {
	return f.record("execve:" + argv0)
}
func (f *Fake) SetInterfaceUp(name string) error { return f.record("ifup:" + name) }

var _ Syscaller = (*Fake)(nil)

// Package seccomp is the install-time boundary for a container's seccomp
// profile. Compiling an OCI LinuxSeccomp profile into BPF is explicitly out
// of scope for this runtime (the same boundary sysbox-runc drew around its
// vendored libseccomp-golang binding): this package only validates the
// profile's shape and forwards it to whatever Installer the caller wires
// in, the same "install this filter, don't build the compiler" split the
// teacher's seccomp dependency embodies.
package seccomp

import (
	"fmt"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// validActions and validArches are the OCI vocabulary this runtime
// recognizes; anything else is rejected before it ever reaches an
// Installer, the same early-validation spec §7 asks every component to do
// for malformed config.
var validActions = map[string]bool{
	"SCMP_ACT_KILL": true, "SCMP_ACT_KILL_PROCESS": true,
	"SCMP_ACT_KILL_THREAD": true, "SCMP_ACT_TRAP": true,
	"SCMP_ACT_ERRNO": true, "SCMP_ACT_TRACE": true,
	"SCMP_ACT_ALLOW": true, "SCMP_ACT_LOG": true,
}

var validArches = map[string]bool{
	"SCMP_ARCH_X86_64": true, "SCMP_ARCH_X86": true,
	"SCMP_ARCH_X32": true, "SCMP_ARCH_ARM": true,
	"SCMP_ARCH_AARCH64": true, "SCMP_ARCH_MIPS": true,
	"SCMP_ARCH_MIPS64": true, "SCMP_ARCH_PPC64LE": true,
	"SCMP_ARCH_S390X": true, "SCMP_ARCH_RISCV64": true,
}

// Installer loads a validated profile into the kernel for the calling
// (init) process. This tree has no implementation that compiles a
// profile, and the CLI wires none in: init calls Apply with a nil
// Installer, so NoopInstaller is what runs.
type Installer interface {
	Install(profile *configs.Seccomp) error
}

// Validate rejects a profile referencing an action or architecture this
// runtime doesn't recognize, before it's ever handed to an Installer.
func Validate(profile *configs.Seccomp) error {
	if profile == nil {
		return nil
	}
	if !validActions[profile.DefaultAction] {
		return fmt.Errorf("seccomp: unknown default action %q", profile.DefaultAction)
	}
	for _, a := range profile.Architectures {
		if !validArches[a] {
			return fmt.Errorf("seccomp: unknown architecture %q", a)
		}
	}
	for _, s := range profile.Syscalls {
		if !validActions[s.Action] {
			return fmt.Errorf("seccomp: syscall rule %v: unknown action %q", s.Names, s.Action)
		}
		if len(s.Names) == 0 {
			return fmt.Errorf("seccomp: syscall rule with no names")
		}
	}
	return nil
}

// NoopInstaller rejects every non-empty profile instead of silently
// running the container without the requested confinement. Apply uses it
// whenever it is given a nil Installer.
type NoopInstaller struct{}

func (NoopInstaller) Install(profile *configs.Seccomp) error {
	if profile == nil || len(profile.Syscalls) == 0 {
		return nil
	}
	return fmt.Errorf("seccomp: no installer configured for this runtime build")
}

// Apply validates profile and, if non-nil, installs it through inst.
func Apply(inst Installer, profile *configs.Seccomp) error {
	if err := Validate(profile); err != nil {
		return err
	}
	if profile == nil {
		return nil
	}
	if inst == nil {
		inst = NoopInstaller{}
	}
	return inst.Install(profile)
}

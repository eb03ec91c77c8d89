package seccomp

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestValidateNilProfileIsOK(t *testing.T) {
	if err := Validate(nil); err != nil {
		t.Errorf("Validate(nil) = %v, want nil", err)
	}
}

func TestValidateRejectsUnknownDefaultAction(t *testing.T) {
	p := &configs.Seccomp{DefaultAction: "SCMP_ACT_BOGUS"}
	if err := Validate(p); err == nil {
		t.Fatal("expected an error for an unrecognized default action")
	}
}

func TestValidateRejectsUnknownArch(t *testing.T) {
	p := &configs.Seccomp{DefaultAction: "SCMP_ACT_ALLOW", Architectures: []string{"SCMP_ARCH_BOGUS"}}
	if err := Validate(p); err == nil {
		t.Fatal("expected an error for an unrecognized architecture")
	}
}

func TestValidateRejectsBadSyscallRule(t *testing.T) {
	p := &configs.Seccomp{
		DefaultAction: "SCMP_ACT_ALLOW",
		Syscalls:      []configs.SeccompSyscall{{Names: nil, Action: "SCMP_ACT_ERRNO"}},
	}
	if err := Validate(p); err == nil {
		t.Fatal("expected an error for a syscall rule with no names")
	}
}

func TestValidateRejectsUnknownSyscallAction(t *testing.T) {
	p := &configs.Seccomp{
		DefaultAction: "SCMP_ACT_ALLOW",
		Syscalls:      []configs.SeccompSyscall{{Names: []string{"read"}, Action: "SCMP_ACT_BOGUS"}},
	}
	if err := Validate(p); err == nil {
		t.Fatal("expected an error for a syscall rule with an unrecognized action")
	}
}

func TestValidateAcceptsWellFormedProfile(t *testing.T) {
	p := &configs.Seccomp{
		DefaultAction: "SCMP_ACT_ERRNO",
		Architectures: []string{"SCMP_ARCH_X86_64"},
		Syscalls:      []configs.SeccompSyscall{{Names: []string{"read", "write"}, Action: "SCMP_ACT_ALLOW"}},
	}
	if err := Validate(p); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNoopInstallerAllowsNilOrEmpty(t *testing.T) {
	var inst NoopInstaller
	if err := inst.Install(nil); err != nil {
		t.Errorf("NoopInstaller.Install(nil) = %v, want nil", err)
	}
	if err := inst.Install(&configs.Seccomp{}); err != nil {
		t.Errorf("NoopInstaller.Install(empty profile) = %v, want nil", err)
	}
}

func TestNoopInstallerRejectsNonEmptyProfile(t *testing.T) {
	var inst NoopInstaller
	p := &configs.Seccomp{Syscalls: []configs.SeccompSyscall{{Names: []string{"read"}, Action: "SCMP_ACT_ALLOW"}}}
	if err := inst.Install(p); err == nil {
		t.Fatal("expected NoopInstaller to reject a profile naming syscall rules")
	}
}

func TestApplyNilProfileIsNoop(t *testing.T) {
	if err := Apply(nil, nil); err != nil {
		t.Errorf("Apply(nil, nil) = %v, want nil", err)
	}
}

func TestApplyValidatesBeforeInstalling(t *testing.T) {
	p := &configs.Seccomp{DefaultAction: "SCMP_ACT_BOGUS"}
	if err := Apply(nil, p); err == nil {
		t.Fatal("expected Apply to reject an invalid profile before ever installing it")
	}
}

type recordingInstaller struct{ installed *configs.Seccomp }

func (r *recordingInstaller) Install(profile *configs.Seccomp) error {
	r.installed = profile
	return nil
}

func TestApplyUsesGivenInstaller(t *testing.T) {
	p := &configs.Seccomp{DefaultAction: "SCMP_ACT_ALLOW"}
	rec := &recordingInstaller{}
	if err := Apply(rec, p); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.installed != p {
		t.Error("expected Apply to forward the profile to the given Installer")
	}
}

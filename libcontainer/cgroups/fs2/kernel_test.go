package fs2

import "testing"

func TestParseKernelReleaseStripsDistroSuffix(t *testing.T) {
	v, err := parseKernelRelease("5.15.0-91-generic")
	if err != nil {
		t.Fatalf("parseKernelRelease: %v", err)
	}
	if v.String() != "5.15.0" {
		t.Errorf("parseKernelRelease = %s, want 5.15.0", v)
	}
}

func TestParseKernelReleasePadsMissingComponents(t *testing.T) {
	v, err := parseKernelRelease("5.15")
	if err != nil {
		t.Fatalf("parseKernelRelease: %v", err)
	}
	if v.String() != "5.15.0" {
		t.Errorf("parseKernelRelease = %s, want 5.15.0", v)
	}
}

func TestParseKernelReleaseRejectsNonNumericPrefix(t *testing.T) {
	if _, err := parseKernelRelease("generic"); err == nil {
		t.Fatal("expected an error for a release string with no leading version")
	}
}

func TestParseKernelReleaseOldKernelIsLessThanMinimum(t *testing.T) {
	v, err := parseKernelRelease("4.9.0")
	if err != nil {
		t.Fatalf("parseKernelRelease: %v", err)
	}
	if !v.LessThan(minDeviceProgramKernel) {
		t.Error("expected 4.9.0 to be less than the 4.15.0 minimum")
	}
}

func TestParseKernelReleaseNewKernelMeetsMinimum(t *testing.T) {
	v, err := parseKernelRelease("5.4.0")
	if err != nil {
		t.Fatalf("parseKernelRelease: %v", err)
	}
	if v.LessThan(minDeviceProgramKernel) {
		t.Error("expected 5.4.0 to satisfy the 4.15.0 minimum")
	}
}

func TestCheckDeviceProgramKernelSupportAgainstRunningKernel(t *testing.T) {
	// Exercises the real unix.Uname path; any kernel capable of running
	// this test suite at all postdates the 4.15 BPF_CGROUP_DEVICE cutoff.
	if err := checkDeviceProgramKernelSupport(); err != nil {
		t.Errorf("checkDeviceProgramKernelSupport on the running kernel: %v", err)
	}
}

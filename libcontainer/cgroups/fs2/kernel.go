package fs2

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Masterminds/semver"
	"golang.org/x/sys/unix"
)

// minDeviceProgramKernel is the earliest kernel BPF_CGROUP_DEVICE support
// landed in (Linux 4.15); attaching an eBPF device filter on anything
// older fails in a way that's easy to mistake for a permissions problem,
// so this runtime checks the running kernel up front and reports it as a
// cgroup-unsupported condition instead (spec §4.C "v2 ... device control
// via eBPF").
var minDeviceProgramKernel = semver.MustParse("4.15.0")

// checkDeviceProgramKernelSupport reports a CgroupUnsupported-shaped error
// when the running kernel predates eBPF cgroup device-filter support.
func checkDeviceProgramKernelSupport() error {
	v, err := runningKernelVersion()
	if err != nil {
		// Uname failing at all is unusual enough that we'd rather let the
		// eBPF attach attempt itself produce the real error.
		return nil
	}
	if v.LessThan(minDeviceProgramKernel) {
		return fmt.Errorf("kernel %s predates BPF_CGROUP_DEVICE support (requires >= %s)", v, minDeviceProgramKernel)
	}
	return nil
}

func runningKernelVersion() (*semver.Version, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil, err
	}
	release := uts.Release[:bytes.IndexByte(uts.Release[:], 0)]
	return parseKernelRelease(string(release))
}

// parseKernelRelease extracts the leading dotted-number version from a
// uname release string, discarding any trailing distro-specific suffix
// (e.g. "5.15.0-91-generic" -> "5.15.0") that semver.MustParse cannot
// accept as-is.
func parseKernelRelease(release string) (*semver.Version, error) {
	end := 0
	dots := 0
loop:
	for end < len(release) {
		switch c := release[end]; {
		case c >= '0' && c <= '9':
			end++
		case c == '.' && dots < 2:
			dots++
			end++
		default:
			break loop
		}
	}
	if end == 0 {
		return nil, fmt.Errorf("parsing kernel release %q", release)
	}
	numeric := release[:end]
	for strings.Count(numeric, ".") < 2 {
		numeric += ".0"
	}
	return semver.NewVersion(numeric)
}

// Package cgroups is component C of the runtime: one Manager interface,
// three backends (v1 filesystem, v2 unified filesystem, systemd-delegated),
// chosen at construction time from the --systemd-cgroup flag and a statfs
// of /sys/fs/cgroup (IsCgroup2UnifiedMode); /proc/self/cgroup is not read
// for the choice (spec §9 "Cgroup manager as tagged variant").
package cgroups

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// FreezerState is the pause/resume state a Manager's Freeze applies.
type FreezerState string

const (
	Thawed  FreezerState = "THAWED"
	Frozen  FreezerState = "FROZEN"
	Freezing FreezerState = "FREEZING"
)

// Manager is the trait surface spec §4.C lists, implemented by fs
// (v1), fs2 (v2) and systemd.
type Manager interface {
	// AddTask places pid into the managed cgroup.
	AddTask(pid int) error
	// AddThread places tid into the managed cgroup (v2: cgroup.threads;
	// v1: every subsystem's tasks file).
	AddThread(tid int) error
	// Apply creates the cgroup (if needed) and applies resources.
	Apply(resources *configs.Resources) error
	// Stats collects the statistics spec §4.C names.
	Stats() (*Stats, error)
	// Freeze transitions the managed cgroup to state.
	Freeze(state FreezerState) error
	// Destroy removes the managed cgroup directory (one per controller on
	// v1; the systemd backend stops its unit first). It does not descend
	// into child cgroups and does not check for remaining tasks itself: the
	// kernel's rmdir fails while either is present, and that error is
	// returned.
	Destroy() error
	// Path returns the path of the given controller, for observability
	// (spec's `any(subsystem) -> path`).
	Path(subsystem string) string
	// Type reports which backend this manager is.
	Type() ManagerType
}

// ManagerType tags which backend a Manager value is.
type ManagerType int

const (
	TypeV1 ManagerType = iota
	TypeV1Systemd
	TypeV2
	TypeV2Systemd
)

// Stats is the full statistics surface spec §4.C lists.
type Stats struct {
	CPU     CPUStats     `json:"cpu"`
	Memory  MemoryStats  `json:"memory"`
	Pids    PidsStats    `json:"pids"`
	Blkio   BlkioStats   `json:"blkio"`
	Hugetlb map[string]HugetlbStats `json:"hugetlb"`
	// PSI holds pressure-stall metrics where available (cgroup v2 only).
	PSI map[string]PSIStats `json:"psi,omitempty"`
}

type CPUStats struct {
	UsageNanos       uint64 `json:"usage_nanos"`
	ThrottledPeriods uint64 `json:"nr_throttled"`
	ThrottledNanos   uint64 `json:"throttled_nanos"`
}

type MemoryStats struct {
	Usage   uint64 `json:"usage"`
	Max     uint64 `json:"max"`
	Cache   uint64 `json:"cache"`
	Swap    uint64 `json:"swap"`
	Kernel  uint64 `json:"kernel"`
	Failcnt uint64 `json:"failcnt"`
}

type PidsStats struct {
	Current uint64 `json:"current"`
	Limit   uint64 `json:"limit"`
}

type BlkioStats struct {
	Devices []BlkioDeviceStats `json:"devices"`
}

type BlkioDeviceStats struct {
	Major, Minor int64
	ReadBytes, WriteBytes uint64
	ReadIOs, WriteIOs     uint64
}

type HugetlbStats struct {
	Usage, Max, Failcnt uint64
}

type PSIStats struct {
	Some PSILine `json:"some"`
	Full PSILine `json:"full"`
}

type PSILine struct {
	Avg10, Avg60, Avg300 float64
	Total                uint64
}

// ParseCgroupFile parses /proc/<pid>/cgroup into controller -> path.
// v2 entries have an empty controller name (the key is "").
func ParseCgroupFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		for _, ctrl := range strings.Split(parts[1], ",") {
			out[ctrl] = parts[2]
		}
	}
	return out, s.Err()
}

// WriteCgroupProc writes pid to <dir>/cgroup.procs.
func WriteCgroupProc(dir string, pid int) error {
	return os.WriteFile(dir+"/cgroup.procs", []byte(strconv.Itoa(pid)), 0644)
}

// ReadCgroupProcs reads every pid listed in <dir>/cgroup.procs, used by
// `kill --all` and `ps` to enumerate every task in a container's cgroup
// rather than just its recorded init pid.
func ReadCgroupProcs(dir string) ([]int, error) {
	f, err := os.Open(dir + "/cgroup.procs")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var pids []int
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, s.Err()
}

// WriteFile writes a single cgroup control-file value, the building block
// every controller's Set/Apply uses.
func WriteFile(dir, file, data string) error {
	if err := os.WriteFile(dir+"/"+file, []byte(data), 0644); err != nil {
		return fmt.Errorf("writing %s/%s: %w", dir, file, err)
	}
	return nil
}

func ReadFile(dir, file string) (string, error) {
	data, err := os.ReadFile(dir + "/" + file)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ParseUint parses a cgroup numeric value following kernel conventions:
// "max" means unset (returned as math.MaxUint64), a bare negative number
// is rejected (spec §4.C "v1 ... negative values reject").
func ParseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "max" {
		return 1<<64 - 1, nil
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("cgroups: negative value %q is not a valid unsigned value", s)
	}
	return strconv.ParseUint(s, 10, 64)
}

// FormatUint formats v back using kernel conventions: MaxUint64 becomes
// "max".
func FormatUint(v uint64) string {
	if v == 1<<64-1 {
		return "max"
	}
	return strconv.FormatUint(v, 10)
}

// IsCgroup2UnifiedMode reports whether /sys/fs/cgroup is a cgroup2 mount
// (as opposed to a v1 tmpfs with per-controller subdirectories, or a v1+v2
// hybrid).
func IsCgroup2UnifiedMode() bool {
	var st unixStatfs
	if err := statfs("/sys/fs/cgroup", &st); err != nil {
		return false
	}
	return st.Type == cgroup2SuperMagic
}

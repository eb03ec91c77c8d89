package fs2

import (
	"fmt"
	"time"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func applyCPU(path string, r *configs.Resources) error {
	if r.CpuQuota != 0 || r.CpuPeriod != 0 {
		quota := "max"
		if r.CpuQuota > 0 {
			quota = fmt.Sprintf("%d", r.CpuQuota)
		}
		period := r.CpuPeriod
		if period == 0 {
			period = 100000
		}
		if err := cgroups.WriteFile(path, "cpu.max", fmt.Sprintf("%s %d", quota, period)); err != nil {
			return err
		}
	}
	if r.CpuShares != 0 {
		// v2 uses cpu.weight on a 1-10000 scale; convert from the v1
		// 2-262144 cpu.shares scale with the same formula runc uses.
		weight := (1 + ((r.CpuShares-2)*9999)/262142)
		if err := cgroups.WriteFile(path, "cpu.weight", fmt.Sprintf("%d", weight)); err != nil {
			return err
		}
	}
	return nil
}

func applyMemory(path string, r *configs.Resources) error {
	if r.Memory != 0 {
		val := "max"
		if r.Memory > 0 {
			val = fmt.Sprintf("%d", r.Memory)
		}
		if err := cgroups.WriteFile(path, "memory.max", val); err != nil {
			return err
		}
	}
	if r.MemoryReservation != 0 {
		if err := cgroups.WriteFile(path, "memory.low", fmt.Sprintf("%d", r.MemoryReservation)); err != nil {
			return err
		}
	}
	if r.MemorySwap != 0 {
		val := "max"
		if r.MemorySwap > 0 {
			val = fmt.Sprintf("%d", r.MemorySwap)
		}
		if err := cgroups.WriteFile(path, "memory.swap.max", val); err != nil {
			return err
		}
	}
	return nil
}

func applyPids(path string, r *configs.Resources) error {
	if r.PidsLimit == 0 {
		return nil
	}
	val := "max"
	if r.PidsLimit > 0 {
		val = fmt.Sprintf("%d", r.PidsLimit)
	}
	return cgroups.WriteFile(path, "pids.max", val)
}

func applyCpuset(path string, r *configs.Resources) error {
	if r.CpusetCpus != "" {
		if err := cgroups.WriteFile(path, "cpuset.cpus", r.CpusetCpus); err != nil {
			return err
		}
	}
	if r.CpusetMems != "" {
		if err := cgroups.WriteFile(path, "cpuset.mems", r.CpusetMems); err != nil {
			return err
		}
	}
	return nil
}

func applyIO(path string, r *configs.Resources) error {
	if r.BlkioWeight != 0 {
		// v2 io.weight is 1-10000; v1 blkio.weight is 10-1000. Scale linearly.
		weight := uint64(r.BlkioWeight) * 10
		if err := cgroups.WriteFile(path, "io.weight", fmt.Sprintf("default %d", weight)); err != nil {
			return err
		}
	}
	for _, d := range r.BlkioThrottle {
		entry := fmt.Sprintf("%d:%d rbps=%d", d.Major, d.Minor, d.Rate)
		if err := cgroups.WriteFile(path, "io.max", entry); err != nil {
			return err
		}
	}
	return nil
}

func applyHugetlb(path string, r *configs.Resources) error {
	for _, l := range r.HugetlbLimit {
		file := "hugetlb." + l.Pagesize + ".max"
		if err := cgroups.WriteFile(path, file, cgroups.FormatUint(l.Limit)); err != nil {
			return err
		}
	}
	return nil
}

// pollFrozen polls cgroup.events for "frozen 1", same backoff waveform as
// the v1 freezer (spec Open Question (a)).
func pollFrozen(path string) error {
	delay := time.Millisecond
	for attempt := 0; attempt < 10; attempt++ {
		data, err := cgroups.ReadFile(path, "cgroup.events")
		if err == nil && containsFrozen1(data) {
			return nil
		}
		time.Sleep(delay)
		delay *= 2
		if delay > 100*time.Millisecond {
			delay = 100 * time.Millisecond
		}
	}
	return fmt.Errorf("freeze: did not settle after 10 attempts")
}

func containsFrozen1(events string) bool {
	for _, line := range splitLines(events) {
		if line == "frozen 1" {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

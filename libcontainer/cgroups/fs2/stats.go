package fs2

import (
	"strconv"
	"strings"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
)

// Stats reads the flat key-value control files v2 uses for statistics
// (cpu.stat, memory.current/memory.stat, pids.current, io.stat, and the
// pressure-stall files where the kernel exposes them) into the same
// cgroups.Stats shape the v1 backend populates, so callers don't need to
// know which hierarchy is in use (spec §4.C "statistics ... collected the
// same way regardless of backend").
func (m *Manager) Stats() (*cgroups.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &cgroups.Stats{Hugetlb: map[string]cgroups.HugetlbStats{}}

	if err := m.statCPU(stats); err != nil {
		return nil, err
	}
	if err := m.statMemory(stats); err != nil {
		return nil, err
	}
	if err := m.statPids(stats); err != nil {
		return nil, err
	}
	if err := m.statIO(stats); err != nil {
		return nil, err
	}
	m.statHugetlb(stats)
	m.statPSI(stats)

	return stats, nil
}

func keyedValues(data string) map[string]uint64 {
	out := map[string]uint64{}
	for _, line := range splitLines(data) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[fields[0]] = v
	}
	return out
}

func (m *Manager) statCPU(stats *cgroups.Stats) error {
	data, err := cgroups.ReadFile(m.path, "cpu.stat")
	if err != nil {
		// cpu controller not delegated to this cgroup; leave zeroed.
		return nil
	}
	kv := keyedValues(data)
	stats.CPU.UsageNanos = kv["usage_usec"] * 1000
	stats.CPU.ThrottledPeriods = kv["nr_throttled"]
	stats.CPU.ThrottledNanos = kv["throttled_usec"] * 1000
	return nil
}

func (m *Manager) statMemory(stats *cgroups.Stats) error {
	if v, err := cgroups.ReadFile(m.path, "memory.current"); err == nil {
		stats.Memory.Usage, _ = cgroups.ParseUint(v)
	}
	if v, err := cgroups.ReadFile(m.path, "memory.max"); err == nil {
		stats.Memory.Max, _ = cgroups.ParseUint(v)
	}
	if v, err := cgroups.ReadFile(m.path, "memory.swap.current"); err == nil {
		stats.Memory.Swap, _ = cgroups.ParseUint(v)
	}
	if data, err := cgroups.ReadFile(m.path, "memory.stat"); err == nil {
		kv := keyedValues(data)
		stats.Memory.Cache = kv["file"]
		stats.Memory.Kernel = kv["kernel_stack"] + kv["slab"]
	}
	if v, err := cgroups.ReadFile(m.path, "memory.events"); err == nil {
		kv := keyedValues(v)
		stats.Memory.Failcnt = kv["oom"] + kv["max"]
	}
	return nil
}

func (m *Manager) statPids(stats *cgroups.Stats) error {
	if v, err := cgroups.ReadFile(m.path, "pids.current"); err == nil {
		stats.Pids.Current, _ = cgroups.ParseUint(v)
	}
	if v, err := cgroups.ReadFile(m.path, "pids.max"); err == nil {
		stats.Pids.Limit, _ = cgroups.ParseUint(v)
	}
	return nil
}

func (m *Manager) statIO(stats *cgroups.Stats) error {
	data, err := cgroups.ReadFile(m.path, "io.stat")
	if err != nil {
		return nil
	}
	for _, line := range splitLines(data) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		major, minor, ok := splitDeviceID(fields[0])
		if !ok {
			continue
		}
		dev := cgroups.BlkioDeviceStats{Major: major, Minor: minor}
		kv := map[string]uint64{}
		for _, f := range fields[1:] {
			kvPair := strings.SplitN(f, "=", 2)
			if len(kvPair) != 2 {
				continue
			}
			v, err := strconv.ParseUint(kvPair[1], 10, 64)
			if err != nil {
				continue
			}
			kv[kvPair[0]] = v
		}
		dev.ReadBytes = kv["rbytes"]
		dev.WriteBytes = kv["wbytes"]
		dev.ReadIOs = kv["rios"]
		dev.WriteIOs = kv["wios"]
		stats.Blkio.Devices = append(stats.Blkio.Devices, dev)
	}
	return nil
}

func splitDeviceID(s string) (major, minor int64, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	maj, err1 := strconv.ParseInt(parts[0], 10, 64)
	min, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return maj, min, true
}

func (m *Manager) statHugetlb(stats *cgroups.Stats) {
	for _, pagesize := range []string{"2MB", "1GB"} {
		prefix := "hugetlb." + pagesize
		usage, err := cgroups.ReadFile(m.path, prefix+".current")
		if err != nil {
			continue
		}
		var hs cgroups.HugetlbStats
		hs.Usage, _ = cgroups.ParseUint(usage)
		if max, err := cgroups.ReadFile(m.path, prefix+".max"); err == nil {
			hs.Max, _ = cgroups.ParseUint(max)
		}
		if events, err := cgroups.ReadFile(m.path, prefix+".events"); err == nil {
			hs.Failcnt = keyedValues(events)["max"]
		}
		stats.Hugetlb[pagesize] = hs
	}
}

// statPSI reads the pressure-stall files spec §4.C names for v2
// ("cpu.pressure, memory.pressure, io.pressure where the kernel exposes
// PSI"), tolerating their absence on kernels built without CONFIG_PSI.
func (m *Manager) statPSI(stats *cgroups.Stats) {
	psi := map[string]cgroups.PSIStats{}
	for _, file := range []string{"cpu.pressure", "memory.pressure", "io.pressure"} {
		data, err := cgroups.ReadFile(m.path, file)
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(file, ".pressure")
		psi[name] = parsePSI(data)
	}
	if len(psi) > 0 {
		stats.PSI = psi
	}
}

// parsePSI parses lines like:
//
//	some avg10=0.00 avg60=0.00 avg300=0.00 total=0
//	full avg10=0.00 avg60=0.00 avg300=0.00 total=0
func parsePSI(data string) cgroups.PSIStats {
	var out cgroups.PSIStats
	for _, line := range splitLines(data) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		var target *cgroups.PSILine
		switch fields[0] {
		case "some":
			target = &out.Some
		case "full":
			target = &out.Full
		default:
			continue
		}
		for _, f := range fields[1:] {
			kv := strings.SplitN(f, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch kv[0] {
			case "avg10":
				target.Avg10, _ = strconv.ParseFloat(kv[1], 64)
			case "avg60":
				target.Avg60, _ = strconv.ParseFloat(kv[1], 64)
			case "avg300":
				target.Avg300, _ = strconv.ParseFloat(kv[1], 64)
			case "total":
				target.Total, _ = strconv.ParseUint(kv[1], 10, 64)
			}
		}
	}
	return out
}

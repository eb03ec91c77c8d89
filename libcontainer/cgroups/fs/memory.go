package fs

import (
	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

type MemoryGroup struct{}

func (s *MemoryGroup) Name() string { return "memory" }

func (s *MemoryGroup) Apply(path string, r *configs.Resources) error {
	if r.MemorySwap != 0 {
		if err := cgroups.WriteFile(path, "memory.memsw.limit_in_bytes", itoa(r.MemorySwap)); err != nil {
			return err
		}
	}
	if r.Memory != 0 {
		if err := cgroups.WriteFile(path, "memory.limit_in_bytes", itoa(r.Memory)); err != nil {
			return err
		}
	}
	if r.MemoryReservation != 0 {
		if err := cgroups.WriteFile(path, "memory.soft_limit_in_bytes", itoa(r.MemoryReservation)); err != nil {
			return err
		}
	}
	if r.KernelMemory != 0 {
		if err := cgroups.WriteFile(path, "memory.kmem.limit_in_bytes", itoa(r.KernelMemory)); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryGroup) GetStats(path string, stats *cgroups.Stats) error {
	usage, err := cgroups.ReadFile(path, "memory.usage_in_bytes")
	if err == nil {
		if v, err := cgroups.ParseUint(usage); err == nil {
			stats.Memory.Usage = v
		}
	}
	limit, err := cgroups.ReadFile(path, "memory.limit_in_bytes")
	if err == nil {
		if v, err := cgroups.ParseUint(limit); err == nil {
			stats.Memory.Max = v
		}
	}
	failcnt, err := cgroups.ReadFile(path, "memory.failcnt")
	if err == nil {
		if v, err := cgroups.ParseUint(failcnt); err == nil {
			stats.Memory.Failcnt = v
		}
	}
	if swap, err := cgroups.ReadFile(path, "memory.memsw.usage_in_bytes"); err == nil {
		if v, err := cgroups.ParseUint(swap); err == nil {
			stats.Memory.Swap = v
		}
	}
	return nil
}

func itoa(v int64) string {
	if v < 0 {
		return "-1"
	}
	return cgroups.FormatUint(uint64(v))
}

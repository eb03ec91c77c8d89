package fs

import (
	"strconv"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

type CpuGroup struct{}

func (s *CpuGroup) Name() string { return "cpu" }

func (s *CpuGroup) Apply(path string, r *configs.Resources) error {
	if r.CpuShares != 0 {
		if err := cgroups.WriteFile(path, "cpu.shares", strconv.FormatUint(r.CpuShares, 10)); err != nil {
			return err
		}
	}
	if r.CpuQuota != 0 {
		if err := cgroups.WriteFile(path, "cpu.cfs_quota_us", strconv.FormatInt(r.CpuQuota, 10)); err != nil {
			return err
		}
	}
	if r.CpuPeriod != 0 {
		if err := cgroups.WriteFile(path, "cpu.cfs_period_us", strconv.FormatUint(r.CpuPeriod, 10)); err != nil {
			return err
		}
	}
	if r.CpuRtRuntime != 0 {
		if err := cgroups.WriteFile(path, "cpu.rt_runtime_us", strconv.FormatInt(r.CpuRtRuntime, 10)); err != nil {
			return err
		}
	}
	if r.CpuRtPeriod != 0 {
		if err := cgroups.WriteFile(path, "cpu.rt_period_us", strconv.FormatUint(r.CpuRtPeriod, 10)); err != nil {
			return err
		}
	}
	return nil
}

func (s *CpuGroup) GetStats(path string, stats *cgroups.Stats) error {
	usage, err := cgroups.ReadFile(path, "cpuacct.usage")
	if err == nil {
		if v, err := cgroups.ParseUint(usage); err == nil {
			stats.CPU.UsageNanos = v
		}
	}
	return nil
}

package fs

import (
	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

type CpusetGroup struct{}

func (s *CpusetGroup) Name() string { return "cpuset" }

func (s *CpusetGroup) Apply(path string, r *configs.Resources) error {
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

func (s *CpusetGroup) GetStats(path string, stats *cgroups.Stats) error { return nil }

package fs

import (
	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

type PidsGroup struct{}

func (s *PidsGroup) Name() string { return "pids" }

func (s *PidsGroup) Apply(path string, r *configs.Resources) error {
	if r.PidsLimit == 0 {
		return nil
	}
	val := "max"
	if r.PidsLimit > 0 {
		val = cgroups.FormatUint(uint64(r.PidsLimit))
	}
	return cgroups.WriteFile(path, "pids.max", val)
}

func (s *PidsGroup) GetStats(path string, stats *cgroups.Stats) error {
	if cur, err := cgroups.ReadFile(path, "pids.current"); err == nil {
		if v, err := cgroups.ParseUint(cur); err == nil {
			stats.Pids.Current = v
		}
	}
	if max, err := cgroups.ReadFile(path, "pids.max"); err == nil {
		if v, err := cgroups.ParseUint(max); err == nil {
			stats.Pids.Limit = v
		}
	}
	return nil
}

package fs

import (
	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

type HugetlbGroup struct{}

func (s *HugetlbGroup) Name() string { return "hugetlb" }

func (s *HugetlbGroup) Apply(path string, r *configs.Resources) error {
	for _, l := range r.HugetlbLimit {
		file := "hugetlb." + l.Pagesize + ".limit_in_bytes"
		if err := cgroups.WriteFile(path, file, cgroups.FormatUint(l.Limit)); err != nil {
			return err
		}
	}
	return nil
}

func (s *HugetlbGroup) GetStats(path string, stats *cgroups.Stats) error {
	if stats.Hugetlb == nil {
		stats.Hugetlb = map[string]cgroups.HugetlbStats{}
	}
	return nil
}

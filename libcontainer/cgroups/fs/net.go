package fs

import (
	"fmt"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

type NetClsGroup struct{}

func (s *NetClsGroup) Name() string { return "net_cls" }

func (s *NetClsGroup) Apply(path string, r *configs.Resources) error {
	if r.NetClsClassid != 0 {
		return cgroups.WriteFile(path, "net_cls.classid", fmt.Sprintf("%d", r.NetClsClassid))
	}
	return nil
}

func (s *NetClsGroup) GetStats(path string, stats *cgroups.Stats) error { return nil }

type NetPrioGroup struct{}

func (s *NetPrioGroup) Name() string { return "net_prio" }

func (s *NetPrioGroup) Apply(path string, r *configs.Resources) error {
	for _, m := range r.NetPrioIfpriomap {
		entry := fmt.Sprintf("%s %d", m.Interface, m.Priority)
		if err := cgroups.WriteFile(path, "net_prio.ifpriomap", entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *NetPrioGroup) GetStats(path string, stats *cgroups.Stats) error { return nil }

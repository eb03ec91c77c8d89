package fs2

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestNeededControllersEmpty(t *testing.T) {
	if got := neededControllers(&configs.Resources{}); len(got) != 0 {
		t.Errorf("neededControllers(empty) = %v, want none", got)
	}
}

func TestNeededControllersCoversEachResource(t *testing.T) {
	cases := []struct {
		name string
		r    *configs.Resources
		want string
	}{
		{"cpu shares", &configs.Resources{CpuShares: 512}, "cpu"},
		{"memory", &configs.Resources{Memory: 1024}, "memory"},
		{"pids", &configs.Resources{PidsLimit: 10}, "pids"},
		{"cpuset", &configs.Resources{CpusetCpus: "0"}, "cpuset"},
		{"io weight", &configs.Resources{BlkioWeight: 100}, "io"},
		{"hugetlb", &configs.Resources{HugetlbLimit: []configs.HugepageLimit{{Pagesize: "2MB", Limit: 1}}}, "hugetlb"},
	}
	for _, c := range cases {
		got := neededControllers(c.r)
		found := false
		for _, g := range got {
			if g == c.want {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: neededControllers = %v, want to include %q", c.name, got, c.want)
		}
	}
}

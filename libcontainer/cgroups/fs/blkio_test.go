package fs

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestBlkioGroupApply(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"blkio.weight", "blkio.weight_device", "blkio.throttle.read_bps_device"} {
		if err := cgroups.WriteFile(dir, f, ""); err != nil {
			t.Fatalf("seeding %s: %v", f, err)
		}
	}

	g := &BlkioGroup{}
	r := &configs.Resources{
		BlkioWeight:       500,
		BlkioWeightDevice: []configs.BlkioWeightDevice{{Major: 8, Minor: 0, Weight: 400}},
		BlkioThrottle:     []configs.BlkioThrottleDevice{{Major: 8, Minor: 0, Rate: 1048576}},
	}
	if err := g.Apply(dir, r); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got, _ := cgroups.ReadFile(dir, "blkio.weight"); got != "500" {
		t.Errorf("blkio.weight = %q, want 500", got)
	}
	if got, _ := cgroups.ReadFile(dir, "blkio.weight_device"); got != "8:0 400" {
		t.Errorf("blkio.weight_device = %q, want 8:0 400", got)
	}
	if got, _ := cgroups.ReadFile(dir, "blkio.throttle.read_bps_device"); got != "8:0 1048576" {
		t.Errorf("blkio.throttle.read_bps_device = %q, want 8:0 1048576", got)
	}
}

func TestBlkioGroupApplySkipsZeroWeight(t *testing.T) {
	dir := t.TempDir()
	if err := cgroups.WriteFile(dir, "blkio.weight", "untouched"); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	g := &BlkioGroup{}
	if err := g.Apply(dir, &configs.Resources{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, _ := cgroups.ReadFile(dir, "blkio.weight"); got != "untouched" {
		t.Errorf("expected blkio.weight to be left untouched when BlkioWeight is zero, got %q", got)
	}
}

func TestBlkioGroupName(t *testing.T) {
	if (&BlkioGroup{}).Name() != "blkio" {
		t.Error("expected Name() to be blkio")
	}
}

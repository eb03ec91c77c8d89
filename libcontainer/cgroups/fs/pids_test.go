package fs

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestPidsGroupApplyLimit(t *testing.T) {
	dir := t.TempDir()
	if err := cgroups.WriteFile(dir, "pids.max", ""); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	g := &PidsGroup{}
	if err := g.Apply(dir, &configs.Resources{PidsLimit: 100}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, _ := cgroups.ReadFile(dir, "pids.max"); got != "100" {
		t.Errorf("pids.max = %q, want 100", got)
	}
}

func TestPidsGroupApplyNegativeMeansMax(t *testing.T) {
	dir := t.TempDir()
	if err := cgroups.WriteFile(dir, "pids.max", ""); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	g := &PidsGroup{}
	if err := g.Apply(dir, &configs.Resources{PidsLimit: -1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, _ := cgroups.ReadFile(dir, "pids.max"); got != "max" {
		t.Errorf("pids.max = %q, want max", got)
	}
}

func TestPidsGroupApplyZeroIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := cgroups.WriteFile(dir, "pids.max", "untouched"); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	g := &PidsGroup{}
	if err := g.Apply(dir, &configs.Resources{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, _ := cgroups.ReadFile(dir, "pids.max"); got != "untouched" {
		t.Errorf("expected pids.max untouched when PidsLimit is zero, got %q", got)
	}
}

func TestPidsGroupGetStats(t *testing.T) {
	dir := t.TempDir()
	if err := cgroups.WriteFile(dir, "pids.current", "4"); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := cgroups.WriteFile(dir, "pids.max", "50"); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	g := &PidsGroup{}
	stats := &cgroups.Stats{}
	if err := g.GetStats(dir, stats); err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Pids.Current != 4 || stats.Pids.Limit != 50 {
		t.Errorf("Pids = %+v, want Current=4 Limit=50", stats.Pids)
	}
}

package fs

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestMemoryGroupApply(t *testing.T) {
	dir := t.TempDir()
	g := &MemoryGroup{}
	r := &configs.Resources{Memory: 1 << 20, MemoryReservation: 1 << 19}
	if err := g.Apply(dir, r); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "memory.limit_in_bytes")
	if got != "1048576" {
		t.Errorf("memory.limit_in_bytes = %q, want 1048576", got)
	}
	got, _ = cgroups.ReadFile(dir, "memory.soft_limit_in_bytes")
	if got != "524288" {
		t.Errorf("memory.soft_limit_in_bytes = %q, want 524288", got)
	}
	if _, err := cgroups.ReadFile(dir, "memory.memsw.limit_in_bytes"); err == nil {
		t.Error("expected memsw limit not to be written when MemorySwap is zero")
	}
}

func TestMemoryGroupApplyUnlimitedSwap(t *testing.T) {
	dir := t.TempDir()
	g := &MemoryGroup{}
	r := &configs.Resources{MemorySwap: -1}
	if err := g.Apply(dir, r); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "memory.memsw.limit_in_bytes")
	if got != "-1" {
		t.Errorf("memory.memsw.limit_in_bytes = %q, want -1 for unlimited swap", got)
	}
}

func TestMemoryGroupGetStats(t *testing.T) {
	dir := t.TempDir()
	cgroups.WriteFile(dir, "memory.usage_in_bytes", "2048")
	cgroups.WriteFile(dir, "memory.limit_in_bytes", "4096")
	cgroups.WriteFile(dir, "memory.failcnt", "3")

	g := &MemoryGroup{}
	var stats cgroups.Stats
	if err := g.GetStats(dir, &stats); err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Memory.Usage != 2048 {
		t.Errorf("Usage = %d, want 2048", stats.Memory.Usage)
	}
	if stats.Memory.Max != 4096 {
		t.Errorf("Max = %d, want 4096", stats.Memory.Max)
	}
	if stats.Memory.Failcnt != 3 {
		t.Errorf("Failcnt = %d, want 3", stats.Memory.Failcnt)
	}
}

func TestItoa(t *testing.T) {
	if got := itoa(-1); got != "-1" {
		t.Errorf("itoa(-1) = %q, want -1", got)
	}
	if got := itoa(100); got != "100" {
		t.Errorf("itoa(100) = %q, want 100", got)
	}
}

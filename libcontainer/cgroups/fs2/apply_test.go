package fs2

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestApplyCPUQuotaAndWeight(t *testing.T) {
	dir := t.TempDir()
	if err := applyCPU(dir, &configs.Resources{CpuQuota: 50000, CpuPeriod: 100000, CpuShares: 1024}); err != nil {
		t.Fatalf("applyCPU: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "cpu.max")
	if got != "50000 100000" {
		t.Errorf("cpu.max = %q, want %q", got, "50000 100000")
	}
	if _, err := cgroups.ReadFile(dir, "cpu.weight"); err != nil {
		t.Errorf("expected cpu.weight to be written when CpuShares is set: %v", err)
	}
}

func TestApplyCPUUnlimitedQuota(t *testing.T) {
	dir := t.TempDir()
	if err := applyCPU(dir, &configs.Resources{CpuQuota: -1, CpuPeriod: 100000}); err != nil {
		t.Fatalf("applyCPU: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "cpu.max")
	if got != "max 100000" {
		t.Errorf("cpu.max = %q, want %q", got, "max 100000")
	}
}

func TestApplyCPUDefaultsPeriod(t *testing.T) {
	dir := t.TempDir()
	if err := applyCPU(dir, &configs.Resources{CpuQuota: 25000}); err != nil {
		t.Fatalf("applyCPU: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "cpu.max")
	if got != "25000 100000" {
		t.Errorf("cpu.max = %q, want %q (a default 100000us period)", got, "25000 100000")
	}
}

func TestApplyMemoryUnlimited(t *testing.T) {
	dir := t.TempDir()
	if err := applyMemory(dir, &configs.Resources{Memory: -1, MemorySwap: -1}); err != nil {
		t.Fatalf("applyMemory: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "memory.max")
	if got != "max" {
		t.Errorf("memory.max = %q, want max", got)
	}
	got, _ = cgroups.ReadFile(dir, "memory.swap.max")
	if got != "max" {
		t.Errorf("memory.swap.max = %q, want max", got)
	}
}

func TestApplyPidsLimit(t *testing.T) {
	dir := t.TempDir()
	if err := applyPids(dir, &configs.Resources{PidsLimit: 100}); err != nil {
		t.Fatalf("applyPids: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "pids.max")
	if got != "100" {
		t.Errorf("pids.max = %q, want 100", got)
	}
}

func TestApplyPidsZeroIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := applyPids(dir, &configs.Resources{}); err != nil {
		t.Fatalf("applyPids: %v", err)
	}
	if _, err := cgroups.ReadFile(dir, "pids.max"); err == nil {
		t.Error("expected pids.max not to be written when PidsLimit is zero")
	}
}

func TestApplyCpuset(t *testing.T) {
	dir := t.TempDir()
	if err := applyCpuset(dir, &configs.Resources{CpusetCpus: "0-3", CpusetMems: "0"}); err != nil {
		t.Fatalf("applyCpuset: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "cpuset.cpus")
	if got != "0-3" {
		t.Errorf("cpuset.cpus = %q, want 0-3", got)
	}
}

func TestApplyIOWeightScaling(t *testing.T) {
	dir := t.TempDir()
	if err := applyIO(dir, &configs.Resources{BlkioWeight: 500}); err != nil {
		t.Fatalf("applyIO: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "io.weight")
	if got != "default 5000" {
		t.Errorf("io.weight = %q, want %q", got, "default 5000")
	}
}

func TestApplyHugetlb(t *testing.T) {
	dir := t.TempDir()
	if err := applyHugetlb(dir, &configs.Resources{
		HugetlbLimit: []configs.HugepageLimit{{Pagesize: "2MB", Limit: 10}},
	}); err != nil {
		t.Fatalf("applyHugetlb: %v", err)
	}
	got, _ := cgroups.ReadFile(dir, "hugetlb.2MB.max")
	if got != "10" {
		t.Errorf("hugetlb.2MB.max = %q, want 10", got)
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines("a\nb\nc")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitLines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitLines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitLinesTrailingNewline(t *testing.T) {
	got := splitLines("a\nb\n")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitLines with trailing newline = %v, want [a b]", got)
	}
}

func TestContainsFrozen1(t *testing.T) {
	if !containsFrozen1("populated 0\nfrozen 1\n") {
		t.Error("expected containsFrozen1 to find a frozen 1 line")
	}
	if containsFrozen1("populated 0\nfrozen 0\n") {
		t.Error("did not expect containsFrozen1 to match frozen 0")
	}
}

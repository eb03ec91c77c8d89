package fs

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
)

func TestFreezeThawedReturnsImmediately(t *testing.T) {
	dir := t.TempDir()
	if err := cgroups.WriteFile(dir, "freezer.state", ""); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := Freeze(dir, cgroups.Thawed); err != nil {
		t.Fatalf("Freeze(Thawed): %v", err)
	}
	if got, _ := cgroups.ReadFile(dir, "freezer.state"); got != string(cgroups.Thawed) {
		t.Errorf("freezer.state = %q, want %q", got, cgroups.Thawed)
	}
}

func TestFreezeFrozenSucceedsWhenKernelReportsFrozen(t *testing.T) {
	dir := t.TempDir()
	// Simulate the kernel having already settled by the first poll.
	if err := cgroups.WriteFile(dir, "freezer.state", string(cgroups.Frozen)); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := Freeze(dir, cgroups.Frozen); err != nil {
		t.Fatalf("Freeze(Frozen): %v", err)
	}
}

func TestFreezeGivesUpAfterTenAttempts(t *testing.T) {
	dir := t.TempDir()
	// freezer.state never reports Frozen back, so every poll attempt fails.
	if err := cgroups.WriteFile(dir, "freezer.state", string(cgroups.Thawed)); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	err := Freeze(dir, cgroups.Frozen)
	if err == nil {
		t.Fatal("expected Freeze to give up when the kernel never reports Frozen")
	}
}

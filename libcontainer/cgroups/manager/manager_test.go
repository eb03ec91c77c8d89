package manager

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestNewSystemdRequestedBypassesAutoDetection(t *testing.T) {
	mgr, err := New(&configs.Cgroup{Name: "c1", Systemd: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if mgr == nil {
		t.Fatal("expected a non-nil manager")
	}
}

func TestNewAutoDetectsAFilesystemBackendWhenSystemdNotRequested(t *testing.T) {
	mgr, err := New(&configs.Cgroup{Name: "c2"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if mgr == nil {
		t.Fatal("expected a non-nil manager")
	}
}

func TestReopenSystemdManagerAttaches(t *testing.T) {
	mgr, err := Reopen(&configs.Cgroup{Name: "c3", Parent: "custom.slice", Systemd: true})
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if mgr == nil {
		t.Fatal("expected a non-nil manager")
	}
}

func TestReopenNonSystemdManagerSkipsAttach(t *testing.T) {
	// fs/fs2 managers don't implement Attach(); Reopen must not fail just
	// because the type assertion misses.
	mgr, err := Reopen(&configs.Cgroup{Name: "c4"})
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if mgr == nil {
		t.Fatal("expected a non-nil manager")
	}
}

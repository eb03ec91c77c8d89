package fs

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestNewManagerComputesPathsUnderParentAndName(t *testing.T) {
	m, err := NewManager(&configs.Cgroup{Parent: "ocirun", Name: "test-container"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	for name, mp := range m.mounts {
		want := mp + "/ocirun/test-container"
		if m.paths[name] != want {
			t.Errorf("paths[%s] = %q, want %q", name, m.paths[name], want)
		}
	}
}

func TestNewManagerHonorsExplicitPath(t *testing.T) {
	m, err := NewManager(&configs.Cgroup{Path: "/my/explicit/path"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	for name, mp := range m.mounts {
		if m.paths[name] != mp+"/my/explicit/path" {
			t.Errorf("paths[%s] = %q, want suffix /my/explicit/path", name, m.paths[name])
		}
	}
}

func TestManagerTypeIsV1(t *testing.T) {
	m, err := NewManager(&configs.Cgroup{Name: "t"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Type() != cgroups.TypeV1 {
		t.Errorf("Type() = %v, want TypeV1", m.Type())
	}
}

func TestManagerApplyRejectsUnifiedResources(t *testing.T) {
	m, err := NewManager(&configs.Cgroup{Name: "t"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	err = m.Apply(&configs.Resources{Unified: map[string]string{"cpu.max": "100000 100000"}})
	if err == nil {
		t.Fatal("expected Apply to reject unified resources on a v1 manager")
	}
}

func TestErrCgroupUnsupportedMessage(t *testing.T) {
	err := errCgroupUnsupported("freezer")
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}

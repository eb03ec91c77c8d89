package systemd

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestNewManagerType(t *testing.T) {
	cg := &configs.Cgroup{Name: "c1"}

	unified, err := NewManager(cg, true)
	if err != nil {
		t.Fatalf("NewManager(unified): %v", err)
	}
	if unified.Type() != cgroups.TypeV2Systemd {
		t.Errorf("Type() = %v, want TypeV2Systemd", unified.Type())
	}

	v1, err := NewManager(cg, false)
	if err != nil {
		t.Fatalf("NewManager(v1): %v", err)
	}
	if v1.Type() != cgroups.TypeV1Systemd {
		t.Errorf("Type() = %v, want TypeV1Systemd", v1.Type())
	}
}

func TestDelegatedPathCombinesSliceAndUnit(t *testing.T) {
	cg := &configs.Cgroup{Name: "abc", Parent: "custom.slice"}
	m, err := NewManager(cg, true)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	want := "custom.slice/ocirun-abc.scope"
	if got := m.delegatedPath(); got != want {
		t.Errorf("delegatedPath() = %q, want %q", got, want)
	}
}

func TestPathBeforeAttachIsEmpty(t *testing.T) {
	m, err := NewManager(&configs.Cgroup{Name: "c2"}, true)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := m.Path("memory"); got != "" {
		t.Errorf("Path before Attach = %q, want empty", got)
	}
}

func TestAttachConstructsDelegateWithoutDialingDBus(t *testing.T) {
	m, err := NewManager(&configs.Cgroup{Name: "c3", Parent: "custom.slice"}, false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if m.delegate == nil {
		t.Fatal("expected Attach to populate a delegate")
	}
	if m.Path("devices") == "" {
		t.Error("expected Path to forward to the delegate once attached")
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	m, err := NewManager(&configs.Cgroup{Name: "c4"}, true)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Attach(); err != nil {
		t.Fatalf("first Attach: %v", err)
	}
	first := m.delegate
	if err := m.Attach(); err != nil {
		t.Fatalf("second Attach: %v", err)
	}
	if m.delegate != first {
		t.Error("expected a second Attach to reuse the existing delegate rather than rebuild it")
	}
}

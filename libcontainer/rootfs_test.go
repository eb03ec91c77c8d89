package libcontainer

import (
	"path/filepath"
	"testing"

	"github.com/ocirun/ocirun/libcontainer/configs"
	"github.com/ocirun/ocirun/libcontainer/system"
)

func TestMountSpecEntriesDedup(t *testing.T) {
	root := t.TempDir()
	fake := system.NewFake()
	r := &rootfsPreparer{sys: fake, config: &configs.Config{
		Rootfs: root,
		Mounts: []*configs.Mount{
			{Source: "proc", Destination: "/proc", Device: "proc"},
			{Source: "proc", Destination: "/proc", Device: "proc"},
		},
	}}
	if err := r.mountSpecEntries(); err == nil {
		t.Fatal("expected error for duplicate mount destination")
	}
}

func TestMaskPathsSkipsMissing(t *testing.T) {
	fake := system.NewFake()
	r := &rootfsPreparer{sys: fake, config: &configs.Config{
		MaskPaths: []string{filepath.Join(t.TempDir(), "does-not-exist")},
	}}
	if err := r.maskPaths(); err != nil {
		t.Fatalf("maskPaths should skip missing paths, got %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Fatalf("expected no mount calls for a missing masked path, got %v", fake.Calls)
	}
}

func TestMaskPathsRejectsEscape(t *testing.T) {
	fake := system.NewFake()
	r := &rootfsPreparer{sys: fake, config: &configs.Config{
		MaskPaths: []string{"/proc/../etc/shadow"},
	}}
	if err := r.maskPaths(); err == nil {
		t.Fatal("expected error for path traversal in masked path")
	}
}

package libcontainer

import (
	"os"
	"path/filepath"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

func TestLoadBundleSpecReadsConfigJSON(t *testing.T) {
	dir := t.TempDir()
	data := `{"ociVersion":"1.0.2","root":{"path":"rootfs"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(data), 0644); err != nil {
		t.Fatalf("writing config.json: %v", err)
	}
	spec, err := loadBundleSpec(dir)
	if err != nil {
		t.Fatalf("loadBundleSpec: %v", err)
	}
	if spec.Root == nil || spec.Root.Path != "rootfs" {
		t.Errorf("spec.Root = %+v, want Path=rootfs", spec.Root)
	}
}

func TestLoadBundleSpecMissingFile(t *testing.T) {
	if _, err := loadBundleSpec(t.TempDir()); err == nil {
		t.Fatal("expected an error for a bundle with no config.json")
	}
}

func TestLoadBundleSpecInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("not json"), 0644); err != nil {
		t.Fatalf("writing config.json: %v", err)
	}
	if _, err := loadBundleSpec(dir); err == nil {
		t.Fatal("expected an error for malformed config.json")
	}
}

func TestBundleRootfsDefaultsToRootfsSubdir(t *testing.T) {
	got := bundleRootfs("/bundles/c1", &specs.Spec{})
	if want := "/bundles/c1/rootfs"; got != want {
		t.Errorf("bundleRootfs = %q, want %q", got, want)
	}
}

func TestBundleRootfsRelativeIsAnchoredAtBundle(t *testing.T) {
	spec := &specs.Spec{Root: &specs.Root{Path: "custom-root"}}
	got := bundleRootfs("/bundles/c1", spec)
	if want := "/bundles/c1/custom-root"; got != want {
		t.Errorf("bundleRootfs = %q, want %q", got, want)
	}
}

func TestBundleRootfsAbsoluteIsUsedVerbatim(t *testing.T) {
	spec := &specs.Spec{Root: &specs.Root{Path: "/var/lib/ocirun/rootfs"}}
	got := bundleRootfs("/bundles/c1", spec)
	if want := "/var/lib/ocirun/rootfs"; got != want {
		t.Errorf("bundleRootfs = %q, want %q", got, want)
	}
}

package libcontainer

import (
	"encoding/json"
	"os"
	"path/filepath"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// loadBundleSpec reads <bundle>/config.json, the one piece of the OCI
// bundle the lifecycle API needs to look at directly (everything else goes
// through specconv.Convert).
func loadBundleSpec(bundle string) (*specs.Spec, error) {
	data, err := os.ReadFile(filepath.Join(bundle, "config.json"))
	if err != nil {
		return nil, newSystemErrorWithCause(err, "reading bundle config.json")
	}
	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, wrapError(ConfigInvalid, err, "parsing bundle config.json")
	}
	return &spec, nil
}

// bundleRootfs resolves spec.Root.Path relative to the bundle directory, per
// the OCI runtime-spec convention that a relative root is anchored at the
// bundle, not the current working directory.
func bundleRootfs(bundle string, spec *specs.Spec) string {
	path := "rootfs"
	if spec.Root != nil && spec.Root.Path != "" {
		path = spec.Root.Path
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(bundle, path)
}

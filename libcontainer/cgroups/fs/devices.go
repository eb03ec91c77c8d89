package fs

import (
	"fmt"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

// DevicesGroup writes the device allow-list via the legacy devices.allow
// / devices.deny files. v2 uses an eBPF program instead (see fs2); the
// hybrid decision is spec's Open Question (b), resolved in DESIGN.md.
type DevicesGroup struct{}

func (s *DevicesGroup) Name() string { return "devices" }

func (s *DevicesGroup) Apply(path string, r *configs.Resources) error {
	// Deny-all baseline, then apply each rule; matches the conservative
	// default real OCI runtimes use before layering spec-provided rules.
	if err := cgroups.WriteFile(path, "devices.deny", "a"); err != nil {
		return err
	}
	for _, d := range r.Devices {
		entry := formatDeviceRule(d)
		file := "devices.deny"
		if d.Allow {
			file = "devices.allow"
		}
		if err := cgroups.WriteFile(path, file, entry); err != nil {
			return err
		}
	}
	return nil
}

func formatDeviceRule(d configs.DeviceRule) string {
	major, minor := "*", "*"
	if d.Major >= 0 {
		major = fmt.Sprintf("%d", d.Major)
	}
	if d.Minor >= 0 {
		minor = fmt.Sprintf("%d", d.Minor)
	}
	return fmt.Sprintf("%c %s:%s %s", d.Type, major, minor, d.Permissions)
}

func (s *DevicesGroup) GetStats(path string, stats *cgroups.Stats) error { return nil }

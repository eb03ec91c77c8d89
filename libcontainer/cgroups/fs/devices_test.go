package fs

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestFormatDeviceRule(t *testing.T) {
	cases := []struct {
		rule configs.DeviceRule
		want string
	}{
		{configs.DeviceRule{Type: 'a', Major: -1, Minor: -1, Permissions: "rwm"}, "a *:* rwm"},
		{configs.DeviceRule{Type: 'c', Major: 1, Minor: 5, Permissions: "rw"}, "c 1:5 rw"},
		{configs.DeviceRule{Type: 'b', Major: 8, Minor: 0, Permissions: "r"}, "b 8:0 r"},
	}
	for _, c := range cases {
		if got := formatDeviceRule(c.rule); got != c.want {
			t.Errorf("formatDeviceRule(%+v) = %q, want %q", c.rule, got, c.want)
		}
	}
}

func TestDevicesGroupApplyDenyAllThenRules(t *testing.T) {
	dir := t.TempDir()
	g := &DevicesGroup{}
	r := &configs.Resources{
		Devices: []configs.DeviceRule{
			{Type: 'c', Major: 1, Minor: 5, Permissions: "rwm", Allow: true},
			{Type: 'c', Major: 1, Minor: 9, Permissions: "rwm", Allow: false},
		},
	}
	if err := g.Apply(dir, r); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	allow, err := cgroups.ReadFile(dir, "devices.allow")
	if err != nil {
		t.Fatalf("reading devices.allow: %v", err)
	}
	if allow != "c 1:5 rwm" {
		t.Errorf("devices.allow last write = %q, want %q", allow, "c 1:5 rwm")
	}

	deny, err := cgroups.ReadFile(dir, "devices.deny")
	if err != nil {
		t.Fatalf("reading devices.deny: %v", err)
	}
	// The deny-all baseline ("a") is written first and then overwritten
	// (WriteFile truncates) by the explicit deny rule for 1:9.
	if deny != "c 1:9 rwm" {
		t.Errorf("devices.deny last write = %q, want %q", deny, "c 1:9 rwm")
	}
}

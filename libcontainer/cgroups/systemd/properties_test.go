package systemd

import (
	"testing"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

func TestCpuQuotaPerSec(t *testing.T) {
	cases := []struct {
		quota, period uint64
		want          uint64
	}{
		{50000, 100000, 500000}, // half a CPU
		{100000, 100000, 1000000},
		{0, 100000, 0},
	}
	for _, c := range cases {
		got := cpuQuotaPerSec(int64(c.quota), c.period)
		if got != c.want {
			t.Errorf("cpuQuotaPerSec(%d, %d) = %d, want %d", c.quota, c.period, got, c.want)
		}
	}
}

func TestCpuQuotaPerSecZeroPeriod(t *testing.T) {
	if got := cpuQuotaPerSec(50000, 0); got != 0 {
		t.Errorf("cpuQuotaPerSec with zero period = %d, want 0", got)
	}
}

func TestDeviceNode(t *testing.T) {
	cases := []struct {
		rule configs.DeviceRule
		want string
	}{
		{configs.DeviceRule{Type: 'a'}, ""},
		{configs.DeviceRule{Type: 'c', Major: 1, Minor: 5}, "char-1:5"},
		{configs.DeviceRule{Type: 'b', Major: 8, Minor: 0}, "block-8:0"},
		{configs.DeviceRule{Type: 'c', Major: -1, Minor: 0}, "char-*"},
		{configs.DeviceRule{Type: 'x'}, ""},
	}
	for _, c := range cases {
		if got := deviceNode(c.rule); got != c.want {
			t.Errorf("deviceNode(%+v) = %q, want %q", c.rule, got, c.want)
		}
	}
}

func TestDevicePropertiesSkipsDenyAndWildcard(t *testing.T) {
	rules := []configs.DeviceRule{
		{Type: 'a', Allow: false},
		{Type: 'c', Major: 1, Minor: 3, Allow: false},
		{Type: 'c', Major: 1, Minor: 5, Allow: true, Permissions: "rwm"},
	}
	props := deviceProperties(rules)
	// DevicePolicy=strict plus exactly one DeviceAllow entry for the single
	// allow rule; the deny rules contribute nothing of their own.
	var allowCount int
	var sawPolicy bool
	for _, p := range props {
		switch p.Name {
		case "DevicePolicy":
			sawPolicy = true
		case "DeviceAllow":
			allowCount++
		}
	}
	if !sawPolicy {
		t.Error("expected a DevicePolicy=strict property")
	}
	if allowCount != 1 {
		t.Errorf("expected exactly one DeviceAllow property, got %d", allowCount)
	}
}

func TestDevicePropertiesEmptyRulesIsNil(t *testing.T) {
	if got := deviceProperties(nil); got != nil {
		t.Errorf("deviceProperties(nil) = %v, want nil", got)
	}
}

func TestResourcePropertiesNilResourcesIsNil(t *testing.T) {
	if got := resourceProperties(nil, false); got != nil {
		t.Errorf("resourceProperties(nil, false) = %v, want nil", got)
	}
	if got := resourceProperties(nil, true); got != nil {
		t.Errorf("resourceProperties(nil, true) = %v, want nil", got)
	}
}

func TestResourcePropertiesSelectsV1OrV2(t *testing.T) {
	r := &configs.Resources{CpuShares: 512}
	v1props := resourceProperties(r, false)
	v2props := resourceProperties(r, true)

	var v1HasShares, v2HasWeight bool
	for _, p := range v1props {
		if p.Name == "CPUShares" {
			v1HasShares = true
		}
	}
	for _, p := range v2props {
		if p.Name == "CPUWeight" {
			v2HasWeight = true
		}
	}
	if !v1HasShares {
		t.Error("expected v1 properties to set CPUShares")
	}
	if !v2HasWeight {
		t.Error("expected v2 properties to set CPUWeight")
	}
}

func TestUnitNameUsesSliceSuffixVerbatim(t *testing.T) {
	cg := &configs.Cgroup{Name: "my.slice"}
	if got := unitName(cg); got != "my.slice" {
		t.Errorf("unitName = %q, want %q", got, "my.slice")
	}
}

func TestUnitNameDefaultsPrefix(t *testing.T) {
	cg := &configs.Cgroup{Name: "abc123"}
	if got := unitName(cg); got != "ocirun-abc123.scope" {
		t.Errorf("unitName = %q, want %q", got, "ocirun-abc123.scope")
	}
}

func TestUnitNameCustomPrefix(t *testing.T) {
	cg := &configs.Cgroup{Name: "abc123", ScopePrefix: "mycorp"}
	if got := unitName(cg); got != "mycorp-abc123.scope" {
		t.Errorf("unitName = %q, want %q", got, "mycorp-abc123.scope")
	}
}

func TestSliceDefaultsToSystemSlice(t *testing.T) {
	if got := slice(&configs.Cgroup{}); got != "system.slice" {
		t.Errorf("slice = %q, want %q", got, "system.slice")
	}
}

func TestSliceUsesParent(t *testing.T) {
	cg := &configs.Cgroup{Parent: "custom.slice"}
	if got := slice(cg); got != "custom.slice" {
		t.Errorf("slice = %q, want %q", got, "custom.slice")
	}
}

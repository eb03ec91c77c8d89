package systemd

import (
	"fmt"
	"time"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// resourceProperties turns the resolved Resources into the unit properties
// systemd understands, in either its v1 (CPUShares/MemoryLimit/...) or v2
// (CPUWeight/MemoryMax/...) vocabulary — systemd translates whichever one
// matches the delegated hierarchy into the matching cgroup files itself, the
// same division of labor the teacher's genV1ResourcesProperties uses for v1.
func resourceProperties(r *configs.Resources, unified bool) []systemdDbus.Property {
	if r == nil {
		return nil
	}
	if unified {
		return v2Properties(r)
	}
	return v1Properties(r)
}

func v1Properties(r *configs.Resources) []systemdDbus.Property {
	var props []systemdDbus.Property

	if r.Memory != 0 {
		props = append(props, newProp("MemoryLimit", uint64(r.Memory)))
	}
	if r.CpuShares != 0 {
		props = append(props, newProp("CPUShares", r.CpuShares))
	}
	if r.CpuQuota > 0 && r.CpuPeriod > 0 {
		props = append(props, newProp("CPUQuotaPerSecUSec", cpuQuotaPerSec(r.CpuQuota, r.CpuPeriod)))
	}
	if r.BlkioWeight != 0 {
		props = append(props, newProp("BlockIOWeight", uint64(r.BlkioWeight)))
	}
	if r.PidsLimit > 0 {
		props = append(props, newProp("TasksMax", uint64(r.PidsLimit)))
	}
	if r.CpusetCpus != "" {
		props = append(props, newProp("AllowedCPUs", r.CpusetCpus))
	}
	if r.CpusetMems != "" {
		props = append(props, newProp("AllowedMemoryNodes", r.CpusetMems))
	}
	return append(props, deviceProperties(r.Devices)...)
}

func v2Properties(r *configs.Resources) []systemdDbus.Property {
	var props []systemdDbus.Property

	if r.Memory != 0 {
		props = append(props, newProp("MemoryMax", uint64(r.Memory)))
	}
	if r.MemoryReservation != 0 {
		props = append(props, newProp("MemoryLow", uint64(r.MemoryReservation)))
	}
	if r.CpuShares != 0 {
		// v2 CPUWeight is 1-10000, same scale conversion the fs2 backend
		// applies directly to cpu.weight.
		weight := (1 + ((r.CpuShares-2)*9999)/262142)
		props = append(props, newProp("CPUWeight", weight))
	}
	if r.CpuQuota > 0 && r.CpuPeriod > 0 {
		props = append(props, newProp("CPUQuotaPerSecUSec", cpuQuotaPerSec(r.CpuQuota, r.CpuPeriod)))
	}
	if r.BlkioWeight != 0 {
		props = append(props, newProp("IOWeight", uint64(r.BlkioWeight)*10))
	}
	if r.PidsLimit > 0 {
		props = append(props, newProp("TasksMax", uint64(r.PidsLimit)))
	}
	if r.CpusetCpus != "" {
		props = append(props, newProp("AllowedCPUs", r.CpusetCpus))
	}
	if r.CpusetMems != "" {
		props = append(props, newProp("AllowedMemoryNodes", r.CpusetMems))
	}
	return append(props, deviceProperties(r.Devices)...)
}

// cpuQuotaPerSec converts the OCI quota/period pair (microseconds over an
// arbitrary period) into systemd's CPUQuotaPerSecUSec (usec allowed per
// wall-clock second).
func cpuQuotaPerSec(quota int64, period uint64) uint64 {
	if period == 0 {
		return 0
	}
	return uint64(quota) * uint64(time.Second/time.Microsecond) / period
}

// deviceProperties builds DeviceAllow entries; systemd only supports allow
// rules (it has no DeviceDeny), so deny rules are dropped the same way the
// teacher's generateDeviceProperties does, relying on the default-deny
// baseline systemd establishes when DevicePolicy=strict.
func deviceProperties(rules []configs.DeviceRule) []systemdDbus.Property {
	if len(rules) == 0 {
		return nil
	}
	props := []systemdDbus.Property{newProp("DevicePolicy", "strict")}
	for _, r := range rules {
		if !r.Allow {
			continue
		}
		node := deviceNode(r)
		if node == "" {
			continue
		}
		props = append(props, newProp("DeviceAllow", []deviceAllowEntry{{Path: node, Permissions: r.Permissions}}))
	}
	return props
}

// deviceAllowEntry matches the (path, perms) struct shape go-systemd's dbus
// package marshals DeviceAllow= as.
type deviceAllowEntry struct {
	Path        string
	Permissions string
}

func deviceNode(r configs.DeviceRule) string {
	switch r.Type {
	case 'a':
		return "" // covered by DevicePolicy=strict default-deny baseline
	case 'c', 'b':
		kind := "char"
		if r.Type == 'b' {
			kind = "block"
		}
		if r.Major == -1 {
			return fmt.Sprintf("%s-*", kind)
		}
		return fmt.Sprintf("%s-%d:%d", kind, r.Major, r.Minor)
	default:
		return ""
	}
}

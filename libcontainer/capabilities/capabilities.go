// Package capabilities applies a container's five capability sets
// (bounding, effective, inheritable, permitted, ambient) to the init
// process before it execs the user command, translating the OCI "CAP_*"
// string names the config carries into the kernel's numeric bits.
package capabilities

import (
	"fmt"

	"github.com/moby/sys/capability"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// capabilityMap is the full set of POSIX capabilities the kernel defines,
// keyed by the OCI string name config.json and specconv carry them as.
var capabilityMap = map[string]capability.Cap{
	"CAP_CHOWN":              capability.CAP_CHOWN,
	"CAP_DAC_OVERRIDE":       capability.CAP_DAC_OVERRIDE,
	"CAP_DAC_READ_SEARCH":    capability.CAP_DAC_READ_SEARCH,
	"CAP_FOWNER":             capability.CAP_FOWNER,
	"CAP_FSETID":             capability.CAP_FSETID,
	"CAP_KILL":               capability.CAP_KILL,
	"CAP_SETGID":             capability.CAP_SETGID,
	"CAP_SETUID":             capability.CAP_SETUID,
	"CAP_SETPCAP":            capability.CAP_SETPCAP,
	"CAP_LINUX_IMMUTABLE":    capability.CAP_LINUX_IMMUTABLE,
	"CAP_NET_BIND_SERVICE":   capability.CAP_NET_BIND_SERVICE,
	"CAP_NET_BROADCAST":      capability.CAP_NET_BROADCAST,
	"CAP_NET_ADMIN":          capability.CAP_NET_ADMIN,
	"CAP_NET_RAW":            capability.CAP_NET_RAW,
	"CAP_IPC_LOCK":           capability.CAP_IPC_LOCK,
	"CAP_IPC_OWNER":          capability.CAP_IPC_OWNER,
	"CAP_SYS_MODULE":         capability.CAP_SYS_MODULE,
	"CAP_SYS_RAWIO":          capability.CAP_SYS_RAWIO,
	"CAP_SYS_CHROOT":         capability.CAP_SYS_CHROOT,
	"CAP_SYS_PTRACE":         capability.CAP_SYS_PTRACE,
	"CAP_SYS_PACCT":          capability.CAP_SYS_PACCT,
	"CAP_SYS_ADMIN":          capability.CAP_SYS_ADMIN,
	"CAP_SYS_BOOT":           capability.CAP_SYS_BOOT,
	"CAP_SYS_NICE":           capability.CAP_SYS_NICE,
	"CAP_SYS_RESOURCE":       capability.CAP_SYS_RESOURCE,
	"CAP_SYS_TIME":           capability.CAP_SYS_TIME,
	"CAP_SYS_TTY_CONFIG":     capability.CAP_SYS_TTY_CONFIG,
	"CAP_MKNOD":              capability.CAP_MKNOD,
	"CAP_LEASE":              capability.CAP_LEASE,
	"CAP_AUDIT_WRITE":        capability.CAP_AUDIT_WRITE,
	"CAP_AUDIT_CONTROL":      capability.CAP_AUDIT_CONTROL,
	"CAP_SETFCAP":            capability.CAP_SETFCAP,
	"CAP_MAC_OVERRIDE":       capability.CAP_MAC_OVERRIDE,
	"CAP_MAC_ADMIN":          capability.CAP_MAC_ADMIN,
	"CAP_SYSLOG":             capability.CAP_SYSLOG,
	"CAP_WAKE_ALARM":         capability.CAP_WAKE_ALARM,
	"CAP_BLOCK_SUSPEND":      capability.CAP_BLOCK_SUSPEND,
	"CAP_AUDIT_READ":         capability.CAP_AUDIT_READ,
}

func lookup(name string) (capability.Cap, error) {
	c, ok := capabilityMap[name]
	if !ok {
		return 0, fmt.Errorf("capabilities: unknown capability %q", name)
	}
	return c, nil
}

func resolveAll(names []string) ([]capability.Cap, error) {
	out := make([]capability.Cap, 0, len(names))
	for _, n := range names {
		c, err := lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Apply sets pid's five capability sets to match caps, dropping everything
// not listed (spec §4.J-adjacent: init always narrows its own capability
// sets to exactly what the config requests before the final exec).
func Apply(pid int, caps *configs.Capabilities) error {
	if caps == nil {
		return nil
	}
	pc, err := capability.NewPid2(pid)
	if err != nil {
		return fmt.Errorf("capabilities: opening process capability state: %w", err)
	}
	if err := pc.Load(); err != nil {
		return fmt.Errorf("capabilities: loading current state: %w", err)
	}

	sets := []struct {
		kind  capability.CapType
		names []string
	}{
		{capability.BOUNDING, caps.Bounding},
		{capability.EFFECTIVE, caps.Effective},
		{capability.INHERITABLE, caps.Inheritable},
		{capability.PERMITTED, caps.Permitted},
		{capability.AMBIENT, caps.Ambient},
	}

	var applyKind capability.CapType
	for _, s := range sets {
		resolved, err := resolveAll(s.names)
		if err != nil {
			return err
		}
		pc.Clear(s.kind)
		pc.Set(s.kind, resolved...)
		applyKind |= s.kind
	}

	if err := pc.Apply(applyKind); err != nil {
		return fmt.Errorf("capabilities: applying capability sets: %w", err)
	}
	return nil
}

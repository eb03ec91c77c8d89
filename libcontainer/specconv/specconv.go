// Package specconv converts a validated OCI runtime-spec Spec into the
// internal configs.Config libcontainer's other components consume. It is
// the one place that ever looks at specs-go types outside the CLI layer.
package specconv

import (
	"fmt"
	"os"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// mustHaveMounts are created if the bundle's config.json doesn't already
// request them, so a minimal OCI bundle still gets a working /proc and
// /dev without every image author hand-writing the boilerplate — the same
// role the teacher's sysboxMounts table plays, generalized here to an
// ordinary (non-virtualized) rootfs instead of sysbox-fs bind mounts.
var mustHaveMounts = []specs.Mount{
	{Destination: "/proc", Type: "proc", Source: "proc"},
	{Destination: "/dev", Type: "tmpfs", Source: "tmpfs",
		Options: []string{"nosuid", "strictatime", "mode=755", "size=65536k"}},
	{Destination: "/dev/pts", Type: "devpts", Source: "devpts",
		Options: []string{"nosuid", "noexec", "newinstance", "ptmxmode=0666", "mode=0620"}},
	{Destination: "/dev/shm", Type: "tmpfs", Source: "shm",
		Options: []string{"nosuid", "noexec", "nodev", "mode=1777", "size=65536k"}},
	{Destination: "/dev/mqueue", Type: "mqueue", Source: "mqueue",
		Options: []string{"nosuid", "noexec", "nodev"}},
	{Destination: "/sys", Type: "sysfs", Source: "sysfs",
		Options: []string{"nosuid", "noexec", "nodev", "ro"}},
}

var nsTypeMap = map[specs.LinuxNamespaceType]configs.NamespaceType{
	specs.PIDNamespace:     configs.NEWPID,
	specs.NetworkNamespace: configs.NEWNET,
	specs.MountNamespace:   configs.NEWNS,
	specs.IPCNamespace:     configs.NEWIPC,
	specs.UTSNamespace:     configs.NEWUTS,
	specs.UserNamespace:    configs.NEWUSER,
	specs.CgroupNamespace:  configs.NEWCGROUP,
}

// Convert builds a configs.Config from an OCI spec; rootfs is the absolute
// path of the bundle's already-resolved root (spec's Root.Path joined with
// the bundle directory); cg is the cgroup config the CLI built from its
// --systemd-cgroup flag and computed cgroup name/parent (nil skips the
// resource conversion).
func Convert(spec *specs.Spec, rootfs string, cg *configs.Cgroup) (*configs.Config, error) {
	if spec.Process == nil {
		return nil, fmt.Errorf("specconv: spec.process is required")
	}
	if spec.Linux == nil {
		return nil, fmt.Errorf("specconv: spec.linux is required (non-Linux specs unsupported)")
	}

	c := &configs.Config{
		Rootfs:          rootfs,
		Hostname:        spec.Hostname,
		Domainname:      spec.Domainname,
		NoNewPrivileges: spec.Process.NoNewPrivileges,
		Cgroups:         cg,
	}

	if spec.Root != nil {
		c.Readonlyfs = spec.Root.Readonly
	}

	if err := convertNamespaces(spec, c); err != nil {
		return nil, err
	}
	convertNetworks(c)
	convertMounts(spec, c)
	if err := convertDevices(spec, c); err != nil {
		return nil, err
	}
	convertCapabilities(spec, c)
	convertRlimits(spec, c)
	convertMaskedReadonly(spec, c)
	c.Hooks = ConvertHooks(spec)
	if cg != nil {
		convertResources(spec, cg)
	}
	convertIntelRdt(spec, c)
	convertSeccomp(spec, c)

	if err := validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func convertNamespaces(spec *specs.Spec, c *configs.Config) error {
	var out configs.Namespaces
	for _, ns := range spec.Linux.Namespaces {
		t, ok := nsTypeMap[ns.Type]
		if !ok {
			return fmt.Errorf("specconv: unknown namespace type %q", ns.Type)
		}
		out = append(out, configs.Namespace{Type: t, Path: ns.Path})
	}
	c.Namespaces = out

	for _, m := range spec.Linux.UIDMappings {
		c.UidMappings = append(c.UidMappings, configs.IDMap{
			ContainerID: int(m.ContainerID), HostID: int(m.HostID), Size: int(m.Size),
		})
	}
	for _, m := range spec.Linux.GIDMappings {
		c.GidMappings = append(c.GidMappings, configs.IDMap{
			ContainerID: int(m.ContainerID), HostID: int(m.HostID), Size: int(m.Size),
		})
	}
	if (len(c.UidMappings) > 0 || len(c.GidMappings) > 0) && !out.Contains(configs.NEWUSER) {
		return fmt.Errorf("specconv: id mappings given without a user namespace")
	}
	return nil
}

// convertNetworks requests loopback bring-up whenever a fresh network
// namespace is being created (not joined by path, which means some other
// process already owns setting it up). Plain runtime-spec has no field for
// this — it is the one network strategy a low-level runtime brings up on
// its own, everything past "lo" being a CNI plugin's job.
func convertNetworks(c *configs.Config) {
	for _, ns := range c.Namespaces {
		if ns.Type == configs.NEWNET && ns.Path == "" {
			c.Networks = append(c.Networks, &configs.Network{Type: "loopback"})
			return
		}
	}
}

func convertMounts(spec *specs.Spec, c *configs.Config) {
	seen := map[string]bool{}
	for _, m := range spec.Mounts {
		c.Mounts = append(c.Mounts, toMount(m))
		seen[m.Destination] = true
	}
	for _, m := range mustHaveMounts {
		if !seen[m.Destination] {
			c.Mounts = append(c.Mounts, toMount(m))
		}
	}
}

func toMount(m specs.Mount) *configs.Mount {
	cm := &configs.Mount{
		Source:      m.Source,
		Destination: m.Destination,
		Device:      m.Type,
		Data:        strings.Join(m.Options, ","),
	}
	switch m.Destination {
	case "/proc", "/sys":
		cm.Premount = true
	}
	return cm
}

func convertDevices(spec *specs.Spec, c *configs.Config) error {
	for _, d := range spec.Linux.Devices {
		if len(d.Type) == 0 {
			return fmt.Errorf("specconv: device %s missing type", d.Path)
		}
		dev := &configs.Device{
			Path:  d.Path,
			Type:  rune(d.Type[0]),
			Major: d.Major,
			Minor: d.Minor,
		}
		if d.FileMode != nil {
			dev.FileMode = uint32(*d.FileMode)
		} else {
			dev.FileMode = 0660
		}
		if d.UID != nil {
			dev.Uid = *d.UID
		}
		if d.GID != nil {
			dev.Gid = *d.GID
		}
		c.Devices = append(c.Devices, dev)
	}
	return nil
}

func convertCapabilities(spec *specs.Spec, c *configs.Config) {
	caps := spec.Process.Capabilities
	if caps == nil {
		return
	}
	c.Capabilities = &configs.Capabilities{
		Bounding:    caps.Bounding,
		Effective:   caps.Effective,
		Inheritable: caps.Inheritable,
		Permitted:   caps.Permitted,
		Ambient:     caps.Ambient,
	}
}

func convertRlimits(spec *specs.Spec, c *configs.Config) {
	for _, r := range spec.Process.Rlimits {
		t, ok := rlimitMap[strings.ToUpper(r.Type)]
		if !ok {
			continue
		}
		c.Rlimits = append(c.Rlimits, configs.Rlimit{Type: t, Hard: r.Hard, Soft: r.Soft})
	}
}

func convertMaskedReadonly(spec *specs.Spec, c *configs.Config) {
	c.MaskPaths = append([]string(nil), spec.Linux.MaskedPaths...)
	c.ReadonlyPaths = append([]string(nil), spec.Linux.ReadonlyPaths...)
	c.RootPropagation = propagationFlag(spec.Linux.RootfsPropagation)
}

// ConvertHooks resolves an OCI spec's hook lists into configs.Hooks. It is
// exported separately from Convert because the lifecycle API needs it
// again after create: `start`/`delete` run as fresh processes that only
// have the bundle path (from state.json), not the configs.Config that was
// built at create time.
func ConvertHooks(spec *specs.Spec) configs.Hooks {
	h := configs.Hooks{}
	if spec.Hooks == nil {
		return h
	}
	add := func(name configs.HookName, hooks []specs.Hook) {
		for _, hk := range hooks {
			timeout := 0
			if hk.Timeout != nil {
				timeout = *hk.Timeout
			}
			h[name] = append(h[name], configs.Hook{
				Path: hk.Path, Args: hk.Args, Env: hk.Env, Timeout: timeout,
			})
		}
	}
	add(configs.Prestart, spec.Hooks.Prestart)
	add(configs.CreateRuntime, spec.Hooks.CreateRuntime)
	add(configs.CreateContainer, spec.Hooks.CreateContainer)
	add(configs.StartContainer, spec.Hooks.StartContainer)
	add(configs.Poststart, spec.Hooks.Poststart)
	add(configs.Poststop, spec.Hooks.Poststop)
	return h
}

func convertResources(spec *specs.Spec, cg *configs.Cgroup) {
	r := &configs.Resources{}
	cg.Resources = r
	cg.Path = spec.Linux.CgroupsPath

	res := spec.Linux.Resources
	if res == nil {
		return
	}
	for _, d := range res.Devices {
		rule := configs.DeviceRule{Allow: d.Allow, Permissions: d.Access, Type: 'a'}
		if d.Type != "" {
			rule.Type = rune(d.Type[0])
		}
		if d.Major != nil {
			rule.Major = *d.Major
		} else {
			rule.Major = -1
		}
		if d.Minor != nil {
			rule.Minor = *d.Minor
		} else {
			rule.Minor = -1
		}
		r.Devices = append(r.Devices, rule)
	}
	if res.Memory != nil {
		if res.Memory.Limit != nil {
			r.Memory = *res.Memory.Limit
		}
		if res.Memory.Reservation != nil {
			r.MemoryReservation = *res.Memory.Reservation
		}
		if res.Memory.Swap != nil {
			r.MemorySwap = *res.Memory.Swap
		}
		if res.Memory.Kernel != nil {
			r.KernelMemory = *res.Memory.Kernel
		}
	}
	if res.CPU != nil {
		if res.CPU.Shares != nil {
			r.CpuShares = *res.CPU.Shares
		}
		if res.CPU.Quota != nil {
			r.CpuQuota = *res.CPU.Quota
		}
		if res.CPU.Period != nil {
			r.CpuPeriod = *res.CPU.Period
		}
		if res.CPU.RealtimeRuntime != nil {
			r.CpuRtRuntime = *res.CPU.RealtimeRuntime
		}
		if res.CPU.RealtimePeriod != nil {
			r.CpuRtPeriod = *res.CPU.RealtimePeriod
		}
		r.CpusetCpus = res.CPU.Cpus
		r.CpusetMems = res.CPU.Mems
	}
	if res.Pids != nil {
		r.PidsLimit = res.Pids.Limit
	}
	if res.BlockIO != nil {
		if res.BlockIO.Weight != nil {
			r.BlkioWeight = *res.BlockIO.Weight
		}
		if res.BlockIO.LeafWeight != nil {
			r.BlkioLeafWeight = *res.BlockIO.LeafWeight
		}
		for _, wd := range res.BlockIO.WeightDevice {
			var w, lw uint16
			if wd.Weight != nil {
				w = *wd.Weight
			}
			if wd.LeafWeight != nil {
				lw = *wd.LeafWeight
			}
			r.BlkioWeightDevice = append(r.BlkioWeightDevice, configs.BlkioWeightDevice{
				Major: wd.Major, Minor: wd.Minor, Weight: w, LeafWeight: lw,
			})
		}
		for _, td := range res.BlockIO.ThrottleReadBpsDevice {
			r.BlkioThrottle = append(r.BlkioThrottle, configs.BlkioThrottleDevice{
				Major: td.Major, Minor: td.Minor, Rate: td.Rate,
			})
		}
	}
	for _, hp := range res.HugepageLimits {
		r.HugetlbLimit = append(r.HugetlbLimit, configs.HugepageLimit{Pagesize: hp.Pagesize, Limit: hp.Limit})
	}
	if res.Unified != nil {
		r.Unified = res.Unified
	}
}

func convertIntelRdt(spec *specs.Spec, c *configs.Config) {
	if spec.Linux.IntelRdt == nil {
		return
	}
	c.IntelRdt = &configs.IntelRdt{
		ClosID:        spec.Linux.IntelRdt.ClosID,
		L3CacheSchema: spec.Linux.IntelRdt.L3CacheSchema,
		MemBwSchema:   spec.Linux.IntelRdt.MemBwSchema,
	}
}

func convertSeccomp(spec *specs.Spec, c *configs.Config) {
	if spec.Linux.Seccomp == nil {
		return
	}
	sc := &configs.Seccomp{DefaultAction: string(spec.Linux.Seccomp.DefaultAction)}
	for _, a := range spec.Linux.Seccomp.Architectures {
		sc.Architectures = append(sc.Architectures, string(a))
	}
	for _, s := range spec.Linux.Seccomp.Syscalls {
		rule := configs.SeccompSyscall{Names: s.Names, Action: string(s.Action)}
		for _, a := range s.Args {
			rule.Args = append(rule.Args, configs.SeccompArg{
				Index: a.Index, Value: a.Value, ValueTwo: a.ValueTwo, Op: string(a.Op),
			})
		}
		sc.Syscalls = append(sc.Syscalls, rule)
	}
	c.Seccomp = sc
}

// propagationFlag maps the OCI rootfs propagation string to the mount(2)
// flag the rootfs preparer's final remount uses; unrecognized/empty values
// default to private, the safest propagation for an isolated container.
func propagationFlag(p string) int {
	switch p {
	case "shared":
		return mntShared
	case "slave":
		return mntSlave
	case "unbindable":
		return mntUnbindable
	default:
		return mntPrivate
	}
}

func validate(c *configs.Config) error {
	if c.Rootfs == "" {
		return fmt.Errorf("specconv: rootfs is required")
	}
	if _, err := os.Stat(c.Rootfs); err != nil {
		return fmt.Errorf("specconv: rootfs %s: %w", c.Rootfs, err)
	}
	if len(c.UidMappings) > 0 && !c.Namespaces.Contains(configs.NEWUSER) {
		return fmt.Errorf("specconv: uid mappings require a user namespace")
	}
	return nil
}

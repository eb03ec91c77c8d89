package configs

// Cgroup is the resolved cgroup configuration: which backend to use, what
// path/name to create, and what resource limits to apply. It is backend
// agnostic; the cgroups package decides v1 vs v2 vs systemd at construction
// time (spec §9 "choose the backend at construction time").
type Cgroup struct {
	// Name is the cgroup directory/unit base name, normally the container id.
	Name string
	// Parent is the slice (systemd) or parent cgroup path (fs) to nest under.
	Parent string
	// Path, if non-empty, is an explicit cgroup path overriding Name/Parent
	// (used for `exec --cgroup` and for v2 child-cgroup layout).
	Path string
	// ScopePrefix is used for naming systemd transient units.
	ScopePrefix string
	// Systemd requests the systemd-delegated backend regardless of
	// auto-detection (the --systemd-cgroup CLI flag).
	Systemd bool
	// Rootless indicates the cgroup manager should degrade missing
	// controllers to warnings instead of errors (see SPEC_FULL.md
	// "Rootless cgroup fallback").
	Rootless bool
	Resources *Resources
}

// Resources is the full set of controller-specific limits spec §4.C lists.
type Resources struct {
	Devices []DeviceRule

	Memory          int64
	MemorySwap      int64
	MemoryReservation int64
	KernelMemory    int64

	CpuShares     uint64
	CpuQuota      int64
	CpuPeriod     uint64
	CpuRtRuntime  int64
	CpuRtPeriod   uint64
	CpusetCpus    string
	CpusetMems    string

	PidsLimit int64

	BlkioWeight       uint16
	BlkioLeafWeight   uint16
	BlkioWeightDevice []BlkioWeightDevice
	BlkioThrottle     []BlkioThrottleDevice

	HugetlbLimit []HugepageLimit

	NetClsClassid uint32
	NetPrioIfpriomap []NetPrioIfpriomap

	RdmaResources map[string]RdmaResource

	Freezer string // "" leaves unset; set by Freeze() not by Apply()

	// Unified carries raw cgroup v2 filenames to values, applied verbatim
	// after the typed fields above (spec §4.C "unified").
	Unified map[string]string
}

type DeviceRule struct {
	Allow       bool
	Type        rune // 'a', 'c', 'b'
	Major       int64 // -1 = wildcard
	Minor       int64
	Permissions string // subset of "rwm"
}

type BlkioWeightDevice struct {
	Major, Minor int64
	Weight, LeafWeight uint16
}

type BlkioThrottleDevice struct {
	Major, Minor int64
	Rate         uint64
}

type HugepageLimit struct {
	Pagesize string
	Limit    uint64
}

type NetPrioIfpriomap struct {
	Interface string
	Priority  uint32
}

type RdmaResource struct {
	HcaHandles *uint32
	HcaObjects *uint32
}

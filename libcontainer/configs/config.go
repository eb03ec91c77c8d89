// Package configs holds the internal, already-validated representation of
// a container's runtime configuration. It is the output of specconv and the
// input to every other libcontainer component: namespaces, cgroups, rootfs,
// capabilities, rlimits and hooks all read their section of Config and
// nothing else.
package configs

import "fmt"

// NamespaceType identifies a single Linux namespace kind.
type NamespaceType string

const (
	NEWNS     NamespaceType = "mnt"
	NEWUTS    NamespaceType = "uts"
	NEWIPC    NamespaceType = "ipc"
	NEWUSER   NamespaceType = "user"
	NEWPID    NamespaceType = "pid"
	NEWNET    NamespaceType = "net"
	NEWCGROUP NamespaceType = "cgroup"
)

// namespaceOrder is the fixed apply order mandated by spec §4.B: user
// first (so later operations run with the new credentials), pid next
// (so init's children see the fresh pid-ns), then everything else, with
// mount always last so earlier steps still see the host filesystem.
var namespaceOrder = []NamespaceType{
	NEWUSER,
	NEWPID,
	NEWUTS,
	NEWIPC,
	NEWNET,
	NEWCGROUP,
	NEWNS,
}

// Namespace is one entry of the requested namespace set: either "create a
// new one" (Path == "") or "enter this existing one" (Path is a bind-mount
// or /proc/<pid>/ns/<type> reference).
type Namespace struct {
	Type NamespaceType
	Path string
}

// Namespaces is the full requested set, order-independent on input;
// Namespaces.Ordered() returns it sorted into the fixed apply order.
type Namespaces []Namespace

func (n Namespaces) Contains(t NamespaceType) bool {
	_, ok := n.index(t)
	return ok
}

func (n Namespaces) PathOf(t NamespaceType) string {
	if i, ok := n.index(t); ok {
		return n[i].Path
	}
	return ""
}

func (n Namespaces) index(t NamespaceType) (int, bool) {
	for i, ns := range n {
		if ns.Type == t {
			return i, true
		}
	}
	return -1, false
}

// Ordered returns the requested namespaces sorted into the fixed §4.B
// apply order. Types not present in n are omitted.
func (n Namespaces) Ordered() Namespaces {
	out := make(Namespaces, 0, len(n))
	for _, t := range namespaceOrder {
		if i, ok := n.index(t); ok {
			out = append(out, n[i])
		}
	}
	return out
}

// IDMap is one line of a uid_map/gid_map: ContainerID is the mapping seen
// inside the user-ns, HostID is the credential on the host, Size is the
// range length.
type IDMap struct {
	ContainerID int
	HostID      int
	Size        int
}

// Mount describes one filesystem to set up under the rootfs during
// rootfs preparation (spec §4.D step 2).
type Mount struct {
	Source      string
	Destination string
	Device      string // fstype, or "bind"/"overlay"/"cgroup"/"cgroup2"
	Flags       int
	PropagationFlags []int
	Data        string
	Premount    bool // proc/sysfs style mounts that must exist before pivot_root
}

// Rlimit is one POSIX resource limit to apply to init before exec.
type Rlimit struct {
	Type int
	Hard uint64
	Soft uint64
}

// Device is a device node to create under the rootfs (spec §4.D step 3).
type Device struct {
	Path     string
	Type     rune // 'c', 'b', 'p'
	Major    int64
	Minor    int64
	FileMode uint32
	Uid      uint32
	Gid      uint32
}

// HookName identifies one of the six hook classes spec §2/§4.J lists.
type HookName string

const (
	Prestart        HookName = "prestart"
	CreateRuntime    HookName = "createRuntime"
	CreateContainer HookName = "createContainer"
	StartContainer  HookName = "startContainer"
	Poststart       HookName = "poststart"
	Poststop        HookName = "poststop"
)

// Capabilities is the five capability sets applied to init before exec.
type Capabilities struct {
	Bounding    []string
	Effective   []string
	Inheritable []string
	Permitted   []string
	Ambient     []string
}

// Config is the fully-resolved, internal representation of a container.
// It has no pointer back to the OCI spec: everything specconv extracted
// from config.json lives here in a shape the rest of libcontainer can
// consume directly.
type Config struct {
	Rootfs          string
	Readonlyfs      bool
	RootPropagation int
	Mounts          []*Mount
	Devices         []*Device
	MaskPaths       []string
	ReadonlyPaths   []string
	Hostname        string
	Domainname      string
	Namespaces      Namespaces
	UidMappings     []IDMap
	GidMappings     []IDMap
	Cgroups         *Cgroup
	Rlimits         []Rlimit
	Capabilities    *Capabilities
	NoNewPrivileges bool
	NoNewKeyring    bool
	Hooks           Hooks
	Seccomp         *Seccomp
	Networks        []*Network
	IntelRdt        *IntelRdt
	RootlessEUID    bool
	RootlessCgroups bool
}

// Hooks is the resolved hook list for every hook class present in the spec.
type Hooks map[HookName][]Hook

// Hook is one executable hook entry.
type Hook struct {
	Path    string
	Args    []string
	Env     []string
	Timeout int // seconds, 0 = no timeout
}

// Network describes a requested network-namespace side effect; only the
// "loopback" strategy is implemented (see specconv and SPEC_FULL.md).
type Network struct {
	Type string
}

// IntelRdt configures the optional resctrl resource-control surface.
type IntelRdt struct {
	ClosID         string
	L3CacheSchema  string
	MemBwSchema    string
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{rootfs=%s namespaces=%v}", c.Rootfs, c.Namespaces)
}

package libcontainer

import (
	"golang.org/x/sys/unix"

	"github.com/ocirun/ocirun/libcontainer/configs"
	"github.com/ocirun/ocirun/libcontainer/system"
)

// cloneFlag maps a configs.NamespaceType to its CLONE_NEW* / setns nstype
// flag, shared by both unshare() and setns() (they take the same bit for
// a given namespace kind).
func cloneFlag(t configs.NamespaceType) int {
	switch t {
	case configs.NEWNS:
		return unix.CLONE_NEWNS
	case configs.NEWUTS:
		return unix.CLONE_NEWUTS
	case configs.NEWIPC:
		return unix.CLONE_NEWIPC
	case configs.NEWUSER:
		return unix.CLONE_NEWUSER
	case configs.NEWPID:
		return unix.CLONE_NEWPID
	case configs.NEWNET:
		return unix.CLONE_NEWNET
	case configs.NEWCGROUP:
		return unix.CLONE_NEWCGROUP
	default:
		return 0
	}
}

// applyNamespaces partitions the requested set into "create" (unshare) vs
// "enter" (setns via an already-open fd) and applies them in the fixed
// §4.B order: user, then pid, then the rest, then mount last. pid-ns is
// only ever unshared here for the *parent's* benefit (a freshly-unshared
// pid-ns takes effect on the unsharing task's *children*, never on the
// task itself) — init never setns's into a pid-ns it just created itself
// (spec §8 "namespace entry order").
func applyNamespaces(sys system.Syscaller, nsPathFDs map[configs.NamespaceType]int, ns configs.Namespaces) error {
	for _, n := range ns.Ordered() {
		if n.Path == "" {
			if err := sys.Unshare(cloneFlag(n.Type)); err != nil {
				return wrapErrorf(Syscall, err, "unshare(%s)", n.Type)
			}
			continue
		}
		fd, ok := nsPathFDs[n.Type]
		if !ok {
			return newErrorf(ConfigInvalid, "no open fd for namespace %s at %s", n.Type, n.Path)
		}
		if err := sys.Setns(fd, cloneFlag(n.Type)); err != nil {
			return wrapErrorf(Syscall, err, "setns(%s, %s)", n.Type, n.Path)
		}
	}
	return nil
}

package libcontainer

import (
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	mapset "github.com/deckarep/golang-set"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ocirun/ocirun/libcontainer/configs"
	"github.com/ocirun/ocirun/libcontainer/system"
)

// defaultDevices are bind-mounted from the host rather than created with
// mknod, so rootless (no CAP_MKNOD) containers still get them (spec §4.D
// step 3).
var defaultDevices = []string{"null", "zero", "full", "random", "urandom", "tty"}

// rootfsPreparer executes spec §4.D's ordered choreography inside the init
// process, after the mount namespace has been made private and before
// pivot_root.
type rootfsPreparer struct {
	sys    system.Syscaller
	config *configs.Config
}

// prepare runs steps 1-8 of spec §4.D in order; the order is load-bearing
// and must not be rearranged (masked/read-only paths must follow
// pivot_root so they apply to the new root, not the host's).
func (r *rootfsPreparer) prepare() error {
	rootfs := r.config.Rootfs

	// Step 0 (spec §4.D preamble): make "/" recursively private so none of
	// the mounts we're about to perform propagate back to the host or to
	// a shared parent mount namespace.
	if err := r.sys.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return wrapError(Syscall, err, "making mount namespace private")
	}

	// Step 1: bind-mount rootfs onto itself so it is a mount point pivot_root
	// can use (pivot_root requires new_root be a mount point distinct from
	// its parent, spec §4.A).
	if err := r.sys.Mount(rootfs, rootfs, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return wrapErrorf(Syscall, err, "bind-mounting rootfs %s onto itself", rootfs)
	}

	// Step 2: spec-driven mounts.
	if err := r.mountSpecEntries(); err != nil {
		return err
	}

	// Step 3: default device nodes, bind-mounted from the host.
	if err := r.mountDefaultDevices(); err != nil {
		return err
	}

	// Step 4: standard fd symlinks.
	if err := r.createStdioSymlinks(); err != nil {
		return err
	}

	// Step 5: pivot_root, then lazily unmount the old root.
	if err := r.pivotRoot(); err != nil {
		return err
	}

	// Step 6: masked paths (must run after pivot_root: they apply to the
	// new root, not whatever was mounted at rootfs before the switch).
	if err := r.maskPaths(); err != nil {
		return err
	}

	// Step 7: read-only paths.
	if err := r.readonlyPaths(); err != nil {
		return err
	}

	// Step 8: optionally remount / read-only.
	if r.config.Readonlyfs {
		if err := r.sys.Mount("", "/", "", uintptr(unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY), ""); err != nil {
			return wrapError(Syscall, err, "remounting / read-only")
		}
	}

	return r.setRootPropagation()
}

func (r *rootfsPreparer) mountSpecEntries() error {
	seen := mapset.NewSet()
	for _, m := range r.config.Mounts {
		if m.Premount {
			continue
		}
		if seen.Contains(m.Destination) {
			return newErrorf(ConfigInvalid, "duplicate mount target %s", m.Destination)
		}
		seen.Add(m.Destination)

		target, err := securejoin.SecureJoin(r.config.Rootfs, m.Destination)
		if err != nil {
			return wrapErrorf(ConfigInvalid, err, "resolving mount target %s", m.Destination)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return newSystemErrorWithCausef(err, "creating parent dirs for %s", target)
		}
		if m.Device == "bind" || m.Device == "" {
			if fi, err := os.Stat(m.Source); err == nil && !fi.IsDir() {
				if err := ensureFile(target); err != nil {
					return err
				}
			} else if err := os.MkdirAll(target, 0755); err != nil && !os.IsExist(err) {
				return newSystemErrorWithCausef(err, "creating mount point %s", target)
			}
		} else {
			if err := os.MkdirAll(target, 0755); err != nil && !os.IsExist(err) {
				return newSystemErrorWithCausef(err, "creating mount point %s", target)
			}
		}

		if err := r.sys.Mount(m.Source, target, m.Device, uintptr(m.Flags), m.Data); err != nil {
			return wrapErrorf(Syscall, err, "mounting %s -> %s (%s)", m.Source, target, m.Device)
		}
		for _, pflag := range m.PropagationFlags {
			if err := r.sys.Mount("", target, "", uintptr(pflag), ""); err != nil {
				return wrapErrorf(Syscall, err, "setting mount propagation on %s", target)
			}
		}
	}
	return nil
}

func (r *rootfsPreparer) mountDefaultDevices() error {
	for _, name := range defaultDevices {
		host := filepath.Join("/dev", name)
		if _, err := os.Stat(host); err != nil {
			continue // host lacks it; nothing to bind
		}
		target, err := securejoin.SecureJoin(r.config.Rootfs, filepath.Join("dev", name))
		if err != nil {
			return wrapErrorf(ConfigInvalid, err, "resolving device target %s", name)
		}
		if err := ensureFile(target); err != nil {
			return err
		}
		if err := r.sys.Mount(host, target, "", unix.MS_BIND, ""); err != nil {
			return wrapErrorf(Syscall, err, "bind-mounting device %s", name)
		}
	}
	return nil
}

func (r *rootfsPreparer) createStdioSymlinks() error {
	links := map[string]string{
		"dev/fd":     "/proc/self/fd",
		"dev/stdin":  "/proc/self/fd/0",
		"dev/stdout": "/proc/self/fd/1",
		"dev/stderr": "/proc/self/fd/2",
		"dev/ptmx":   "pts/ptmx",
	}
	for rel, dest := range links {
		target := filepath.Join(r.config.Rootfs, rel)
		os.Remove(target)
		if err := os.Symlink(dest, target); err != nil && !os.IsExist(err) {
			return newSystemErrorWithCausef(err, "symlinking %s -> %s", rel, dest)
		}
	}
	return nil
}

func (r *rootfsPreparer) pivotRoot() error {
	rootfs := r.config.Rootfs
	putOld := filepath.Join(rootfs, ".pivot_root_old")
	if err := os.MkdirAll(putOld, 0700); err != nil {
		return newSystemErrorWithCause(err, "creating pivot_root put_old directory")
	}
	if err := r.sys.PivotRoot(rootfs, putOld); err != nil {
		return wrapError(Syscall, err, "pivot_root")
	}
	if err := r.sys.Chdir("/"); err != nil {
		return wrapError(Syscall, err, "chdir to new root")
	}
	oldRoot := "/.pivot_root_old"
	if err := r.sys.Unmount(oldRoot, unix.MNT_DETACH); err != nil {
		return wrapError(Syscall, err, "lazily unmounting old root")
	}
	return os.RemoveAll(oldRoot)
}

// maskPaths bind-mounts /dev/null over masked files and a mode-0 tmpfs
// over masked directories (spec §4.D step 6). Non-existent paths warn and
// continue rather than fail, matching spec's explicit instruction.
func (r *rootfsPreparer) maskPaths() error {
	for _, p := range r.config.MaskPaths {
		if strings.Contains(p, "..") {
			return newErrorf(ConfigInvalid, "masked path %q escapes rootfs", p)
		}
		fi, err := os.Lstat(p)
		if err != nil {
			logrus.Warnf("masked path %s: %v (skipping)", p, err)
			continue
		}
		if fi.IsDir() {
			if err := r.sys.Mount("tmpfs", p, "tmpfs", unix.MS_RDONLY, "mode=0"); err != nil {
				return wrapErrorf(Syscall, err, "masking directory %s", p)
			}
			continue
		}
		if err := r.sys.Mount("/dev/null", p, "", unix.MS_BIND, ""); err != nil {
			return wrapErrorf(Syscall, err, "masking file %s", p)
		}
	}
	return nil
}

// readonlyPaths remounts each path MS_BIND|MS_RDONLY (spec §4.D step 7).
// A bind remount needs two passes on Linux: bind, then remount+rdonly.
func (r *rootfsPreparer) readonlyPaths() error {
	for _, p := range r.config.ReadonlyPaths {
		if _, err := os.Lstat(p); err != nil {
			continue
		}
		if err := r.sys.Mount(p, p, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return wrapErrorf(Syscall, err, "bind-mounting read-only path %s", p)
		}
		if err := r.sys.Mount(p, p, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_REC, ""); err != nil {
			return wrapErrorf(Syscall, err, "remounting read-only path %s", p)
		}
	}
	return nil
}

// setRootPropagation applies the requested propagation (rprivate by
// default) to "/" after pivot_root, per spec §4.D's closing paragraph.
func (r *rootfsPreparer) setRootPropagation() error {
	flag := r.config.RootPropagation
	if flag == 0 {
		flag = unix.MS_PRIVATE | unix.MS_REC
	}
	if err := r.sys.Mount("", "/", "", uintptr(flag), ""); err != nil {
		return wrapError(Syscall, err, "setting root mount propagation")
	}
	return nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return newSystemErrorWithCausef(err, "creating parent dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return newSystemErrorWithCausef(err, "creating %s", path)
	}
	return f.Close()
}

package libcontainer

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// flock is the advisory lock over a container's state directory (spec
// §4.G): it serializes every lifecycle operation against the same
// container id. Callers that change state take it exclusive from the
// start and read-only callers take it shared; a held lock is never
// upgraded from shared to exclusive.
type flock struct {
	f *os.File
}

func openFlock(root, id string) (*flock, error) {
	dir := stateDir(root, id)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, newSystemErrorWithCause(err, "creating state directory for lock")
	}
	f, err := os.OpenFile(filepath.Join(dir, ".lock"), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, newSystemErrorWithCause(err, "opening lock file")
	}
	return &flock{f: f}, nil
}

func (l *flock) lock(exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(l.f.Fd()), how); err != nil {
		return wrapError(StateBusy, err, "acquiring state lock")
	}
	return nil
}

// tryLock is a non-blocking variant; callers use it to surface StateBusy
// immediately instead of waiting on a concurrent operation.
func (l *flock) tryLock(exclusive bool) error {
	how := unix.LOCK_NB
	if exclusive {
		how |= unix.LOCK_EX
	} else {
		how |= unix.LOCK_SH
	}
	if err := unix.Flock(int(l.f.Fd()), how); err != nil {
		if err == unix.EWOULDBLOCK {
			return newError(StateBusy, "another operation is in progress for this container")
		}
		return wrapError(StateBusy, err, "acquiring state lock")
	}
	return nil
}

func (l *flock) unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

func (l *flock) Close() error {
	l.unlock()
	return l.f.Close()
}

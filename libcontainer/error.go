package libcontainer

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a libcontainer error per spec §7. The CLI layer
// (cmd/ocirun) maps Kind to an exit code and a human-readable message;
// everything else should only ever compare against Kind via errors.As.
type ErrorKind int

const (
	// ConfigInvalid means spec/flag validation failed before any syscall
	// was attempted.
	ConfigInvalid ErrorKind = iota
	// Syscall wraps a kernel error returned by the syscall facade.
	Syscall
	// Protocol means a peer in the sync pipeline died or sent an
	// unexpected message.
	Protocol
	// HookFailed means a hook exited non-zero; fatality depends on hook
	// class and is decided by the hooks runner, not by this type.
	HookFailed
	// CgroupUnsupported means a requested controller is absent.
	CgroupUnsupported
	// StateBusy means the container's flock is held by another operation.
	StateBusy
	// AlreadyExists means a container id collision.
	AlreadyExists
	// NotFound means no container exists with the given id.
	NotFound
	// PermissionDenied means a capability/uid mismatch (e.g. no subuid
	// range for a rootless multi-range mapping request).
	PermissionDenied
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigInvalid:
		return "config invalid"
	case Syscall:
		return "syscall"
	case Protocol:
		return "protocol"
	case HookFailed:
		return "hook failed"
	case CgroupUnsupported:
		return "cgroup controller unsupported"
	case StateBusy:
		return "state busy"
	case AlreadyExists:
		return "already exists"
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	default:
		return "unknown"
	}
}

// Error is the single error type every libcontainer-facing API returns.
// It carries a Kind for programmatic dispatch and wraps the underlying
// cause so pkg/errors.Cause and errors.Unwrap both see through it.
type Error struct {
	Kind  ErrorKind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Cause() error  { return e.cause }

func newError(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func newErrorf(kind ErrorKind, format string, a ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

func wrapError(kind ErrorKind, cause error, msg string) error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

func wrapErrorf(kind ErrorKind, cause error, format string, a ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...), cause: cause}
}

// newSystemError wraps an error from the syscall facade as a Syscall-kind
// error, matching the teacher's newSystemError[WithCause[f]] helpers in
// process_linux.go.
func newSystemError(err error) error {
	return wrapError(Syscall, err, "system error")
}

func newSystemErrorWithCause(err error, cause string) error {
	return wrapError(Syscall, err, cause)
}

func newSystemErrorWithCausef(err error, format string, a ...interface{}) error {
	return wrapErrorf(Syscall, err, format, a...)
}

// IsKind reports whether err (or anything it wraps) is a *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			if e.Kind == k {
				return true
			}
			err = e.cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}

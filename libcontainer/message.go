package libcontainer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// syncType tags every message exchanged over the sync pipes (component F).
// The fixed enum is spec §3's "Sync message"; every stage reads exactly
// the tags it expects in order, and any other tag is a fatal protocol
// error (spec §4.F).
type syncType uint8

const (
	procReady syncType = iota + 1
	idMappingRequest
	idMappingDone
	execStarted
	initReady // carries the pid
	syncError
	procHooks
	procResume
	procRun
	rootfsReady
	rootfsReadyAck
)

func (t syncType) String() string {
	switch t {
	case procReady:
		return "procReady"
	case idMappingRequest:
		return "idMappingRequest"
	case idMappingDone:
		return "idMappingDone"
	case execStarted:
		return "execStarted"
	case initReady:
		return "initReady"
	case syncError:
		return "error"
	case procHooks:
		return "procHooks"
	case procResume:
		return "procResume"
	case procRun:
		return "procRun"
	case rootfsReady:
		return "rootfsReady"
	case rootfsReadyAck:
		return "rootfsReadyAck"
	default:
		return fmt.Sprintf("syncType(%d)", t)
	}
}

// syncT is one message on a sync pipe: a tag plus an optional typed
// payload. Pid is populated for initReady; ErrKind/ErrMessage for
// syncError (spec §3 "Error(kind, message)").
type syncT struct {
	Type       syncType `json:"type"`
	Pid        int      `json:"pid,omitempty"`
	ErrKind    ErrorKind `json:"err_kind,omitempty"`
	ErrMessage string   `json:"err_message,omitempty"`
}

// writeSync writes a length-prefixed JSON-encoded syncT to w. Writes
// block (spec §5 "writes are blocking").
func writeSync(w io.Writer, t syncType) error {
	return writeSyncMsg(w, syncT{Type: t})
}

func writeSyncMsg(w io.Writer, msg syncT) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func writeSyncError(w io.Writer, kind ErrorKind, msg string) error {
	return writeSyncMsg(w, syncT{Type: syncError, ErrKind: kind, ErrMessage: msg})
}

// readSyncMsg reads one length-prefixed syncT from r. A reader EOF while
// awaiting a message means the peer died (spec §4.F): the returned error
// is always a Protocol-kind *Error in that case.
func readSyncMsg(r io.Reader) (syncT, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return syncT{}, wrapError(Protocol, err, "sync peer died (pipe EOF)")
		}
		return syncT{}, wrapError(Protocol, err, "reading sync message header")
	}
	n := binary.BigEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return syncT{}, wrapError(Protocol, err, "reading sync message body")
	}
	var msg syncT
	if err := json.Unmarshal(buf, &msg); err != nil {
		return syncT{}, wrapError(Protocol, err, "decoding sync message")
	}
	if msg.Type == syncError {
		return msg, wrapErrorf(msg.ErrKind, fmt.Errorf(msg.ErrMessage), "peer reported error")
	}
	return msg, nil
}

// parseSync reads messages from r until EOF, calling fn for each one. fn
// returning a non-nil error stops the loop and is returned; EOF stops the
// loop cleanly. This mirrors the teacher's parseSync/syncT dispatch loop
// in process_linux.go, narrowed to spec §3's fixed tag set.
func parseSync(r io.Reader, fn func(*syncT) error) error {
	for {
		msg, err := readSyncMsg(r)
		if err != nil {
			if IsKind(err, Protocol) && msg.Type == 0 {
				// Peer closed the pipe after a clean shutdown; not an error
				// unless fn was still expecting something (caller decides
				// via its own "sentRun"-style bookkeeping, as in initProcess.start).
				var cause error
				if e, ok := err.(*Error); ok {
					cause = e.cause
				}
				if cause == io.EOF {
					return nil
				}
			}
			return err
		}
		if err := fn(&msg); err != nil {
			return err
		}
	}
}

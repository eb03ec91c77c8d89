package libcontainer

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadSyncRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSync(&buf, procReady); err != nil {
		t.Fatalf("writeSync: %v", err)
	}
	msg, err := readSyncMsg(&buf)
	if err != nil {
		t.Fatalf("readSyncMsg: %v", err)
	}
	if msg.Type != procReady {
		t.Errorf("msg.Type = %v, want procReady", msg.Type)
	}
}

func TestWriteSyncMsgCarriesPid(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSyncMsg(&buf, syncT{Type: initReady, Pid: 4242}); err != nil {
		t.Fatalf("writeSyncMsg: %v", err)
	}
	msg, err := readSyncMsg(&buf)
	if err != nil {
		t.Fatalf("readSyncMsg: %v", err)
	}
	if msg.Pid != 4242 {
		t.Errorf("msg.Pid = %d, want 4242", msg.Pid)
	}
}

func TestReadSyncMsgEOFIsProtocolError(t *testing.T) {
	_, err := readSyncMsg(bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected an error reading from an empty buffer")
	}
	if !IsKind(err, Protocol) {
		t.Errorf("expected a Protocol-kind error, got %v", err)
	}
}

func TestWriteSyncErrorRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSyncError(&buf, CgroupUnsupported, "no memory controller"); err != nil {
		t.Fatalf("writeSyncError: %v", err)
	}
	_, err := readSyncMsg(&buf)
	if err == nil {
		t.Fatal("expected readSyncMsg to surface the peer's error")
	}
	if !IsKind(err, CgroupUnsupported) {
		t.Errorf("expected CgroupUnsupported kind, got %v", err)
	}
}

func TestParseSyncStopsOnCleanEOF(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSync(&buf, procReady); err != nil {
		t.Fatalf("writeSync: %v", err)
	}
	var seen []syncType
	err := parseSync(&buf, func(s *syncT) error {
		seen = append(seen, s.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("parseSync: %v", err)
	}
	if len(seen) != 1 || seen[0] != procReady {
		t.Errorf("seen = %v, want [procReady]", seen)
	}
}

func TestParseSyncStopsOnCallbackError(t *testing.T) {
	var buf bytes.Buffer
	writeSync(&buf, procReady)
	writeSync(&buf, procHooks)

	stop := newError(ConfigInvalid, "stop here")
	calls := 0
	err := parseSync(&buf, func(s *syncT) error {
		calls++
		return stop
	})
	if err != stop {
		t.Fatalf("parseSync returned %v, want the callback's error", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one callback invocation before stopping, got %d", calls)
	}
}

func TestParseSyncTreatsImmediateEOFAsCleanShutdown(t *testing.T) {
	// parseSync can't distinguish "peer finished normally" from "peer died
	// before sending anything" on its own; it leaves that judgment to the
	// caller's own bookkeeping (e.g. whether it already saw procReady) and
	// treats a bare EOF at a message boundary as loop termination.
	r, w := io.Pipe()
	w.Close()

	err := parseSync(r, func(s *syncT) error { return nil })
	if err != nil {
		t.Fatalf("parseSync = %v, want nil for a clean EOF at a message boundary", err)
	}
}

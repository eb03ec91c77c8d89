package console

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestSendRecvMasterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "console.sock")

	addr, err := net.ResolveUnixAddr("unix", sockPath)
	if err != nil {
		t.Fatalf("ResolveUnixAddr: %v", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	defer ln.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	const wantSlavePath = "/dev/pts/7"
	errCh := make(chan error, 1)
	go func() {
		errCh <- SendMaster(sockPath, int(w.Fd()), wantSlavePath)
	}()

	fd, slavePath, err := RecvMaster(ln)
	if err != nil {
		t.Fatalf("RecvMaster: %v", err)
	}
	defer os.NewFile(uintptr(fd), "received").Close()

	if err := <-errCh; err != nil {
		t.Fatalf("SendMaster: %v", err)
	}
	if slavePath != wantSlavePath {
		t.Errorf("slavePath = %q, want %q", slavePath, wantSlavePath)
	}
	if fd < 0 {
		t.Errorf("fd = %d, want a valid non-negative descriptor", fd)
	}

	// The received fd should refer to the same pipe: a byte written to w
	// must be readable through it.
	received := os.NewFile(uintptr(fd), "received")
	if _, err := w.WriteString("x"); err != nil {
		t.Fatalf("writing through original fd: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := received.Read(buf); err != nil {
		t.Fatalf("reading through received fd: %v", err)
	}
	if buf[0] != 'x' {
		t.Errorf("read byte = %q, want 'x'", buf[0])
	}
}

func TestSendMasterRejectsMissingSocket(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if err := SendMaster(filepath.Join(t.TempDir(), "no-such.sock"), int(w.Fd()), "/dev/pts/0"); err == nil {
		t.Fatal("expected an error dialing a nonexistent console socket")
	}
}

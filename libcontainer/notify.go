package libcontainer

import (
	"net"
	"os"
	"path/filepath"
)

// notifySocketPath is the seqpacket socket init binds after fully
// initializing and before exec (spec §4.E).
func notifySocketPath(root, id string) string {
	return filepath.Join(stateDir(root, id), "notify.sock")
}

// notifyListener wraps the seqpacket socket init listens on. It delivers
// the "start" signal at most once: the supervisor writes nothing to it,
// and `start` sends exactly one START datagram. SOCK_SEQPACKET is
// connection-oriented (unlike SOCK_DGRAM), so this is a listener that
// Accepts a single connection rather than a bare datagram socket — that
// connection is what lets waitStart tell "closed before START arrived"
// (spec §4.E) apart from "nothing sent yet".
type notifyListener struct {
	ln   *net.UnixListener
	conn *net.UnixConn
	path string
}

// listenNotify binds and listens on path. Must be called after init has
// finished every other initialization step (spec §4.E). "unixpacket" is
// Go's name for SOCK_SEQPACKET; net.ListenUnixgram only ever accepts
// "unixgram" (SOCK_DGRAM) and would reject this network string outright,
// so the seqpacket socket is bound with net.ListenUnix instead.
func listenNotify(path string) (*notifyListener, error) {
	os.Remove(path)
	addr := &net.UnixAddr{Name: path, Net: "unixpacket"}
	ln, err := net.ListenUnix("unixpacket", addr)
	if err != nil {
		return nil, wrapErrorf(Syscall, err, "listening on notify socket %s", path)
	}
	return &notifyListener{ln: ln, path: path}, nil
}

const startDatagram = "START"

// waitStart accepts the single connection `start` will dial in, then
// blocks until the "start" datagram arrives on it, or until the listener
// is closed first (spec §4.E: "If the socket is closed before the
// datagram arrives, init returns a protocol-failure error.").
func (n *notifyListener) waitStart() error {
	conn, err := n.ln.AcceptUnix()
	if err != nil {
		return wrapError(Protocol, err, "notify socket closed before START was received")
	}
	n.conn = conn

	buf := make([]byte, len(startDatagram))
	nr, err := conn.Read(buf)
	if err != nil {
		return wrapError(Protocol, err, "notify socket closed before START was received")
	}
	if string(buf[:nr]) != startDatagram {
		return newErrorf(Protocol, "unexpected notify datagram %q", string(buf[:nr]))
	}
	return nil
}

func (n *notifyListener) Close() error {
	err := n.ln.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	os.Remove(n.path)
	return err
}

// sendStart is called by the `start` subcommand: it sends the single
// "go" signal over the notify socket.
func sendStart(path string) error {
	addr := &net.UnixAddr{Name: path, Net: "unixpacket"}
	conn, err := net.DialUnix("unixpacket", nil, addr)
	if err != nil {
		return wrapErrorf(Syscall, err, "connecting to notify socket %s", path)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(startDatagram)); err != nil {
		return wrapError(Syscall, err, "writing START to notify socket")
	}
	return nil
}

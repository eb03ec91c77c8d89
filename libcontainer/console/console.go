// Package console implements the terminal wire protocol spec §6 names: when
// a container requests a terminal and the caller gave a --console-socket
// path, init allocates a PTY, then sends the master fd to that socket via
// SCM_RIGHTS with the slave's path as the accompanying datagram payload.
package console

import (
	"fmt"
	"net"

	"github.com/containerd/console"
	"golang.org/x/sys/unix"
)

// New allocates a PTY pair, matching the shape containerd/console's
// NewPty returns: a master (*console.Console) and the slave's path.
func New() (console.Console, string, error) {
	pty, slavePath, err := console.NewPty()
	if err != nil {
		return nil, "", fmt.Errorf("console: allocating pty: %w", err)
	}
	return pty, slavePath, nil
}

// SendMaster connects to the console socket at socketPath and sends fd
// (the PTY master) over SCM_RIGHTS, with slavePath as the accompanying
// regular datagram payload (spec §6 "along with the slave path in the
// ancillary message").
func SendMaster(socketPath string, fd int, slavePath string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("console: dialing console socket: %w", err)
	}
	defer conn.Close()

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("console: console socket %s is not a unix socket", socketPath)
	}

	rights := unix.UnixRights(fd)
	if _, _, err := uc.WriteMsgUnix([]byte(slavePath), rights, nil); err != nil {
		return fmt.Errorf("console: sending console fd: %w", err)
	}
	return nil
}

// RecvMaster is the console socket owner's half of the protocol: accept one
// connection, read the ancillary SCM_RIGHTS fd and the slave path payload.
// The supervisor itself never calls this (spec §6: "the supervisor does
// not read the socket itself"), and no CLI command calls it: it is the
// half run by the external process that owns the --console-socket.
func RecvMaster(ln *net.UnixListener) (fd int, slavePath string, err error) {
	conn, err := ln.AcceptUnix()
	if err != nil {
		return -1, "", fmt.Errorf("console: accepting console connection: %w", err)
	}
	defer conn.Close()

	buf := make([]byte, unix.PathMax)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return -1, "", fmt.Errorf("console: reading console message: %w", err)
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, "", fmt.Errorf("console: parsing control message: %w", err)
	}
	if len(cmsgs) == 0 {
		return -1, "", fmt.Errorf("console: no control message received")
	}
	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil {
		return -1, "", fmt.Errorf("console: parsing SCM_RIGHTS: %w", err)
	}
	if len(fds) == 0 {
		return -1, "", fmt.Errorf("console: no fd received")
	}
	return fds[0], string(buf[:n]), nil
}

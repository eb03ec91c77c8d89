package libcontainer

import (
	"io"
	"os"

	"github.com/containerd/console"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// Process is one container process: either the container's own init
// (created alongside the container) or a later `exec` (component H's
// "exec path", which joins the existing namespaces instead of creating
// them).
type Process struct {
	Args []string
	Env  []string
	User string
	Cwd  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ExtraFiles []*os.File

	// ConsoleSocket, if set, is the --console-socket the CLI was given;
	// init allocates a PTY and sends the master down this socket instead
	// of wiring Stdin/Stdout/Stderr directly (spec §6 console protocol).
	ConsoleSocket string

	init bool
}

// initPid mirrors the teacher's pid{} wire struct. Init's pid itself
// travels inline on syncT in the intermediate's initReady message
// (message.go).
type initPid struct {
	Pid int `json:"pid"`
}

// bootstrapConfig is the single JSON document the supervisor writes once
// to the intermediate's sync pipe: everything the intermediate and init
// stages need and cannot derive themselves, since they are fresh
// /proc/self/exe re-executions with no Go-level state inherited from the
// supervisor except open file descriptors and environment (spec §4.H).
type bootstrapConfig struct {
	ID               string
	Root             string
	Config           *configs.Config
	Process          processConfig
	NotifySocketPath string
	SeccompInstaller string // reserved for a future pluggable-installer-by-name lookup
}

// processConfig is the subset of Process that survives JSON marshaling
// (fds and Go-side io.Reader/Writer values don't).
type processConfig struct {
	Args          []string
	Env           []string
	User          string
	Cwd           string
	Init          bool
	ConsoleSocket string
}

func newProcessConfig(p *Process) processConfig {
	return processConfig{
		Args:          p.Args,
		Env:           p.Env,
		User:          p.User,
		Cwd:           p.Cwd,
		Init:          p.init,
		ConsoleSocket: p.ConsoleSocket,
	}
}

// consolePair couples a containerd/console.Console to its slave path;
// kept here rather than in the console package.
type consolePair struct {
	master console.Console
	slave  string
}

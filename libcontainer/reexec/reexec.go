// Package reexec lets the same binary act as all three generations of
// spec §4.H's process pipeline. The supervisor re-invokes itself as the
// intermediate and init stages via /proc/self/exe with a sentinel
// argv[0], instead of forking a second binary or shelling out to a
// helper written in C; each stage registers its entry point at package
// init time and main() dispatches to it before anything else runs.
package reexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

var (
	registeredInitializers = make(map[string]func())
	initWasCalled          = false
)

// Register adds an initialization func under the given sentinel name.
// Stage packages call this from their own init(), mirroring how the
// corpus's vendored reexec package is used by its callers.
func Register(name string, initializer func()) {
	if _, exists := registeredInitializers[name]; exists {
		panic(fmt.Sprintf("reexec: func already registered under name %q", name))
	}
	registeredInitializers[name] = initializer
}

// Init must be the first thing main() calls. It reports whether
// os.Args[0] matched a registered stage and that stage's initializer
// ran (which never returns: every registered initializer exits the
// process itself).
func Init() bool {
	initializer, exists := registeredInitializers[os.Args[0]]
	initWasCalled = true
	if exists {
		initializer()
		return true
	}
	return false
}

func panicIfNotInitialized() {
	if !initWasCalled {
		panic("reexec: Command called before reexec.Init() ran in main()")
	}
}

// Self returns the path this process should re-exec: /proc/self/exe, so
// the in-memory image is used even if the on-disk binary is replaced or
// removed after the supervisor started.
func Self() string {
	return "/proc/self/exe"
}

// Command returns an *exec.Cmd that runs Self() with args as its argv,
// i.e. args[0] is the sentinel name a registered stage was given to
// Register.
func Command(args ...string) *exec.Cmd {
	panicIfNotInitialized()
	cmd := exec.Command(Self())
	cmd.Args = args
	return cmd
}

// CommandContext is Command with a context-bound deadline/cancellation.
func CommandContext(ctx context.Context, args ...string) *exec.Cmd {
	panicIfNotInitialized()
	cmd := exec.CommandContext(ctx, Self())
	cmd.Args = args
	return cmd
}

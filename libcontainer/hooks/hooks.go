// Package hooks runs a container's configured lifecycle hooks (component
// J): for each hook of a class, fork/exec the command, pipe the container
// state as JSON on stdin, enforce a per-hook timeout, and treat failure as
// fatal or merely logged depending on which class it belongs to (spec
// §4.J).
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

// fatalClasses are the hook classes whose failure must abort container
// create/start; the rest (poststart, poststop) only get logged (spec
// §4.J, §7 HookFailed).
var fatalClasses = map[configs.HookName]bool{
	configs.Prestart:        true,
	configs.CreateRuntime:   true,
	configs.CreateContainer: true,
	configs.StartContainer:  true,
}

// StateJSON is anything that can render itself as the container state
// object a hook receives on stdin (libcontainer.State.toOCIState, kept
// abstract here to avoid an import cycle back into the top-level package).
type StateJSON interface {
	MarshalState() ([]byte, error)
}

// Run executes every hook registered for class, in order, passing state on
// each one's stdin. It returns the first fatal failure, if class is a
// fatal class; non-fatal-class failures are logged and otherwise ignored.
func Run(class configs.HookName, all configs.Hooks, state StateJSON) error {
	list := all[class]
	if len(list) == 0 {
		return nil
	}
	payload, err := state.MarshalState()
	if err != nil {
		return fmt.Errorf("hooks: marshaling state for %s: %w", class, err)
	}

	for _, h := range list {
		if err := runOne(class, h, payload); err != nil {
			if fatalClasses[class] {
				return err
			}
			logrus.Warnf("hook %s (%s) failed: %v", class, h.Path, err)
		}
	}
	return nil
}

func runOne(class configs.HookName, h configs.Hook, payload []byte) error {
	timeout := time.Duration(h.Timeout) * time.Second
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, h.Path)
	// OCI hook Args conventionally includes argv[0]; exec.Cmd wants the
	// full argv in cmd.Args with cmd.Path set separately.
	if len(h.Args) > 0 {
		cmd.Args = h.Args
	}
	cmd.Env = h.Env
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("hook %s timed out after %s", h.Path, timeout)
		}
		return fmt.Errorf("hook %s: %w: %s", h.Path, err, stderr.String())
	}
	return nil
}

package fs

import (
	"fmt"
	"time"

	"github.com/ocirun/ocirun/libcontainer/cgroups"
	"github.com/ocirun/ocirun/libcontainer/configs"
)

type FreezerGroup struct{}

func (s *FreezerGroup) Name() string { return "freezer" }

func (s *FreezerGroup) Apply(path string, r *configs.Resources) error { return nil }

func (s *FreezerGroup) GetStats(path string, stats *cgroups.Stats) error { return nil }

// Freeze writes freezer.state and polls for the kernel's self-reported
// state, backing off 1ms -> 100ms (doubling), capped at 10 attempts (spec
// §5 "Freeze operations poll with exponential backoff"; Open Question (a)
// resolved in DESIGN.md).
func Freeze(path string, state cgroups.FreezerState) error {
	if err := cgroups.WriteFile(path, "freezer.state", string(state)); err != nil {
		return err
	}
	if state == cgroups.Thawed {
		return nil
	}
	delay := time.Millisecond
	for attempt := 0; attempt < 10; attempt++ {
		got, err := cgroups.ReadFile(path, "freezer.state")
		if err == nil && got == string(cgroups.Frozen) {
			return nil
		}
		time.Sleep(delay)
		delay *= 2
		if delay > 100*time.Millisecond {
			delay = 100 * time.Millisecond
		}
	}
	return fmt.Errorf("freeze: did not settle into %s after 10 attempts", state)
}

package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ocirun/ocirun/libcontainer/configs"
)

type fakeState struct{ payload []byte }

func (f fakeState) MarshalState() ([]byte, error) { return f.payload, nil }

func TestRunSkipsEmptyClass(t *testing.T) {
	if err := Run(configs.Poststart, configs.Hooks{}, fakeState{[]byte("{}")}); err != nil {
		t.Fatalf("Run with no registered hooks should be a no-op, got %v", err)
	}
}

func TestRunFatalClassReturnsError(t *testing.T) {
	all := configs.Hooks{
		configs.Prestart: []configs.Hook{{Path: "/bin/sh", Args: []string{"/bin/sh", "-c", "exit 1"}}},
	}
	if err := Run(configs.Prestart, all, fakeState{[]byte("{}")}); err == nil {
		t.Fatal("expected Prestart hook failure to be fatal")
	}
}

func TestRunNonFatalClassIsLoggedNotReturned(t *testing.T) {
	all := configs.Hooks{
		configs.Poststop: []configs.Hook{{Path: "/bin/sh", Args: []string{"/bin/sh", "-c", "exit 1"}}},
	}
	if err := Run(configs.Poststop, all, fakeState{[]byte("{}")}); err != nil {
		t.Fatalf("expected Poststop hook failure to be swallowed, got %v", err)
	}
}

func TestRunStopsAtFirstFatalFailure(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "second-ran")
	all := configs.Hooks{
		configs.CreateRuntime: []configs.Hook{
			{Path: "/bin/sh", Args: []string{"/bin/sh", "-c", "exit 1"}},
			{Path: "/bin/sh", Args: []string{"/bin/sh", "-c", "touch " + marker}},
		},
	}
	if err := Run(configs.CreateRuntime, all, fakeState{[]byte("{}")}); err == nil {
		t.Fatal("expected the first hook's failure to be reported")
	}
	if _, err := os.Stat(marker); err == nil {
		t.Fatal("expected the second hook not to run after the first one failed")
	}
}

func TestRunPassesStateOnStdin(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "captured")
	all := configs.Hooks{
		configs.CreateContainer: []configs.Hook{
			{Path: "/bin/sh", Args: []string{"/bin/sh", "-c", "cat > " + out}},
		},
	}
	payload := []byte(`{"id":"test-container"}`)
	if err := Run(configs.CreateContainer, all, fakeState{payload}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading captured stdin: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("captured stdin = %q, want %q", got, payload)
	}
}

func TestRunTimeout(t *testing.T) {
	all := configs.Hooks{
		configs.StartContainer: []configs.Hook{
			{Path: "/bin/sh", Args: []string{"/bin/sh", "-c", "sleep 5"}, Timeout: 1},
		},
	}
	if err := Run(configs.StartContainer, all, fakeState{[]byte("{}")}); err == nil {
		t.Fatal("expected a timeout error for a hook exceeding its deadline")
	}
}

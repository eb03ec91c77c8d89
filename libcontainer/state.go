package libcontainer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ocirun/ocirun/libcontainer/configs"
	"github.com/ocirun/ocirun/libcontainer/system"
)

// Status is one of the five container lifecycle states of spec §3.
type Status string

const (
	StatusCreating Status = "creating"
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusStopped  Status = "stopped"
)

// transitions enumerates every legal (from, trigger) edge of spec §4.I.
// Anything not listed here is rejected by Container.transition.
var transitions = map[Status]map[string]Status{
	StatusCreating: {"ready": StatusCreated},
	StatusCreated:  {"start": StatusRunning, "kill": StatusStopped},
	StatusRunning:  {"exit": StatusStopped, "kill": StatusStopped, "pause": StatusPaused},
	StatusPaused:   {"resume": StatusRunning, "kill": StatusStopped},
	StatusStopped:  {},
}

// UsedNamespace records one namespace the container entered, for state
// reporting and for exec's "join the same namespaces" path.
type UsedNamespace struct {
	Type configs.NamespaceType `json:"type"`
	Path string                `json:"host_path"`
}

// State is the on-disk container record of spec §3, persisted at
// <root>/<id>/state.json.
type State struct {
	ID             string            `json:"id"`
	Status         Status            `json:"status"`
	Pid            int               `json:"pid"`
	PidStartTime   uint64            `json:"pid_start_time,omitempty"`
	Bundle         string            `json:"bundle"`
	Annotations    map[string]string `json:"annotations,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UsedNamespaces []UsedNamespace   `json:"used_namespaces,omitempty"`
	CleanPaths     []string          `json:"clean_paths,omitempty"`
	CgroupPaths    map[string]string `json:"cgroup_paths,omitempty"`
	Cgroup         *configs.Cgroup   `json:"cgroup,omitempty"`
	IntelRdt       *configs.IntelRdt `json:"intel_rdt,omitempty"`
	ConsoleSocket  string            `json:"console_socket,omitempty"`
	Rootless       bool              `json:"rootless,omitempty"`
}

// OCIState is the JSON object the `state` subcommand and hook stdin emit
// (spec §6/§4.J): a narrower, OCI-shaped view of State.
type OCIState struct {
	OCIVersion  string            `json:"ociVersion"`
	ID          string            `json:"id"`
	Status      Status            `json:"status"`
	Pid         int               `json:"pid,omitempty"`
	Bundle      string            `json:"bundle"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

const ociVersion = "1.0.2"

func (s *State) toOCIState() *OCIState {
	return &OCIState{
		OCIVersion:  ociVersion,
		ID:          s.ID,
		Status:      s.Status,
		Pid:         s.Pid,
		Bundle:      s.Bundle,
		Annotations: s.Annotations,
	}
}

// stateDir returns <root>/<id>.
func stateDir(root, id string) string {
	return filepath.Join(root, id)
}

func statePath(root, id string) string {
	return filepath.Join(stateDir(root, id), "state.json")
}

// validateID enforces spec §3's id charset and spec §8's boundary cases.
func validateID(id string) error {
	if id == "" {
		return newError(ConfigInvalid, "container id must not be empty")
	}
	if len(id) > 255 {
		return newError(ConfigInvalid, "container id must not exceed 255 bytes")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '+' || r == '-' || r == '.':
		default:
			return newErrorf(ConfigInvalid, "container id contains invalid character %q", r)
		}
	}
	return nil
}

// saveState persists s atomically: write to state.json.tmp, fsync, rename
// (spec §4.G). The rename is the release point spec §5 describes: a
// concurrent `state` reader sees either the old file (absent on first
// create) or the complete new one, never a partial write.
func saveState(root string, s *State) error {
	dir := stateDir(root, s.ID)
	tmp := filepath.Join(dir, "state.json.tmp")
	final := filepath.Join(dir, "state.json")

	data, err := json.MarshalIndent(s, "", "\t")
	if err != nil {
		return wrapError(ConfigInvalid, err, "marshaling state")
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return newSystemErrorWithCause(err, "opening state.json.tmp")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return newSystemErrorWithCause(err, "writing state.json.tmp")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return newSystemErrorWithCause(err, "fsyncing state.json.tmp")
	}
	if err := f.Close(); err != nil {
		return newSystemErrorWithCause(err, "closing state.json.tmp")
	}
	if err := os.Rename(tmp, final); err != nil {
		return newSystemErrorWithCause(err, "renaming state.json.tmp")
	}
	return nil
}

// loadState reads and validates a container's on-disk record. NotFound is
// returned verbatim so callers (e.g. `state`) can distinguish it from
// other I/O errors.
func loadState(root, id string) (*State, error) {
	data, err := os.ReadFile(statePath(root, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newErrorf(NotFound, "container %q does not exist", id)
		}
		return nil, newSystemErrorWithCause(err, "reading state.json")
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, wrapError(ConfigInvalid, err, "parsing state.json")
	}
	return &s, nil
}

// isAlive verifies the state's invariant "status=running implies pid is
// alive and was ours" by comparing /proc/<pid>/stat's start time against
// the fingerprint stored at create time (spec §3), so pid recycling can
// never fool a caller into signalling an unrelated process.
func (s *State) isAlive() bool {
	if s.Pid <= 0 {
		return false
	}
	if err := unix.Kill(s.Pid, 0); err != nil {
		return false
	}
	st, err := system.Stat(s.Pid)
	if err != nil {
		return false
	}
	return st.StartTime == s.PidStartTime
}

// transition validates and applies a state-machine edge per spec §4.I;
// callers must hold the exclusive state-directory flock before calling.
func (s *State) transition(trigger string) error {
	next, ok := transitions[s.Status][trigger]
	if !ok {
		return newErrorf(ConfigInvalid, "invalid transition %q from state %q", trigger, s.Status)
	}
	s.Status = next
	return nil
}

func listContainers(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newSystemErrorWithCause(err, "reading state root")
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(statePath(root, e.Name())); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func ensureStateDir(root, id string, rootless bool) error {
	dir := stateDir(root, id)
	mode := os.FileMode(0711)
	if rootless {
		mode = 0700
	}
	if _, err := os.Stat(dir); err == nil {
		return newErrorf(AlreadyExists, "container %q already exists", id)
	}
	if err := os.MkdirAll(dir, mode); err != nil {
		return newSystemErrorWithCause(err, "creating state directory")
	}
	return nil
}

func removeStateDir(root, id string) error {
	dir := stateDir(root, id)
	if err := os.RemoveAll(dir); err != nil {
		return newSystemErrorWithCause(err, "removing state directory")
	}
	return nil
}

func fmtStateJSON(s *State) ([]byte, error) {
	return json.MarshalIndent(s.toOCIState(), "", "\t")
}

// MarshalState renders s as the OCI state JSON object a hook receives on
// its stdin (spec §4.J), satisfying hooks.StateJSON.
func (s *State) MarshalState() ([]byte, error) {
	return fmtStateJSON(s)
}

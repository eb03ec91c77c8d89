package configs

// Seccomp is the resolved seccomp profile. Compiling it into a BPF program
// is explicitly out of scope (spec §1); this struct is the typed payload
// handed to a SeccompInstaller at the process-pipeline boundary (see
// libcontainer/seccomp).
type Seccomp struct {
	DefaultAction string
	Architectures []string
	Syscalls      []SeccompSyscall
}

type SeccompSyscall struct {
	Names  []string
	Action string
	Args   []SeccompArg
}

type SeccompArg struct {
	Index    uint
	Value    uint64
	ValueTwo uint64
	Op       string
}

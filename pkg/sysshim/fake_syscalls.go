package sysshim

import "sync"

// Call records one invocation made through a Fake.
type Call struct {
	Name string
	Args []interface{}
}

// Fake is an in-memory Syscalls implementation that records every call and
// lets tests script failures per call name.
type Fake struct {
	Euid int
	Egid int

	// Fail, when set for a call name, is returned instead of nil.
	Fail map[string]error

	mu    sync.Mutex
	calls []Call
}

var _ Syscalls = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{Fail: map[string]error{}}
}

func (f *Fake) record(name string, args ...interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: args})
	err := f.Fail[name]
	f.mu.Unlock()
	return err
}

// Calls returns a snapshot of every recorded call, in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) Chown(path string, uid, gid int) error {
	return f.record("chown", path, uid, gid)
}

func (f *Fake) Chmod(path string, mode uint32) error {
	return f.record("chmod", path, mode)
}

func (f *Fake) MknodDevice(path string, kind DeviceType, mode uint32, major, minor uint32) error {
	return f.record("mknod", path, kind, mode, major, minor)
}

func (f *Fake) Mkfifo(path string, mode uint32) error {
	return f.record("mkfifo", path, mode)
}

func (f *Fake) Kill(pid int, signal int) error {
	return f.record("kill", pid, signal)
}

func (f *Fake) Geteuid() int { return f.Euid }

func (f *Fake) Getegid() int { return f.Egid }

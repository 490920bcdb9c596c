// Package sysshim narrows the Linux syscalls the jailed executor needs —
// device-node creation, ownership/permission changes, signal delivery, FIFO
// creation, and the calling process's effective uid/gid — behind a small
// interface. Production code uses the golang.org/x/sys/unix-backed
// implementation; tests use the recording fake.
package sysshim

import "fmt"

// DeviceType distinguishes the device node kinds the jailed executor creates
// under a chroot (/dev/null, /dev/kvm, /dev/net/tun, /dev/urandom, ...).
type DeviceType int

const (
	CharDevice DeviceType = iota
	BlockDevice
)

// SyscallError wraps a failed syscall with its errno, matching the errno
// values golang.org/x/sys/unix returns.
type SyscallError struct {
	Call  string
	Errno int
	Err   error
}

func (e *SyscallError) Error() string {
	return fmt.Sprintf("sysshim: %s: %v (errno %d)", e.Call, e.Err, e.Errno)
}

func (e *SyscallError) Unwrap() error { return e.Err }

// Syscalls is the capability surface the jailed executor and process
// spawner use instead of calling syscall.* or golang.org/x/sys/unix
// directly.
type Syscalls interface {
	// Chown changes the owner and group of path. Either may be -1 to leave
	// it unchanged.
	Chown(path string, uid, gid int) error
	// Chmod changes path's permission bits.
	Chmod(path string, mode uint32) error
	// MknodDevice creates a device node at path with the given type and
	// major/minor numbers.
	MknodDevice(path string, kind DeviceType, mode uint32, major, minor uint32) error
	// Mkfifo creates a named pipe at path.
	Mkfifo(path string, mode uint32) error
	// Kill sends signal to pid.
	Kill(pid int, signal int) error
	// Geteuid returns the calling process's effective user ID.
	Geteuid() int
	// Getegid returns the calling process's effective group ID.
	Getegid() int
}

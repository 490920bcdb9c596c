package sysshim

import (
	"golang.org/x/sys/unix"
)

// UnixSyscalls implements Syscalls on top of golang.org/x/sys/unix. It is
// the backend used outside of tests.
type UnixSyscalls struct{}

var _ Syscalls = UnixSyscalls{}

func wrap(call string, err error) error {
	if err == nil {
		return nil
	}
	errno, _ := err.(unix.Errno)
	return &SyscallError{Call: call, Errno: int(errno), Err: err}
}

func (UnixSyscalls) Chown(path string, uid, gid int) error {
	return wrap("chown", unix.Chown(path, uid, gid))
}

func (UnixSyscalls) Chmod(path string, mode uint32) error {
	return wrap("chmod", unix.Chmod(path, mode))
}

func (UnixSyscalls) MknodDevice(path string, kind DeviceType, mode uint32, major, minor uint32) error {
	var fileType uint32
	switch kind {
	case CharDevice:
		fileType = unix.S_IFCHR
	case BlockDevice:
		fileType = unix.S_IFBLK
	}
	dev := unix.Mkdev(major, minor)
	return wrap("mknod", unix.Mknod(path, fileType|mode, int(dev)))
}

func (UnixSyscalls) Mkfifo(path string, mode uint32) error {
	return wrap("mkfifo", unix.Mkfifo(path, mode))
}

func (UnixSyscalls) Kill(pid int, signal int) error {
	return wrap("kill", unix.Kill(pid, unix.Signal(signal)))
}

func (UnixSyscalls) Geteuid() int { return unix.Geteuid() }

func (UnixSyscalls) Getegid() int { return unix.Getegid() }

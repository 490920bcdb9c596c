package sysshim

import (
	"errors"
	"testing"
)

func TestFakeRecordsCalls(t *testing.T) {
	fake := NewFake()
	fake.Euid = 1000
	fake.Egid = 1000

	if err := fake.Chown("/jail/root/drive.img", 1000, 1000); err != nil {
		t.Fatalf("Chown: %v", err)
	}
	if err := fake.MknodDevice("/jail/root/dev/kvm", CharDevice, 0o660, 10, 232); err != nil {
		t.Fatalf("MknodDevice: %v", err)
	}

	calls := fake.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "chown" || calls[1].Name != "mknod" {
		t.Fatalf("unexpected call order: %+v", calls)
	}
	if fake.Geteuid() != 1000 || fake.Getegid() != 1000 {
		t.Fatalf("unexpected euid/egid: %d/%d", fake.Geteuid(), fake.Getegid())
	}
}

func TestFakeFailScripting(t *testing.T) {
	fake := NewFake()
	wantErr := &SyscallError{Call: "mknod", Errno: 1, Err: errors.New("permission denied")}
	fake.Fail["mknod"] = wantErr

	if err := fake.MknodDevice("/dev/kvm", CharDevice, 0o660, 10, 232); err != wantErr {
		t.Fatalf("expected scripted error, got %v", err)
	}
	if err := fake.Chown("/dev/kvm", 0, 0); err != nil {
		t.Fatalf("unscripted call should not fail: %v", err)
	}
}

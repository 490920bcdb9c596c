package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestUnrestrictedPrepareCreatesOutputDirsAndRemovesStale(t *testing.T) {
	dir := t.TempDir()
	rt := runtimeshim.NewMultiThreaded(0)

	socketPath := filepath.Join(dir, "run", "fc.sock")
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(socketPath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	args := vmm.VmmArguments{APISocketPath: socketPath, Seccomp: vmm.SeccompNone()}
	exec := NewUnrestricted(args, spawner.Direct{}, testLog())

	err := exec.Prepare(context.Background(), rt, nil, vmm.VmmInstallation{}, []ResourceSpec{
		{OuterPath: socketPath, Role: RoleOutput},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatalf("expected stale socket removed, stat err=%v", err)
	}
}

func TestUnrestrictedPrepareMissingInputFails(t *testing.T) {
	dir := t.TempDir()
	rt := runtimeshim.NewMultiThreaded(0)

	args := vmm.VmmArguments{APISocketPath: filepath.Join(dir, "fc.sock")}
	exec := NewUnrestricted(args, spawner.Direct{}, testLog())

	err := exec.Prepare(context.Background(), rt, nil, vmm.VmmInstallation{}, []ResourceSpec{
		{OuterPath: filepath.Join(dir, "absent-kernel"), Role: RoleInput},
	})
	if err == nil {
		t.Fatal("expected ExecutorError for missing input")
	}
	execErr, ok := err.(*ExecutorError)
	if !ok {
		t.Fatalf("expected *ExecutorError, got %T", err)
	}
	if execErr.Phase != PhaseErrPrepare || execErr.PrepareKind != PrepareMissingInput {
		t.Fatalf("unexpected error shape: %+v", execErr)
	}
}

func TestUnrestrictedDoublePrepareFails(t *testing.T) {
	dir := t.TempDir()
	rt := runtimeshim.NewMultiThreaded(0)

	args := vmm.VmmArguments{APISocketPath: filepath.Join(dir, "fc.sock")}
	exec := NewUnrestricted(args, spawner.Direct{}, testLog())

	if err := exec.Prepare(context.Background(), rt, nil, vmm.VmmInstallation{}, nil); err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	exec.phase = PhaseRunning // simulate invoke having happened

	err := exec.Prepare(context.Background(), rt, nil, vmm.VmmInstallation{}, nil)
	if err == nil {
		t.Fatal("expected ExecutorError{IncorrectState} on double prepare")
	}
	execErr, ok := err.(*ExecutorError)
	if !ok || execErr.Phase != PhaseErrIncorrectState {
		t.Fatalf("unexpected error: %+v (%T)", err, err)
	}
}

func TestUnrestrictedCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	rt := runtimeshim.NewMultiThreaded(0)

	args := vmm.VmmArguments{APISocketPath: filepath.Join(dir, "fc.sock")}
	exec := NewUnrestricted(args, spawner.Direct{}, testLog())
	exec.phase = PhaseCleanedUp

	if err := exec.Cleanup(context.Background(), rt, nil, vmm.VmmInstallation{}); err != nil {
		t.Fatalf("expected no-op cleanup, got %v", err)
	}
}

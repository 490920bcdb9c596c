package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/executor"
	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

func testLog() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

// stubFirecracker returns the path of the system `sleep` binary, which
// stands in for Firecracker in process-layer tests: it sleeps until killed.
// It never opens the API socket, so tests that exercise SendAPIRequest rely
// on ApiSocketTimeout.
func stubFirecracker(t *testing.T, dir string) string {
	t.Helper()
	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("no `sleep` binary on PATH")
	}
	return sleepPath
}

// newTestProcess builds a VmmProcess already in StateStarted, wrapping a
// real `sleep 30` child in place of Firecracker, without exercising
// Unrestricted.Invoke's argv construction (which expects Firecracker's own
// flags, not sleep's).
func newTestProcess(t *testing.T) *VmmProcess {
	t.Helper()
	dir := t.TempDir()
	sleepPath := stubFirecracker(t, dir)

	rt := runtimeshim.NewMultiThreaded(0)
	sp := spawner.New(rt, testLog())
	socketPath := filepath.Join(dir, "fc.sock")

	args := vmm.VmmArguments{APISocketPath: socketPath}
	exec := executor.NewUnrestricted(args, spawner.Direct{}, testLog())

	child, err := sp.Spawn(context.Background(), sleepPath, []string{"30"}, os.Environ(), spawner.PipesNeeded{}, spawner.Direct{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	p := New(exec, rt, sp, vmm.VmmInstallation{FirecrackerPath: sleepPath}, testLog())
	p.state = StateStarted
	p.running = &executor.RunningHandle{PID: child.PID(), Child: child, APISocket: socketPath}
	p.httpClient = rt.DialUnixHTTP(socketPath)
	return p
}

func TestProcessWrongStateBeforeInvoke(t *testing.T) {
	dir := t.TempDir()
	rt := runtimeshim.NewMultiThreaded(0)
	sp := spawner.New(rt, testLog())
	args := vmm.VmmArguments{APISocketPath: filepath.Join(dir, "fc.sock")}
	exec := executor.NewUnrestricted(args, spawner.Direct{}, testLog())

	p := New(exec, rt, sp, vmm.VmmInstallation{}, testLog())

	_, _, err := p.SendAPIRequest(context.Background(), "GET", "/", nil)
	if err == nil {
		t.Fatal("expected ProcessError{WrongState} before Invoke")
	}
	procErr, ok := err.(*ProcessError)
	if !ok || procErr.Kind != ErrWrongState {
		t.Fatalf("unexpected error: %+v (%T)", err, err)
	}
}

func TestProcessDoubleCleanupIsNoop(t *testing.T) {
	dir := t.TempDir()
	rt := runtimeshim.NewMultiThreaded(0)
	sp := spawner.New(rt, testLog())
	args := vmm.VmmArguments{APISocketPath: filepath.Join(dir, "fc.sock")}
	exec := executor.NewUnrestricted(args, spawner.Direct{}, testLog())

	p := New(exec, rt, sp, vmm.VmmInstallation{}, testLog())
	p.state = StateExited

	if err := p.Cleanup(context.Background()); err != nil {
		t.Fatalf("first Cleanup: %v", err)
	}
	if err := p.Cleanup(context.Background()); err != nil {
		t.Fatalf("expected idempotent second Cleanup, got %v", err)
	}
}

func TestProcessCleanupFromAwaitingFails(t *testing.T) {
	dir := t.TempDir()
	rt := runtimeshim.NewMultiThreaded(0)
	sp := spawner.New(rt, testLog())
	args := vmm.VmmArguments{APISocketPath: filepath.Join(dir, "fc.sock")}
	exec := executor.NewUnrestricted(args, spawner.Direct{}, testLog())

	p := New(exec, rt, sp, vmm.VmmInstallation{}, testLog())

	if err := p.Cleanup(context.Background()); err == nil {
		t.Fatal("expected ProcessError{WrongState} cleaning up from Awaiting")
	}
}

func TestShutdownKillEscalation(t *testing.T) {
	p := newTestProcess(t)

	err := p.Shutdown(context.Background(), []ShutdownMethod{Kill(os.Interrupt), Kill(os.Kill)}, 2*time.Second)
	if err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if p.State() != StateExited {
		t.Fatalf("expected StateExited, got %s", p.State())
	}
}

func TestApiSocketTimeoutFires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow 10s backoff-budget test in short mode")
	}
	p := newTestProcess(t)
	defer func() {
		_ = p.Shutdown(context.Background(), []ShutdownMethod{Kill(os.Kill)}, time.Second)
	}()

	_, _, err := p.SendAPIRequest(context.Background(), "GET", "/", nil)
	if err == nil {
		t.Fatal("expected ApiSocketTimeout since the stub never opens the socket")
	}
	procErr, ok := err.(*ProcessError)
	if !ok || procErr.Kind != ErrAPISocketTimeout {
		t.Fatalf("unexpected error: %+v (%T)", err, err)
	}
}

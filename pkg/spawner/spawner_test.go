package spawner

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return logrus.NewEntry(logger)
}

func TestSpawnDirect(t *testing.T) {
	rt := runtimeshim.NewMultiThreaded(0)
	s := New(rt, testLog())

	binary, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no `true` binary on PATH")
	}

	child, err := s.Spawn(context.Background(), binary, nil, os.Environ(), PipesNeeded{}, Direct{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	status, err := child.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", status.ExitCode)
	}
}

func TestSpawnBinaryMissing(t *testing.T) {
	rt := runtimeshim.NewMultiThreaded(0)
	s := New(rt, testLog())

	_, err := s.Spawn(context.Background(), "/nonexistent/firecracker", nil, nil, PipesNeeded{}, Direct{})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	spawnErr, ok := err.(*SpawnError)
	if !ok {
		t.Fatalf("expected *SpawnError, got %T", err)
	}
	if spawnErr.Kind != BinaryMissing {
		t.Fatalf("expected BinaryMissing, got %v", spawnErr.Kind)
	}
}

func TestSpawnElevatorMissing(t *testing.T) {
	rt := runtimeshim.NewMultiThreaded(0)
	s := New(rt, testLog())

	binary, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no `true` binary on PATH")
	}

	_, err = s.Spawn(context.Background(), binary, nil, nil, PipesNeeded{}, SudoLike{ElevatorPath: "/nonexistent/sudo"})
	if err == nil {
		t.Fatal("expected error for missing elevator")
	}
	spawnErr, ok := err.(*SpawnError)
	if !ok {
		t.Fatalf("expected *SpawnError, got %T", err)
	}
	if spawnErr.Kind != ElevatorMissing {
		t.Fatalf("expected ElevatorMissing, got %v", spawnErr.Kind)
	}
}

func TestSpawnPasswordOverStdin(t *testing.T) {
	rt := runtimeshim.NewMultiThreaded(0)
	s := New(rt, testLog())

	// `cat` echoes stdin to stdout; used here as a stand-in elevator so the
	// test can assert the exact bytes written before any other stdin flows.
	// The target path is prepended to the elevator's argv, so /dev/stdin
	// makes cat read its own stdin.
	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("no `cat` binary on PATH")
	}

	child, err := s.Spawn(context.Background(), "/dev/stdin", nil, nil, PipesNeeded{Stdout: runtimeshim.StdioPipe}, PasswordOverStdin{ElevatorPath: catPath, Password: "hunter2"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if w := child.StdinWriter(); w != nil {
		_ = w.Close()
	}

	buf := make([]byte, 64)
	n, _ := child.StdoutReader().Read(buf)
	got := string(buf[:n])
	want := "hunter2\n"
	if got != want {
		t.Fatalf("expected elevator stdin to receive %q first, got %q", want, got)
	}
}

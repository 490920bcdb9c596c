// Package spawner decides how a VMM binary is launched: directly, through a
// setuid-like elevator binary (sudo, doas), or through an elevator that
// reads a password from stdin before the target program's own I/O begins.
package spawner

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
)

// SpawnErrorKind classifies why Spawn failed.
type SpawnErrorKind int

const (
	ElevatorMissing SpawnErrorKind = iota
	PasswordPromptTimeout
	BinaryMissing
	SpawnRuntimeError
)

func (k SpawnErrorKind) String() string {
	switch k {
	case ElevatorMissing:
		return "elevator_missing"
	case PasswordPromptTimeout:
		return "password_prompt_timeout"
	case BinaryMissing:
		return "binary_missing"
	case SpawnRuntimeError:
		return "runtime_error"
	default:
		return "unknown"
	}
}

// SpawnError is returned by Spawn.
type SpawnError struct {
	Kind SpawnErrorKind
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spawner: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("spawner: %s", e.Kind)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Elevation selects how the child process acquires privileges.
type Elevation interface {
	isElevation()
}

// Direct execs the binary as-is.
type Direct struct{}

func (Direct) isElevation() {}

// SudoLike execs elevatorPath with the target binary prepended, forwarding
// argv unchanged: `elevatorPath program argv...`.
type SudoLike struct {
	ElevatorPath string
}

func (SudoLike) isElevation() {}

// PasswordOverStdin execs elevatorPath the same way as SudoLike, then writes
// Password followed by a newline to its stdin before any caller-supplied
// stdin bytes flow.
type PasswordOverStdin struct {
	ElevatorPath string
	Password     string
}

func (PasswordOverStdin) isElevation() {}

// PipesNeeded mirrors runtimeshim.SpawnRequest's stdio policy selection, kept
// as its own type so callers of this package don't need to import
// runtimeshim just to express intent.
type PipesNeeded struct {
	Stdin  runtimeshim.StdioPolicy
	Stdout runtimeshim.StdioPolicy
	Stderr runtimeshim.StdioPolicy
	PTY    bool
}

// Spawner launches the VMM binary under a chosen elevation strategy.
type Spawner struct {
	runtime runtimeshim.Runtime
	log     *logrus.Entry
}

// New returns a Spawner bound to rt. log is enriched with a "component"
// field; pass logrus.NewEntry(logrus.StandardLogger()) if the caller has no
// entry of its own.
func New(rt runtimeshim.Runtime, log *logrus.Entry) *Spawner {
	return &Spawner{runtime: rt, log: log.WithField("component", "spawner")}
}

// Spawn launches binaryPath with argv and envp under elevation, wiring stdio
// per pipes.
func (s *Spawner) Spawn(ctx context.Context, binaryPath string, argv []string, envp []string, pipes PipesNeeded, elevation Elevation) (runtimeshim.ChildHandle, error) {
	if _, err := s.runtime.Metadata(ctx, binaryPath); err != nil {
		return nil, &SpawnError{Kind: BinaryMissing, Err: err}
	}

	req := runtimeshim.SpawnRequest{
		Envp:    envp,
		Stdin:   pipes.Stdin,
		Stdout:  pipes.Stdout,
		Stderr:  pipes.Stderr,
		WithPTY: pipes.PTY,
	}

	switch e := elevation.(type) {
	case Direct:
		req.Program = binaryPath
		req.Argv = argv
		s.log.WithField("binary", binaryPath).Debug("spawning directly")

	case SudoLike:
		if _, err := s.runtime.Metadata(ctx, e.ElevatorPath); err != nil {
			return nil, &SpawnError{Kind: ElevatorMissing, Err: err}
		}
		req.Program = e.ElevatorPath
		req.Argv = append([]string{binaryPath}, argv...)
		s.log.WithFields(logrus.Fields{"binary": binaryPath, "elevator": e.ElevatorPath}).Debug("spawning via sudo-like elevator")

	case PasswordOverStdin:
		if _, err := s.runtime.Metadata(ctx, e.ElevatorPath); err != nil {
			return nil, &SpawnError{Kind: ElevatorMissing, Err: err}
		}
		req.Program = e.ElevatorPath
		req.Argv = append([]string{binaryPath}, argv...)
		// The password must land on stdin before any caller I/O, so stdin is
		// always a pipe at the runtime level regardless of what the caller
		// asked for; Spawn writes the password, then closes stdin if the
		// caller did not ask for a stdin pipe.
		req.Stdin = runtimeshim.StdioPipe
		s.log.WithFields(logrus.Fields{"binary": binaryPath, "elevator": e.ElevatorPath}).Debug("spawning via password-over-stdin elevator")

	default:
		return nil, &SpawnError{Kind: SpawnRuntimeError, Err: fmt.Errorf("spawner: unknown elevation type %T", elevation)}
	}

	child, err := s.runtime.Spawn(ctx, req)
	if err != nil {
		return nil, &SpawnError{Kind: SpawnRuntimeError, Err: err}
	}

	if pw, ok := elevation.(PasswordOverStdin); ok {
		if err := writePassword(child, pw.Password); err != nil {
			_ = child.Kill(os.Kill)
			return nil, &SpawnError{Kind: PasswordPromptTimeout, Err: err}
		}
		if pipes.Stdin != runtimeshim.StdioPipe {
			// caller did not actually want a stdin pipe; close it now that
			// the password has been delivered.
			_ = child.StdinWriter().Close()
		}
	}

	return child, nil
}

func writePassword(child runtimeshim.ChildHandle, password string) error {
	w := child.StdinWriter()
	if w == nil {
		return fmt.Errorf("spawner: elevator exposed no stdin writer")
	}
	_, err := w.Write([]byte(password + "\n"))
	return err
}

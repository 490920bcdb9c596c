// Package runtimeshim defines the capability surface the rest of the SDK
// uses to perform every suspending operation: task spawning, filesystem
// access, child-process spawning, timers, and an HTTP-over-UDS connector.
//
// Nothing outside this package is allowed to call a blocking syscall
// directly. Two implementations are provided: MultiThreaded (backed by the
// Go scheduler's normal goroutine pool, giving true parallelism) and
// Cooperative (a single dedicated worker goroutine that runs one task at a
// time, modeling a single-threaded cooperative executor). Callers are
// generic over the Runtime interface and receive it as an explicit value;
// there is no global runtime handle.
package runtimeshim

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"
)

// IOErrorKind narrows an underlying I/O failure to a small, loggable set.
type IOErrorKind int

const (
	IOUnknown IOErrorKind = iota
	IONotFound
	IOPermission
	IOExist
	IOTimeout
	IOCanceled
)

// RuntimeError wraps an I/O failure observed through the shim.
type RuntimeError struct {
	Op   string
	Path string
	Kind IOErrorKind
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Path != "" {
		return "runtime: " + e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return "runtime: " + e.Op + ": " + e.Err.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func classify(err error) IOErrorKind {
	switch {
	case err == nil:
		return IOUnknown
	case os.IsNotExist(err):
		return IONotFound
	case os.IsPermission(err):
		return IOPermission
	case os.IsExist(err):
		return IOExist
	case err == context.DeadlineExceeded:
		return IOTimeout
	case err == context.Canceled:
		return IOCanceled
	default:
		return IOUnknown
	}
}

func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Op: op, Path: path, Kind: classify(err), Err: err}
}

// StdioPolicy controls how a spawned child's standard streams are wired.
type StdioPolicy int

const (
	StdioDiscard StdioPolicy = iota
	StdioPipe
	StdioInherit
)

// SpawnRequest describes a child process to launch.
type SpawnRequest struct {
	Program string
	Argv    []string
	Envp    []string
	Stdin   StdioPolicy
	Stdout  StdioPolicy
	Stderr  StdioPolicy
	// WithPTY, when set, allocates a pseudo-terminal and attaches it as the
	// child's controlling terminal in place of the stdio policies above.
	WithPTY bool
}

// ChildHandle is the runtime-owned view of a spawned process.
type ChildHandle interface {
	PID() int
	// Wait blocks (through the runtime) until the child exits.
	Wait(ctx context.Context) (*ExitStatus, error)
	// Kill sends the given signal to the child via the runtime.
	Kill(signal os.Signal) error
	StdinWriter() io.WriteCloser
	StdoutReader() io.ReadCloser
	StderrReader() io.ReadCloser
	// PTYReaderWriter is non-nil only when the child was spawned WithPTY.
	PTYReaderWriter() io.ReadWriteCloser
}

// ExitStatus records how a child process terminated.
type ExitStatus struct {
	// ExitCode is the raw exit code, meaningful when Signaled is false.
	ExitCode int
	// Signal is the terminating signal number, meaningful when Signaled is true.
	Signal int
	Signaled bool
	// StderrTail holds up to the last 4096 stderr bytes read through the
	// child's StderrReader; stderr output that was never read is not
	// included.
	StderrTail []byte
}

// JoinHandle represents a spawned, awaitable task.
type JoinHandle interface {
	// Join blocks until the task completes or ctx is canceled. Canceling ctx
	// best-effort cancels the task itself.
	Join(ctx context.Context) error
	// Cancel requests cancellation without waiting for completion.
	Cancel()
}

// HTTPClient performs a single opaque request/response round trip over a
// connection the runtime owns (typically a Unix domain stream socket).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
	Close() error
}

// Runtime is the capability surface every other package in this module is
// generic over.
type Runtime interface {
	// SpawnTask runs fn in the background; errors are not observable.
	SpawnTask(fn func(context.Context))
	// SpawnJoinable runs fn in the background and returns a handle that
	// observes its completion.
	SpawnJoinable(fn func(context.Context) error) JoinHandle

	ReadToBytes(ctx context.Context, path string) ([]byte, error)
	WriteAll(ctx context.Context, path string, data []byte, perm os.FileMode) error
	CreateDirAll(ctx context.Context, path string, perm os.FileMode) error
	RemoveFile(ctx context.Context, path string) error
	RemoveDirAll(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Copy(ctx context.Context, src, dst string) (int64, error)
	Symlink(ctx context.Context, target, linkPath string) error
	HardLink(ctx context.Context, src, dst string) error
	Metadata(ctx context.Context, path string) (os.FileInfo, error)
	SetPermissions(ctx context.Context, path string, perm os.FileMode) error

	Spawn(ctx context.Context, req SpawnRequest) (ChildHandle, error)

	Sleep(ctx context.Context, d time.Duration) error
	// Timeout runs fn and returns its error, or RuntimeError{Kind: IOTimeout}
	// if d elapses first.
	Timeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error

	// DialUnixHTTP returns an HTTPClient that issues HTTP/1.1 requests over a
	// Unix domain stream socket at path, dialing lazily on first Do.
	DialUnixHTTP(socketPath string) HTTPClient

	// ProbeUnixSocket attempts a single connect-and-close against a Unix
	// domain stream socket at path, routed through the runtime the same way
	// every other blocking call in this interface is. Callers polling for a
	// socket to appear (process.waitForSocket) use this instead of dialing
	// directly so Cooperative still serializes the probe onto its one
	// worker goroutine.
	ProbeUnixSocket(ctx context.Context, path string) error
}

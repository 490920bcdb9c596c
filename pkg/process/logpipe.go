package process

import (
	"context"
	"fmt"
	"syscall"

	"github.com/containerd/fifo"
	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/sysshim"
)

// LogTail streams Firecracker's structured log output from a named pipe.
// Firecracker writes to log_path as a plain file only if the path already
// exists as a regular file; pointed at a FIFO it streams log lines as they
// happen, which is what LogTail is for.
type LogTail struct {
	path string
	rd   *fifo.F
}

// OpenLogTail creates path as a FIFO (via sys) if it doesn't already exist,
// then opens it for reading. The open is non-blocking: it returns without
// waiting for a writer, and reads block until Firecracker opens log_path for
// writing. Call it before Firecracker starts so the FIFO is in place when
// Firecracker opens log_path.
func OpenLogTail(ctx context.Context, sys sysshim.Syscalls, path string) (*LogTail, error) {
	if err := sys.Mkfifo(path, 0o600); err != nil {
		if !isExistError(err) {
			return nil, fmt.Errorf("logtail: mkfifo %s: %w", path, err)
		}
	}

	rd, err := fifo.OpenFifo(ctx, path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("logtail: open %s: %w", path, err)
	}
	return &LogTail{path: path, rd: rd}, nil
}

// Pump copies every line read from the FIFO into log as a debug-level
// entry, until ctx is cancelled or the pipe is closed. It is meant to run
// in its own goroutine.
func (t *LogTail) Pump(ctx context.Context, log *logrus.Entry) {
	// Closing the FIFO on cancellation unblocks a Read waiting for data.
	stop := context.AfterFunc(ctx, func() { _ = t.rd.Close() })
	defer stop()

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := t.rd.Read(buf)
		if n > 0 {
			log.WithField("source", t.path).Debug(string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// Close releases the underlying FIFO file descriptor.
func (t *LogTail) Close() error {
	return t.rd.Close()
}

func isExistError(err error) bool {
	var sysErr *sysshim.SyscallError
	if se, ok := err.(*sysshim.SyscallError); ok {
		sysErr = se
	}
	return sysErr != nil && sysErr.Errno == int(syscall.EEXIST)
}

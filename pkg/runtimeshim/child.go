package runtimeshim

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

const stderrTailCap = 4096

type execChild struct {
	cmd  *exec.Cmd
	run  run
	ptmx *os.File

	stdinW  io.WriteCloser
	stdoutR io.ReadCloser
	stderrR io.ReadCloser

	tailMu sync.Mutex
	tail   *bytes.Buffer
}

func (f fsops) Spawn(ctx context.Context, req SpawnRequest) (ChildHandle, error) {
	cmd := exec.CommandContext(ctx, req.Program, req.Argv...)
	cmd.Env = req.Envp

	c := &execChild{cmd: cmd, run: f.run, tail: bytes.NewBuffer(nil)}

	if req.WithPTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return nil, wrapErr("spawn_pty", req.Program, err)
		}
		c.ptmx = ptmx
		return c, nil
	}

	if req.Stdin == StdioPipe {
		w, err := cmd.StdinPipe()
		if err != nil {
			return nil, wrapErr("spawn_stdin", req.Program, err)
		}
		c.stdinW = w
	} else if req.Stdin == StdioInherit {
		cmd.Stdin = os.Stdin
	}

	if req.Stdout == StdioPipe {
		r, err := cmd.StdoutPipe()
		if err != nil {
			return nil, wrapErr("spawn_stdout", req.Program, err)
		}
		c.stdoutR = r
	} else if req.Stdout == StdioInherit {
		cmd.Stdout = os.Stdout
	}

	if req.Stderr == StdioPipe {
		r, err := cmd.StderrPipe()
		if err != nil {
			return nil, wrapErr("spawn_stderr", req.Program, err)
		}
		c.stderrR = &teeReadCloser{ReadCloser: r, tee: &tailWriter{c: c}}
	} else if req.Stderr == StdioInherit {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, wrapErr("spawn", req.Program, err)
	}
	return c, nil
}

// teeReadCloser mirrors every read into the child's stderr tail buffer so
// Wait can report the most recent stderr bytes the caller has read through
// StderrReader. Bytes the caller never reads are not captured.
type teeReadCloser struct {
	io.ReadCloser
	tee io.Writer
}

func (t *teeReadCloser) Read(p []byte) (int, error) {
	n, err := t.ReadCloser.Read(p)
	if n > 0 {
		t.tee.Write(p[:n])
	}
	return n, err
}

type tailWriter struct{ c *execChild }

func (t *tailWriter) Write(p []byte) (int, error) {
	t.c.tailMu.Lock()
	defer t.c.tailMu.Unlock()
	t.c.tail.Write(p)
	if t.c.tail.Len() > stderrTailCap {
		excess := t.c.tail.Len() - stderrTailCap
		t.c.tail.Next(excess)
	}
	return len(p), nil
}

func (c *execChild) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *execChild) Wait(ctx context.Context) (*ExitStatus, error) {
	var status *ExitStatus
	err := c.run(ctx, func(context.Context) error {
		waitErr := c.cmd.Wait()

		status = &ExitStatus{}
		c.tailMu.Lock()
		status.StderrTail = append([]byte(nil), c.tail.Bytes()...)
		c.tailMu.Unlock()

		if waitErr == nil {
			status.ExitCode = 0
			return nil
		}
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				status.Signaled = true
				status.Signal = int(ws.Signal())
			}
			status.ExitCode = exitErr.ExitCode()
			return nil
		}
		return wrapErr("wait", c.cmd.Path, waitErr)
	})
	return status, err
}

func (c *execChild) Kill(signal os.Signal) error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Signal(signal)
}

func (c *execChild) StdinWriter() io.WriteCloser {
	if c.ptmx != nil {
		return c.ptmx
	}
	return c.stdinW
}

func (c *execChild) StdoutReader() io.ReadCloser {
	if c.ptmx != nil {
		return c.ptmx
	}
	return c.stdoutR
}

func (c *execChild) StderrReader() io.ReadCloser { return c.stderrR }

func (c *execChild) PTYReaderWriter() io.ReadWriteCloser {
	if c.ptmx == nil {
		return nil
	}
	return c.ptmx
}

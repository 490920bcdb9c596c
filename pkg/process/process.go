package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/executor"
	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

// ctrlAltDelBody is Firecracker's fixed request body for a CtrlAltDel
// action.
const ctrlAltDelBody = `{"action_type": "SendCtrlAltDel"}`

// VmmProcess is the runtime-agnostic harness around a single executor's
// running child: it owns the HTTP client to the API socket, the stdio/PTY
// readers, and shutdown orchestration. It never interprets API request or
// response bodies.
type VmmProcess struct {
	mu sync.Mutex

	exec         executor.VmmExecutor
	rt           runtimeshim.Runtime
	sp           *spawner.Spawner
	installation vmm.VmmInstallation
	log          *logrus.Entry

	state State

	running    *executor.RunningHandle
	httpClient runtimeshim.HTTPClient

	pipesTaken  bool
	crashReason CrashReason
	exitStatus  *runtimeshim.ExitStatus
}

// New wraps exec, still in executor phase Prepared, as a new process in
// StateAwaiting.
func New(exec executor.VmmExecutor, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation, log *logrus.Entry) *VmmProcess {
	return &VmmProcess{
		exec:         exec,
		rt:           rt,
		sp:           sp,
		installation: installation,
		log:          log.WithField("component", "process"),
		state:        StateAwaiting,
	}
}

func (p *VmmProcess) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Prepare delegates to the underlying executor's Prepare.
func (p *VmmProcess) Prepare(ctx context.Context, resources []executor.ResourceSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateAwaiting {
		return wrongState(StateAwaiting, p.state)
	}
	return p.exec.Prepare(ctx, p.rt, p.sp, p.installation, resources)
}

// Invoke transitions the executor to Running and this process to Started,
// constructing (but not yet using) the API client.
func (p *VmmProcess) Invoke(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateAwaiting {
		return wrongState(StateAwaiting, p.state)
	}

	running, err := p.exec.Invoke(ctx, p.rt, p.sp, p.installation)
	if err != nil {
		return err
	}

	p.running = running
	p.httpClient = p.rt.DialUnixHTTP(running.APISocket)
	p.state = StateStarted
	p.log.WithField("pid", running.PID).Info("process started")
	return nil
}

// SendAPIRequest waits for the API socket to accept a connection (see
// waitForSocket), then forwards method/uriPath/body verbatim to
// Firecracker's API and returns the raw status and body bytes. The wait runs
// before every request; readiness is not remembered between calls.
func (p *VmmProcess) SendAPIRequest(ctx context.Context, method, uriPath string, body []byte) (int, []byte, error) {
	p.mu.Lock()
	if p.state != StateStarted {
		defer p.mu.Unlock()
		return 0, nil, wrongState(StateStarted, p.state)
	}
	client := p.httpClient
	socketPath := p.running.APISocket
	p.mu.Unlock()

	if err := waitForSocket(ctx, p.rt, socketPath); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+uriPath, bytes.NewReader(body))
	if err != nil {
		return 0, nil, &ProcessError{Kind: ErrTransport, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, &ProcessError{Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &ProcessError{Kind: ErrTransport, Err: err}
	}
	return resp.StatusCode, respBody, nil
}

// SendCtrlAltDel POSTs Firecracker's fixed CtrlAltDel action body to
// /actions.
func (p *VmmProcess) SendCtrlAltDel(ctx context.Context) (int, []byte, error) {
	return p.SendAPIRequest(ctx, http.MethodPut, "/actions", []byte(ctrlAltDelBody))
}

// pauseBody is Firecracker's fixed request body for pausing a running VM.
const pauseBody = `{"state": "Paused"}`

// Shutdown tries each method in order; a method "succeeds" if the child
// exits within timeout of that method being applied. On the last method's
// timeout, Shutdown escalates to SIGKILL and the process ends in
// StateCrashed with CrashShutdownTimeout.
func (p *VmmProcess) Shutdown(ctx context.Context, methods []ShutdownMethod, timeout time.Duration) error {
	p.mu.Lock()
	if p.state != StateStarted {
		defer p.mu.Unlock()
		return wrongState(StateStarted, p.state)
	}
	child := p.running.Child
	p.mu.Unlock()

	for i, method := range methods {
		isLast := i == len(methods)-1

		switch method.Kind {
		case MethodCtrlAltDel:
			if _, _, err := p.SendCtrlAltDel(ctx); err != nil {
				p.log.WithError(err).Warn("ctrl-alt-del request failed")
			}
		case MethodPauseThenKill:
			if _, _, err := p.SendAPIRequest(ctx, http.MethodPatch, "/vm", []byte(pauseBody)); err != nil {
				p.log.WithError(err).Warn("pause request failed")
			}
			if err := child.Kill(os.Kill); err != nil {
				p.log.WithError(err).Warn("kill after pause failed")
			}
		case MethodKill:
			if err := child.Kill(method.Signal); err != nil {
				p.log.WithError(err).Warn("kill failed")
			}
		}

		exited, status := p.waitWithTimeout(ctx, child, timeout)
		if exited {
			p.finishExited(status)
			return nil
		}

		if isLast {
			_ = child.Kill(os.Kill)
			_, status := p.waitWithTimeout(context.Background(), child, timeout)
			p.finishCrashed(CrashShutdownTimeout, status)
			return &ProcessError{Kind: ErrShutdownTimeout, Err: fmt.Errorf("shutdown method %d did not exit within %s", method.Kind, timeout)}
		}
	}

	return nil
}

func (p *VmmProcess) waitWithTimeout(ctx context.Context, child runtimeshim.ChildHandle, timeout time.Duration) (bool, *runtimeshim.ExitStatus) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := child.Wait(waitCtx)
	if err != nil {
		return false, nil
	}
	return true, status
}

func (p *VmmProcess) finishExited(status *runtimeshim.ExitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateExited
	p.exitStatus = status
}

func (p *VmmProcess) finishCrashed(reason CrashReason, status *runtimeshim.ExitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateCrashed
	p.crashReason = reason
	p.exitStatus = status
}

// ExitStatus returns the exit status recorded when the process last left
// StateStarted, or nil if it never has.
func (p *VmmProcess) ExitStatus() *runtimeshim.ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitStatus
}

// CrashReason returns why the process is in StateCrashed; meaningless
// otherwise.
func (p *VmmProcess) CrashReason() CrashReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.crashReason
}

// PipeSet is the single-consumer bundle TakePipes hands back.
type PipeSet struct {
	Stdout io.ReadCloser
	Stderr io.ReadCloser
	PTY    io.ReadWriteCloser
}

// TakePipes extracts the running child's stdout/stderr/PTY readers. It may
// only be called once; a second call returns an error.
func (p *VmmProcess) TakePipes() (*PipeSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStarted {
		return nil, wrongState(StateStarted, p.state)
	}
	if p.pipesTaken {
		return nil, fmt.Errorf("process: pipes already taken")
	}
	p.pipesTaken = true

	return &PipeSet{
		Stdout: p.running.Child.StdoutReader(),
		Stderr: p.running.Child.StderrReader(),
		PTY:    p.running.Child.PTYReaderWriter(),
	}, nil
}

// Cleanup may only be called from StateExited or StateCrashed; it delegates
// to the executor and transitions to StateCleanedUp. Calling it again is a
// no-op.
func (p *VmmProcess) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	if state == StateCleanedUp {
		return nil
	}
	if state != StateExited && state != StateCrashed {
		return wrongState(StateExited, state)
	}

	var result *multierror.Error
	if p.httpClient != nil {
		if err := p.httpClient.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := p.exec.Cleanup(ctx, p.rt, p.sp, p.installation); err != nil {
		result = multierror.Append(result, err)
	}

	p.mu.Lock()
	p.state = StateCleanedUp
	p.mu.Unlock()

	return result.ErrorOrNil()
}

// InnerToOuter and GetOuterPaths proxy the underlying executor's path
// mapping for callers (e.g. an Extension) that need to translate between
// host and jail views.
func (p *VmmProcess) InnerToOuter(inner string) (string, bool) { return p.exec.InnerToOuter(inner) }
func (p *VmmProcess) GetOuterPaths() []string                  { return p.exec.GetOuterPaths() }

// Package facade names the two external collaborators this SDK's core
// exists to serve, so their contracts are visible from the core's own
// module even though neither is implemented here: the VM façade (JSON
// templating and API sequencing above a VmmProcess) and Extensions
// (metrics parsing, vsock-over-HTTP/gRPC, link-local IPv4 assignment,
// snapshot editing) that a caller may layer on top of a Started process.
package facade

import (
	"context"
	"io"

	"github.com/pipeops/firecracker-sdk/pkg/process"
	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/sysshim"
)

// VM is the contract a higher-level VM façade fulfills on top of a
// VmmProcess: it owns boot-source/drive/network-interface templating and
// JSON (de)serialization, and sequences calls to SendAPIRequest — the core
// treats request and response bodies as opaque bytes.
type VM interface {
	Configure(ctx context.Context, process *process.VmmProcess) error
	Boot(ctx context.Context, process *process.VmmProcess) error
	Pause(ctx context.Context, process *process.VmmProcess) error
	Resume(ctx context.Context, process *process.VmmProcess) error
	Snapshot(ctx context.Context, process *process.VmmProcess, destPath string) error
}

// Extension is the contract an optional add-on fulfills: it may read a
// Started process's pipes and reach the syscall/runtime shims directly, but
// must never mutate executor state itself — only the executor mutates
// executor state.
type Extension interface {
	Name() string
	Attach(ctx context.Context, started *process.VmmProcess, rt runtimeshim.Runtime, sys sysshim.Syscalls) error
	Detach(ctx context.Context) error
}

// PipeConsumer is the narrower shape most Extensions actually need: direct
// access to one of the process's already-taken pipes (stdout, stderr, or
// the PTY), without the full Extension lifecycle.
type PipeConsumer interface {
	Consume(ctx context.Context, r io.Reader) error
}

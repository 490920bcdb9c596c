package executor

import (
	"context"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

// InputRole distinguishes a path the executor must make available for
// Firecracker to read (Input) from a path Firecracker will create at
// runtime (Output).
type InputRole int

const (
	RoleInput InputRole = iota
	RoleOutput
)

// ResourceSpec describes one outer path the executor must account for
// during Prepare: its role, and — for inputs only — how it should be
// materialized inside a jail.
type ResourceSpec struct {
	OuterPath string
	Role      InputRole
	// Move is only consulted for RoleInput resources under a jailed
	// executor; unrestricted executors ignore it entirely.
	Move vmm.ResourceMoveKind
}

// RunningHandle is what Invoke returns: the live child plus everything the
// process layer needs to drive it further.
type RunningHandle struct {
	PID         int
	Child       runtimeshim.ChildHandle
	APISocket   string // outer path to the API socket, always host-visible
	OuterPaths  []string
	PathMap     *vmm.PathMap
}

// VmmExecutor is the four-operation contract shared by Unrestricted, Jailed,
// and Either. Implementations carry their own phase as data; calling an
// operation from the wrong phase returns ExecutorError{IncorrectState}.
type VmmExecutor interface {
	// GetOuterPaths returns every outer path this executor was configured
	// with, in the order supplied to Prepare.
	GetOuterPaths() []string
	// InnerToOuter reverses the path map built during Prepare. Valid after
	// Prepare has run; returns ok=false otherwise or for unknown paths.
	InnerToOuter(inner string) (outer string, ok bool)

	Prepare(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation, resources []ResourceSpec) error
	Invoke(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) (*RunningHandle, error)
	Cleanup(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) error

	Phase() Phase
}

package executor

import (
	"context"
	"fmt"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

// Either is a tagged sum of Unrestricted and Jailed: callers that choose the
// executor flavor at runtime get one VmmExecutor value to hold onto instead
// of branching on a type themselves.
type Either struct {
	unrestricted *Unrestricted
	jailed       *Jailed
}

func FromUnrestricted(u *Unrestricted) Either { return Either{unrestricted: u} }
func FromJailed(j *Jailed) Either             { return Either{jailed: j} }

func (e Either) active() VmmExecutor {
	if e.unrestricted != nil {
		return e.unrestricted
	}
	if e.jailed != nil {
		return e.jailed
	}
	panic(fmt.Errorf("executor: Either holds neither variant"))
}

func (e Either) GetOuterPaths() []string { return e.active().GetOuterPaths() }

func (e Either) InnerToOuter(inner string) (string, bool) { return e.active().InnerToOuter(inner) }

func (e Either) Phase() Phase { return e.active().Phase() }

func (e Either) Prepare(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation, resources []ResourceSpec) error {
	return e.active().Prepare(ctx, rt, sp, installation, resources)
}

func (e Either) Invoke(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) (*RunningHandle, error) {
	return e.active().Invoke(ctx, rt, sp, installation)
}

func (e Either) Cleanup(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) error {
	return e.active().Cleanup(ctx, rt, sp, installation)
}

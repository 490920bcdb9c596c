package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

// Unrestricted launches Firecracker directly in the host filesystem: no
// path translation, inner paths are always equal to outer paths.
type Unrestricted struct {
	Arguments vmm.VmmArguments
	Elevation spawner.Elevation

	log   *logrus.Entry
	phase Phase

	outerPaths []string
	owned      []ownedArtifact
}

type ownedArtifact struct {
	path  string
	isDir bool
}

// NewUnrestricted returns a fresh Unrestricted executor in phase Prepared —
// it must still have Prepare called before Invoke.
func NewUnrestricted(args vmm.VmmArguments, elevation spawner.Elevation, log *logrus.Entry) *Unrestricted {
	return &Unrestricted{
		Arguments: args,
		Elevation: elevation,
		log:       log.WithField("component", "executor.unrestricted"),
		phase:     PhasePrepared,
	}
}

func (e *Unrestricted) Phase() Phase { return e.phase }

func (e *Unrestricted) GetOuterPaths() []string { return e.outerPaths }

// InnerToOuter returns inner unchanged when it is one of the outer paths
// given to Prepare (inner always equals outer here), and ok=false otherwise.
func (e *Unrestricted) InnerToOuter(inner string) (string, bool) {
	for _, p := range e.outerPaths {
		if p == inner {
			return p, true
		}
	}
	return "", false
}

func (e *Unrestricted) Prepare(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation, resources []ResourceSpec) error {
	if e.phase != PhasePrepared {
		return incorrectState(PhasePrepared, e.phase)
	}

	for _, res := range resources {
		e.outerPaths = append(e.outerPaths, res.OuterPath)

		switch res.Role {
		case RoleOutput:
			dir := filepath.Dir(res.OuterPath)
			if err := rt.CreateDirAll(ctx, dir, 0o755); err != nil {
				return prepareErr(PrepareIO, fmt.Errorf("create parent dir for %s: %w", res.OuterPath, err))
			}
			if err := rt.RemoveFile(ctx, res.OuterPath); err != nil {
				return prepareErr(PrepareIO, fmt.Errorf("remove stale output %s: %w", res.OuterPath, err))
			}
			e.owned = append(e.owned, ownedArtifact{path: res.OuterPath})

		case RoleInput:
			if _, err := rt.Metadata(ctx, res.OuterPath); err != nil {
				return prepareErr(PrepareMissingInput, fmt.Errorf("input %s: %w", res.OuterPath, err))
			}
		}
	}

	e.log.WithField("resources", len(resources)).Debug("unrestricted prepare complete")
	return nil
}

func (e *Unrestricted) Invoke(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) (*RunningHandle, error) {
	if e.phase != PhasePrepared {
		return nil, incorrectState(PhasePrepared, e.phase)
	}

	argv, err := e.Arguments.Build()
	if err != nil {
		return nil, invokeErr(err)
	}

	if err := rt.RemoveFile(ctx, e.Arguments.APISocketPath); err != nil {
		return nil, invokeErr(fmt.Errorf("remove stale api socket: %w", err))
	}

	child, err := sp.Spawn(ctx, installation.FirecrackerPath, argv, os.Environ(),
		spawner.PipesNeeded{Stdout: runtimeshim.StdioPipe, Stderr: runtimeshim.StdioPipe}, e.Elevation)
	if err != nil {
		return nil, invokeErr(err)
	}

	pathMap := vmm.NewPathMap()
	for _, p := range e.outerPaths {
		_ = pathMap.Add(vmm.PathMapping{Outer: p, Inner: p})
	}

	e.phase = PhaseRunning
	e.log.WithField("pid", child.PID()).Info("firecracker started")

	return &RunningHandle{
		PID:        child.PID(),
		Child:      child,
		APISocket:  e.Arguments.APISocketPath,
		OuterPaths: e.outerPaths,
		PathMap:    pathMap,
	}, nil
}

func (e *Unrestricted) Cleanup(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) error {
	if e.phase == PhaseCleanedUp {
		return nil
	}

	var firstErr error
	for _, artifact := range e.owned {
		if err := rt.RemoveFile(ctx, artifact.path); err != nil {
			e.log.WithError(err).WithField("path", artifact.path).Warn("failed to remove owned artifact")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := rt.RemoveFile(ctx, e.Arguments.APISocketPath); err != nil {
		e.log.WithError(err).Warn("failed to remove api socket")
		if firstErr == nil {
			firstErr = err
		}
	}

	e.phase = PhaseCleanedUp
	if firstErr != nil {
		return cleanupErr(CleanupPartial, firstErr)
	}
	return nil
}

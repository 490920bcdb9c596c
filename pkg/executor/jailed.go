package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/sysshim"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

// jailDevice is one character device the chroot needs to reproduce for
// Firecracker to run at all.
type jailDevice struct {
	relPath string
	mode    uint32
	major   uint32
	minor   uint32
}

var jailDevices = []jailDevice{
	{relPath: filepath.Join("dev", "null"), mode: 0o666, major: 1, minor: 3},
	{relPath: filepath.Join("dev", "kvm"), mode: 0o660, major: 10, minor: 232},
	{relPath: filepath.Join("dev", "net", "tun"), mode: 0o660, major: 10, minor: 200},
	{relPath: filepath.Join("dev", "urandom"), mode: 0o666, major: 1, minor: 9},
}

// Jailed launches Firecracker under the jailer binary inside an
// ownership-aware chroot rooted at <chroot_base>/firecracker/<jail_id>/root.
type Jailed struct {
	JailerArgs  vmm.JailerArguments
	FcArguments vmm.VmmArguments
	Ownership   vmm.VmmOwnershipModel
	Elevation   spawner.Elevation
	Syscalls    sysshim.Syscalls

	log   *logrus.Entry
	phase Phase

	chrootRoot string
	pathMap    *vmm.PathMap
	outerPaths []string

	// materialized records every resource Prepare created, in order. Cleanup
	// does not consult it: it removes the whole jail directory, and inputs
	// moved in with MoveRename are not restored to their host location.
	materialized []materializedResource
}

type materializedResource struct {
	move vmm.ResourceMoveKind
	path string
}

// NewJailed returns a fresh Jailed executor in phase Prepared.
func NewJailed(jailerArgs vmm.JailerArguments, fcArgs vmm.VmmArguments, ownership vmm.VmmOwnershipModel, elevation spawner.Elevation, sys sysshim.Syscalls, log *logrus.Entry) *Jailed {
	return &Jailed{
		JailerArgs:  jailerArgs,
		FcArguments: fcArgs,
		Ownership:   ownership,
		Elevation:   elevation,
		Syscalls:    sys,
		log:         log.WithField("component", "executor.jailed"),
		phase:       PhasePrepared,
	}
}

func (e *Jailed) Phase() Phase { return e.phase }

func (e *Jailed) GetOuterPaths() []string { return e.outerPaths }

func (e *Jailed) InnerToOuter(inner string) (string, bool) {
	if e.pathMap == nil {
		return "", false
	}
	return e.pathMap.InnerToOuter(inner)
}

func chrootRootFor(chrootBaseDir, jailID string) string {
	return filepath.Join(chrootBaseDir, "firecracker", jailID, "root")
}

func (e *Jailed) Prepare(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation, resources []ResourceSpec) error {
	if e.phase != PhasePrepared {
		return incorrectState(PhasePrepared, e.phase)
	}

	if _, err := e.JailerArgs.Build(); err != nil {
		return prepareErr(PrepareChrootSetup, err)
	}

	e.chrootRoot = chrootRootFor(chrootBaseDirOf(e.JailerArgs), e.JailerArgs.JailID())
	e.pathMap = vmm.NewPathMap()

	if err := e.setupChrootTree(ctx, rt); err != nil {
		return prepareErr(PrepareChrootSetup, err)
	}

	if err := e.setupDevices(); err != nil {
		return prepareErr(PrepareDeviceSetup, err)
	}

	for _, res := range resources {
		e.outerPaths = append(e.outerPaths, res.OuterPath)

		switch res.Role {
		case RoleInput:
			inner, err := e.materializeInput(ctx, rt, res)
			if err != nil {
				return prepareErr(PrepareResourceMove, fmt.Errorf("materialize %s: %w", res.OuterPath, err))
			}
			if err := e.pathMap.Add(vmm.PathMapping{Outer: res.OuterPath, Inner: inner}); err != nil {
				return prepareErr(PrepareResourceMove, err)
			}

		case RoleOutput:
			inner := e.innerPathFor(res.OuterPath)
			if err := rt.CreateDirAll(ctx, filepath.Dir(inner), 0o755); err != nil {
				return prepareErr(PrepareIO, fmt.Errorf("create parent dir for output %s: %w", res.OuterPath, err))
			}
			if err := e.pathMap.Add(vmm.PathMapping{Outer: res.OuterPath, Inner: inner}); err != nil {
				return prepareErr(PrepareResourceMove, err)
			}
		}
	}

	e.log.WithFields(logrus.Fields{"jail_id": e.JailerArgs.JailID(), "resources": len(resources)}).Debug("jailed prepare complete")
	return nil
}

// chrootBaseDirOf pulls the chroot base directory back out of already-built
// jailer args; JailerArguments keeps it unexported so it can be validated
// once at Build time, but the executor needs it again for path math.
func chrootBaseDirOf(args vmm.JailerArguments) string {
	argv, err := args.Build()
	if err != nil {
		return ""
	}
	for i, a := range argv {
		if a == "--chroot-base-dir" && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

func (e *Jailed) innerPathFor(outer string) string {
	// component-preserving suffix: drop the leading slash so filepath.Join
	// doesn't treat it as absolute.
	suffix := strings.TrimPrefix(outer, string(filepath.Separator))
	return filepath.Join(e.chrootRoot, suffix)
}

func (e *Jailed) setupChrootTree(ctx context.Context, rt runtimeshim.Runtime) error {
	dirs := []string{
		e.chrootRoot,
		filepath.Join(e.chrootRoot, "dev", "net"),
		filepath.Join(e.chrootRoot, "run"),
	}
	for _, dir := range dirs {
		if err := rt.CreateDirAll(ctx, dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	switch e.Ownership.Kind {
	case vmm.OwnershipShared:
		// host ownership intact, nothing to do.
	case vmm.OwnershipUpgraded, vmm.OwnershipUpgradedPermanently:
		for _, dir := range dirs {
			if err := e.Syscalls.Chown(dir, e.Ownership.UID, e.Ownership.GID); err != nil {
				return fmt.Errorf("chown %s: %w", dir, err)
			}
		}
		if e.Ownership.Kind == vmm.OwnershipUpgradedPermanently {
			for _, dir := range dirs {
				if err := e.Syscalls.Chmod(dir, 0o700); err != nil {
					return fmt.Errorf("chmod %s: %w", dir, err)
				}
			}
		}
	}
	return nil
}

func (e *Jailed) setupDevices() error {
	for _, dev := range jailDevices {
		path := filepath.Join(e.chrootRoot, dev.relPath)
		if err := e.Syscalls.MknodDevice(path, sysshim.CharDevice, dev.mode, dev.major, dev.minor); err != nil {
			return fmt.Errorf("mknod %s: %w", path, err)
		}
	}
	return nil
}

func (e *Jailed) materializeInput(ctx context.Context, rt runtimeshim.Runtime, res ResourceSpec) (string, error) {
	if mt, ok := rt.(*runtimeshim.MultiThreaded); ok {
		release, err := mt.AcquirePrepareSlot(ctx)
		if err != nil {
			return "", fmt.Errorf("acquire prepare slot: %w", err)
		}
		defer release()
	}

	inner := e.innerPathFor(res.OuterPath)
	if err := rt.CreateDirAll(ctx, filepath.Dir(inner), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}

	move := res.Move
	switch move {
	case vmm.MoveCopy:
		if _, err := rt.Copy(ctx, res.OuterPath, inner); err != nil {
			return "", fmt.Errorf("copy: %w", err)
		}

	case vmm.MoveHardLink:
		if err := rt.HardLink(ctx, res.OuterPath, inner); err != nil {
			return "", fmt.Errorf("hard link: %w", err)
		}

	case vmm.MoveHardLinkOrCopy:
		err := rt.HardLink(ctx, res.OuterPath, inner)
		if err != nil && isCrossDeviceOrPermission(err) {
			if _, copyErr := rt.Copy(ctx, res.OuterPath, inner); copyErr != nil {
				return "", fmt.Errorf("hard link fallback copy: %w", copyErr)
			}
			move = vmm.MoveCopy
		} else if err != nil {
			return "", fmt.Errorf("hard link: %w", err)
		}

	case vmm.MoveRename:
		if err := rt.Rename(ctx, res.OuterPath, inner); err != nil {
			return "", fmt.Errorf("rename: %w", err)
		}

	case vmm.MoveSymlink:
		if err := rt.Symlink(ctx, res.OuterPath, inner); err != nil {
			return "", fmt.Errorf("symlink: %w", err)
		}

	default:
		return "", fmt.Errorf("unknown resource move %v", move)
	}

	e.materialized = append(e.materialized, materializedResource{move: move, path: inner})

	if err := e.applyOwnership(inner); err != nil {
		return "", err
	}

	return inner, nil
}

func (e *Jailed) applyOwnership(path string) error {
	mode := uint32(0o600)
	if e.Ownership.Kind == vmm.OwnershipShared {
		mode = 0o640
	}
	if err := e.Syscalls.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if e.Ownership.Kind != vmm.OwnershipShared {
		if err := e.Syscalls.Chown(path, e.Ownership.UID, e.Ownership.GID); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
	}
	return nil
}

// isCrossDeviceOrPermission reports whether err represents EXDEV or EPERM,
// the two errno values HardLinkOrCopy falls back to a copy for.
func isCrossDeviceOrPermission(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV) || errors.Is(linkErr.Err, syscall.EPERM)
	}
	return errors.Is(err, syscall.EXDEV) || errors.Is(err, syscall.EPERM)
}

func (e *Jailed) Invoke(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) (*RunningHandle, error) {
	if e.phase != PhasePrepared {
		return nil, incorrectState(PhasePrepared, e.phase)
	}

	// FcArguments' paths are jail-relative (e.g. "/run/fc.sock") and are
	// exactly what Firecracker's own argv must contain: the jailer chroot()s
	// before exec'ing Firecracker, so Firecracker sees its own filesystem
	// root at chrootRoot and must never be told a host-prefixed path.
	fcArgv, err := e.FcArguments.Build()
	if err != nil {
		return nil, invokeErr(err)
	}

	jailerArgv, err := e.JailerArgs.Build()
	if err != nil {
		return nil, invokeErr(err)
	}

	fullArgv := append(append([]string{}, jailerArgv...), append([]string{"--"}, fcArgv...)...)

	child, err := sp.Spawn(ctx, installation.JailerPath, fullArgv, os.Environ(),
		spawner.PipesNeeded{Stdout: runtimeshim.StdioPipe, Stderr: runtimeshim.StdioPipe}, e.Elevation)
	if err != nil {
		return nil, invokeErr(err)
	}

	e.phase = PhaseRunning
	e.log.WithFields(logrus.Fields{"jail_id": e.JailerArgs.JailID(), "pid": child.PID()}).Info("jailed firecracker started")

	// APISocket must be host-visible (see RunningHandle's doc comment);
	// innerPathFor prefixes the jail-relative path with chrootRoot to get
	// the path a host-side dialer can actually open.
	return &RunningHandle{
		PID:        child.PID(),
		Child:      child,
		APISocket:  e.innerPathFor(e.FcArguments.APISocketPath),
		OuterPaths: e.outerPaths,
		PathMap:    e.pathMap,
	}, nil
}

func (e *Jailed) Cleanup(ctx context.Context, rt runtimeshim.Runtime, sp *spawner.Spawner, installation vmm.VmmInstallation) error {
	if e.phase == PhaseCleanedUp {
		return nil
	}

	jailDir := filepath.Join(chrootBaseDirOf(e.JailerArgs), "firecracker", e.JailerArgs.JailID())
	err := rt.RemoveDirAll(ctx, jailDir)

	e.phase = PhaseCleanedUp
	if err != nil {
		e.log.WithError(err).WithField("jail_dir", jailDir).Warn("failed to remove jail directory")
		return cleanupErr(CleanupIO, err)
	}
	return nil
}

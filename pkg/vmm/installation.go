package vmm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"strings"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
)

// VmmInstallation points at the three binaries a caller has obtained ahead
// of time. It never downloads anything; Verify only checks what is already
// on disk.
type VmmInstallation struct {
	FirecrackerPath  string
	JailerPath       string
	SnapshotEditorPath string
}

// Verify checks that all three paths exist, are regular files, and have at
// least one execute permission bit set; whether the effective user in
// particular may execute them is not checked. If expectedVersion is non-nil,
// it also
// spawns `firecracker --version` via sp and compares the first
// whitespace-separated token of the first output line against
// *expectedVersion literally.
func (inst VmmInstallation) Verify(ctx context.Context, sp *spawner.Spawner, rt runtimeshim.Runtime, expectedVersion *string) error {
	for _, path := range []string{inst.FirecrackerPath, inst.JailerPath, inst.SnapshotEditorPath} {
		if err := verifyExecutable(ctx, rt, path); err != nil {
			return err
		}
	}

	if expectedVersion == nil {
		return nil
	}

	child, err := sp.Spawn(ctx, inst.FirecrackerPath, []string{"--version"}, os.Environ(),
		spawner.PipesNeeded{Stdout: runtimeshim.StdioPipe}, spawner.Direct{})
	if err != nil {
		return &InstallError{Kind: InstallIO, Path: inst.FirecrackerPath, Err: err}
	}

	var out bytes.Buffer
	if r := child.StdoutReader(); r != nil {
		buf := make([]byte, 4096)
		for {
			n, readErr := r.Read(buf)
			if n > 0 {
				out.Write(buf[:n])
			}
			if readErr != nil {
				break
			}
		}
	}

	if _, err := child.Wait(ctx); err != nil {
		return &InstallError{Kind: InstallIO, Path: inst.FirecrackerPath, Err: err}
	}

	actual := firstToken(out.String())
	if actual != *expectedVersion {
		return &InstallError{
			Kind:     InstallVersionMismatch,
			Path:     inst.FirecrackerPath,
			Expected: *expectedVersion,
			Actual:   actual,
		}
	}
	return nil
}

func firstToken(output string) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	if !scanner.Scan() {
		return ""
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func verifyExecutable(ctx context.Context, rt runtimeshim.Runtime, path string) error {
	info, err := rt.Metadata(ctx, path)
	if err != nil {
		var rtErr *runtimeshim.RuntimeError
		if errors.As(err, &rtErr) && rtErr.Kind == runtimeshim.IONotFound {
			return &InstallError{Kind: InstallMissing, Path: path, Err: err}
		}
		return &InstallError{Kind: InstallIO, Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &InstallError{Kind: InstallNotExecutable, Path: path}
	}
	if info.Mode().Perm()&0o111 == 0 {
		return &InstallError{Kind: InstallNotExecutable, Path: path}
	}
	return nil
}

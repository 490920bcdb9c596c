package vmm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
)

func writeFakeBinary(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestVerifyMissingBinary(t *testing.T) {
	dir := t.TempDir()
	inst := VmmInstallation{
		FirecrackerPath:    filepath.Join(dir, "absent"),
		JailerPath:         filepath.Join(dir, "absent"),
		SnapshotEditorPath: filepath.Join(dir, "absent"),
	}
	rt := runtimeshim.NewMultiThreaded(0)
	err := inst.Verify(context.Background(), nil, rt, nil)
	if err == nil {
		t.Fatal("expected InstallError")
	}
	installErr, ok := err.(*InstallError)
	if !ok {
		t.Fatalf("expected *InstallError, got %T", err)
	}
	if installErr.Kind != InstallMissing {
		t.Fatalf("expected InstallMissing, got %v", installErr.Kind)
	}
}

func TestVerifyVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	fcPath := writeFakeBinary(t, dir, "firecracker", "#!/bin/sh\necho Firecracker 1.7.0\n")
	jailerPath := writeFakeBinary(t, dir, "jailer", "#!/bin/sh\necho jailer 1.7.0\n")
	editorPath := writeFakeBinary(t, dir, "snapshot-editor", "#!/bin/sh\necho ok\n")

	inst := VmmInstallation{FirecrackerPath: fcPath, JailerPath: jailerPath, SnapshotEditorPath: editorPath}

	rt := runtimeshim.NewMultiThreaded(0)
	logger := logrus.New()
	sp := spawner.New(rt, logrus.NewEntry(logger))

	expected := "1.6.0"
	err := inst.Verify(context.Background(), sp, rt, &expected)
	if err == nil {
		t.Fatal("expected InstallError for version mismatch")
	}
	installErr, ok := err.(*InstallError)
	if !ok {
		t.Fatalf("expected *InstallError, got %T", err)
	}
	if installErr.Kind != InstallVersionMismatch {
		t.Fatalf("expected InstallVersionMismatch, got %v", installErr.Kind)
	}
	if installErr.Expected != "1.6.0" {
		t.Fatalf("unexpected expected version: %q", installErr.Expected)
	}
}

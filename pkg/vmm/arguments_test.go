package vmm

import (
	"reflect"
	"testing"
)

func TestVmmArgumentsBuildOrder(t *testing.T) {
	args := VmmArguments{
		APISocketPath: "/run/fc.sock",
		LogPath:       "/var/log/fc.log",
		LogLevel:      "Info",
		MetricsPath:   "/var/log/fc-metrics.log",
		BootTimer:     true,
		Seccomp:       SeccompAdvanced(),
	}
	got, err := args.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		"--api-sock", "/run/fc.sock",
		"--log-path", "/var/log/fc.log",
		"--level", "Info",
		"--metrics-path", "/var/log/fc-metrics.log",
		"--boot-timer",
		"--seccomp-level", "2",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestVmmArgumentsMissingSocketPath(t *testing.T) {
	_, err := VmmArguments{}.Build()
	if err == nil {
		t.Fatal("expected ArgumentBuildError")
	}
	if _, ok := err.(*ArgumentBuildError); !ok {
		t.Fatalf("expected *ArgumentBuildError, got %T", err)
	}
}

func TestVmmArgumentsCustomSeccompRequiresPath(t *testing.T) {
	args := VmmArguments{APISocketPath: "/run/fc.sock", Seccomp: SeccompCustom("")}
	_, err := args.Build()
	if err == nil {
		t.Fatal("expected ArgumentBuildError for empty custom seccomp path")
	}
}

func TestJailerArgumentsBuild(t *testing.T) {
	args := NewJailerArguments("jail-1", "/usr/bin/firecracker").
		WithUID(123).
		WithGID(123).
		WithChrootBaseDir("/srv/jails").
		WithNetNS("/var/run/netns/fc0").
		WithCgroupV1("cpu.shares", "1024").
		WithCgroupV2(true).
		WithResourceLimit("fsize", 1<<30).
		WithDaemonize(true).
		WithPIDFileName("firecracker.pid")

	got, err := args.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		"--id", "jail-1",
		"--exec-file", "/usr/bin/firecracker",
		"--uid", "123",
		"--gid", "123",
		"--chroot-base-dir", "/srv/jails",
		"--netns", "/var/run/netns/fc0",
		"--cgroup", "cpu.shares=1024",
		"--cgroup-version", "2",
		"--resource-limit", "fsize=1073741824",
		"--daemonize",
		"--pid-file", "firecracker.pid",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestJailerArgumentsRequiresFilenameSafeID(t *testing.T) {
	args := NewJailerArguments("bad/id", "/usr/bin/firecracker").WithUID(1).WithGID(1).WithChrootBaseDir("/srv/jails")
	_, err := args.Build()
	if err == nil {
		t.Fatal("expected ArgumentBuildError for unsafe jail id")
	}
}

func TestJailerArgumentsRequiresUIDGID(t *testing.T) {
	args := NewJailerArguments("jail-1", "/usr/bin/firecracker").WithChrootBaseDir("/srv/jails")
	_, err := args.Build()
	if err == nil {
		t.Fatal("expected ArgumentBuildError for missing uid/gid")
	}
}

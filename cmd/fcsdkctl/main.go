// fcsdkctl is a smoke-test and example CLI for the Firecracker SDK.
//
// It drives the SDK end to end against one VM: install verification,
// executor prepare/invoke, a raw API request, shutdown, and cleanup. It
// does not template VM configuration the way a VM façade would — request
// bodies are passed through as raw JSON the operator supplies on the
// command line.
//
// Usage:
//
//	FCSDK_FIRECRACKER_PATH=/usr/bin/firecracker FCSDK_JAILER_PATH=/usr/bin/jailer FCSDK_SNAPSHOT_EDITOR_PATH=/usr/bin/snapshot-editor fcsdkctl verify
//	fcsdkctl --config /etc/fcsdk/config.toml run --api-socket /tmp/fc.sock --request '{"method":"PUT","path":"/actions","body":"{...}"}'
//
// Build: go build -o fcsdkctl ./cmd/fcsdkctl
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-sdk/pkg/config"
	"github.com/pipeops/firecracker-sdk/pkg/executor"
	"github.com/pipeops/firecracker-sdk/pkg/process"
	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
	"github.com/pipeops/firecracker-sdk/pkg/spawner"
	"github.com/pipeops/firecracker-sdk/pkg/sysshim"
	"github.com/pipeops/firecracker-sdk/pkg/vmm"
)

const version = "0.1.0"

type cli struct {
	configPath string
	verbose    bool
	log        *logrus.Entry
}

func main() {
	c := &cli{configPath: getEnvOrDefault("FCSDK_CONFIG", "")}

	if len(os.Args) < 2 {
		c.printUsage()
		os.Exit(1)
	}

	args := os.Args[1:]
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "-v", "--verbose":
			c.verbose = true
			args = args[1:]
		case "--config":
			if len(args) < 2 {
				fatal("--config requires a value")
			}
			c.configPath = args[1]
			args = args[2:]
		case "-h", "--help":
			c.printUsage()
			os.Exit(0)
		case "--version":
			fmt.Printf("fcsdkctl version %s\n", version)
			os.Exit(0)
		default:
			fatal("unknown flag: %s", args[0])
		}
	}

	if len(args) == 0 {
		c.printUsage()
		os.Exit(1)
	}

	logger := logrus.New()
	if c.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	c.log = logrus.NewEntry(logger)

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "verify":
		err = c.cmdVerify(rest)
	case "run":
		err = c.cmdRun(rest)
	case "run-jailed":
		err = c.cmdRunJailed(rest)
	default:
		c.printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatal("%v", err)
	}
}

func (c *cli) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if c.configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(c.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func (c *cli) cmdVerify(args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	inst := vmm.VmmInstallation{
		FirecrackerPath:    cfg.Installation.FirecrackerPath,
		JailerPath:         cfg.Installation.JailerPath,
		SnapshotEditorPath: cfg.Installation.SnapshotEditorPath,
	}

	rt := runtimeshim.NewMultiThreaded(0)
	sp := spawner.New(rt, c.log)

	var expected *string
	if cfg.Installation.ExpectedVersion != "" {
		expected = &cfg.Installation.ExpectedVersion
	}

	if err := inst.Verify(context.Background(), sp, rt, expected); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BINARY\tPATH")
	fmt.Fprintf(w, "firecracker\t%s\n", inst.FirecrackerPath)
	fmt.Fprintf(w, "jailer\t%s\n", inst.JailerPath)
	fmt.Fprintf(w, "snapshot-editor\t%s\n", inst.SnapshotEditorPath)
	return w.Flush()
}

type apiRequestSpec struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   string `json:"body"`
}

func (c *cli) cmdRun(args []string) error {
	var apiSocket, requestJSON, logPath string
	for len(args) > 0 {
		switch args[0] {
		case "--api-socket":
			apiSocket = args[1]
			args = args[2:]
		case "--request":
			requestJSON = args[1]
			args = args[2:]
		case "--log-path":
			logPath = args[1]
			args = args[2:]
		default:
			return fmt.Errorf("unknown argument: %s", args[0])
		}
	}
	if apiSocket == "" {
		return fmt.Errorf("--api-socket is required")
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	inst := vmm.VmmInstallation{
		FirecrackerPath:    cfg.Installation.FirecrackerPath,
		JailerPath:         cfg.Installation.JailerPath,
		SnapshotEditorPath: cfg.Installation.SnapshotEditorPath,
	}

	rt := runtimeshim.NewMultiThreaded(0)
	sp := spawner.New(rt, c.log)

	exec := executor.NewUnrestricted(vmm.VmmArguments{APISocketPath: apiSocket, LogPath: logPath, Seccomp: vmm.SeccompNone()}, spawner.Direct{}, c.log)
	proc := process.New(exec, rt, sp, inst, c.log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resources := []executor.ResourceSpec{{OuterPath: apiSocket, Role: executor.RoleOutput}}
	if logPath != "" {
		resources = append(resources, executor.ResourceSpec{OuterPath: logPath, Role: executor.RoleOutput})
	}
	if err := proc.Prepare(ctx, resources); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	var tail *process.LogTail
	if logPath != "" {
		tail, err = process.OpenLogTail(ctx, sysshim.UnixSyscalls{}, logPath)
		if err != nil {
			return fmt.Errorf("open log tail: %w", err)
		}
		go tail.Pump(ctx, c.log)
		defer tail.Close()
	}

	if err := proc.Invoke(ctx); err != nil {
		return fmt.Errorf("invoke: %w", err)
	}

	if requestJSON != "" {
		var spec apiRequestSpec
		if err := json.Unmarshal([]byte(requestJSON), &spec); err != nil {
			return fmt.Errorf("parse --request: %w", err)
		}
		status, body, err := proc.SendAPIRequest(ctx, spec.Method, spec.Path, []byte(spec.Body))
		if err != nil {
			return fmt.Errorf("send api request: %w", err)
		}
		fmt.Printf("status=%d body=%s\n", status, body)
	}

	if err := proc.Shutdown(ctx, []process.ShutdownMethod{process.CtrlAltDel(), process.Kill(os.Kill)}, 30*time.Second); err != nil {
		c.log.WithError(err).Warn("shutdown did not complete cleanly")
	}
	if err := proc.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fmt.Printf("exit status: %+v\n", proc.ExitStatus())
	return nil
}

// cmdRunJailed exercises the jailed executor path: a fresh jail ID, a
// minimal jailer argument set, and Shared ownership under the configured
// uid/gid (the caller's own unless config or environment overrides them).
func (c *cli) cmdRunJailed(args []string) error {
	var chrootBaseDir, apiSocket string
	for len(args) > 0 {
		switch args[0] {
		case "--chroot-base-dir":
			chrootBaseDir = args[1]
			args = args[2:]
		case "--api-socket":
			apiSocket = args[1]
			args = args[2:]
		default:
			return fmt.Errorf("unknown argument: %s", args[0])
		}
	}
	if chrootBaseDir == "" || apiSocket == "" {
		return fmt.Errorf("--chroot-base-dir and --api-socket are required")
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	inst := vmm.VmmInstallation{
		FirecrackerPath:    cfg.Installation.FirecrackerPath,
		JailerPath:         cfg.Installation.JailerPath,
		SnapshotEditorPath: cfg.Installation.SnapshotEditorPath,
	}

	jailID := vmm.NewJailID()
	jailerArgs := vmm.NewJailerArguments(jailID, inst.FirecrackerPath).
		WithUID(cfg.Ownership.UID).
		WithGID(cfg.Ownership.GID).
		WithChrootBaseDir(chrootBaseDir)

	ownership := vmm.SharedOwnership(cfg.Ownership.UID, cfg.Ownership.GID)

	rt := runtimeshim.NewMultiThreaded(4)
	sp := spawner.New(rt, c.log)

	exec := executor.NewJailed(jailerArgs, vmm.VmmArguments{APISocketPath: apiSocket, Seccomp: vmm.SeccompNone()}, ownership, spawner.Direct{}, sysshim.UnixSyscalls{}, c.log)
	proc := process.New(exec, rt, sp, inst, c.log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := proc.Prepare(ctx, []executor.ResourceSpec{
		{OuterPath: apiSocket, Role: executor.RoleOutput},
	}); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if err := proc.Invoke(ctx); err != nil {
		return fmt.Errorf("invoke: %w", err)
	}
	if err := proc.Shutdown(ctx, []process.ShutdownMethod{process.CtrlAltDel(), process.Kill(os.Kill)}, 30*time.Second); err != nil {
		c.log.WithError(err).Warn("shutdown did not complete cleanly")
	}
	if err := proc.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fmt.Printf("jail %s exit status: %+v\n", jailID, proc.ExitStatus())
	return nil
}

func (c *cli) printUsage() {
	fmt.Fprintln(os.Stderr, `fcsdkctl - Firecracker SDK smoke-test CLI

Usage:
  fcsdkctl [global flags] verify
  fcsdkctl [global flags] run --api-socket path [--log-path path] [--request '{"method":"GET","path":"/","body":""}']
  fcsdkctl [global flags] run-jailed --chroot-base-dir path --api-socket path

Global flags:
  -v, --verbose       enable debug logging
  --config path       path to a TOML config file (see pkg/config)
  --version           print version and exit`)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "fcsdkctl: "+format+"\n", args...)
	os.Exit(1)
}

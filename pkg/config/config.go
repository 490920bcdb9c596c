// Package config loads this SDK's ambient configuration: installation
// paths, default ownership model, default shutdown policy, and API-socket
// dial-backoff parameters. It is deliberately small — the SDK's actual VM
// configuration surface (§6 of the domain spec) is the caller's concern,
// not this package's.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

// Config is this SDK's own operational configuration, as distinct from any
// one VM's configuration.
type Config struct {
	Installation InstallationConfig `toml:"installation"`
	Ownership    OwnershipConfig    `toml:"ownership"`
	Shutdown     ShutdownConfig     `toml:"shutdown"`
	APISocket    APISocketConfig    `toml:"api_socket"`
	Log          LogConfig          `toml:"log"`
}

// InstallationConfig points at the three binaries VmmInstallation wraps.
type InstallationConfig struct {
	FirecrackerPath    string `toml:"firecracker_path"`
	JailerPath         string `toml:"jailer_path"`
	SnapshotEditorPath string `toml:"snapshot_editor_path"`
	ExpectedVersion    string `toml:"expected_version"`
}

// OwnershipConfig names a VmmOwnershipModel (Kind) and the uid/gid for
// jailed executors. This package only decodes it; nothing here turns Kind
// into a vmm.VmmOwnershipModel.
type OwnershipConfig struct {
	Kind string `toml:"kind"` // "shared", "upgraded", "upgraded_permanently"
	UID  int    `toml:"uid"`
	GID  int    `toml:"gid"`
}

// ShutdownConfig lists shutdown method names in order and a per-method
// timeout. This package only decodes them; nothing here turns the names into
// process.ShutdownMethod values.
type ShutdownConfig struct {
	Methods     []string      `toml:"methods"`
	TimeoutEach time.Duration `toml:"timeout_each"`
}

// APISocketConfig holds a total budget for the wait-for-socket backoff
// described in the process package. The value is decoded only: the process
// package's wait-for-socket loop uses its own fixed 10s budget and does not
// read it.
type APISocketConfig struct {
	TotalBudget time.Duration `toml:"total_budget"`
}

// LogConfig configures the logrus.Logger passed to ApplyToLogger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with sane defaults for local development: no
// installation paths set (Verify will fail until the caller sets them),
// Shared ownership at the calling process's own uid/gid, a single
// CtrlAltDel shutdown method with a 30s timeout, and a 10s API socket
// budget.
func Default() *Config {
	return &Config{
		Ownership: OwnershipConfig{Kind: "shared", UID: os.Getuid(), GID: os.Getgid()},
		Shutdown:  ShutdownConfig{Methods: []string{"ctrl_alt_del"}, TimeoutEach: 30 * time.Second},
		APISocket: APISocketConfig{TotalBudget: 10 * time.Second},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// LoadFromFile parses a TOML config file at path into a Config seeded with
// Default's values.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv overlays FCSDK_-prefixed environment variables onto cfg.
func LoadFromEnv(cfg *Config) {
	loadEnvString(&cfg.Installation.FirecrackerPath, "FCSDK_FIRECRACKER_PATH")
	loadEnvString(&cfg.Installation.JailerPath, "FCSDK_JAILER_PATH")
	loadEnvString(&cfg.Installation.SnapshotEditorPath, "FCSDK_SNAPSHOT_EDITOR_PATH")
	loadEnvString(&cfg.Installation.ExpectedVersion, "FCSDK_EXPECTED_VERSION")

	loadEnvString(&cfg.Ownership.Kind, "FCSDK_OWNERSHIP_KIND")
	loadEnvInt(&cfg.Ownership.UID, "FCSDK_OWNERSHIP_UID")
	loadEnvInt(&cfg.Ownership.GID, "FCSDK_OWNERSHIP_GID")

	loadEnvDuration(&cfg.Shutdown.TimeoutEach, "FCSDK_SHUTDOWN_TIMEOUT_EACH")
	loadEnvDuration(&cfg.APISocket.TotalBudget, "FCSDK_API_SOCKET_BUDGET")

	loadEnvString(&cfg.Log.Level, "FCSDK_LOG_LEVEL")
	loadEnvString(&cfg.Log.Format, "FCSDK_LOG_FORMAT")
}

// ApplyToLogger sets level and formatter on log to match c.Log.
func (c *Config) ApplyToLogger(log *logrus.Logger) {
	switch c.Log.Level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	switch c.Log.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func loadEnvString(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

func loadEnvInt(target *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func loadEnvDuration(target *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}

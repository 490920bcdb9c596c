package vmm

import "fmt"

// SeccompFilter selects Firecracker's seccomp enforcement level.
type SeccompFilter struct {
	kind       seccompKind
	customPath string
}

type seccompKind int

const (
	seccompNone seccompKind = iota
	seccompBasic
	seccompAdvanced
	seccompCustom
)

func SeccompNone() SeccompFilter     { return SeccompFilter{kind: seccompNone} }
func SeccompBasic() SeccompFilter    { return SeccompFilter{kind: seccompBasic} }
func SeccompAdvanced() SeccompFilter { return SeccompFilter{kind: seccompAdvanced} }
func SeccompCustom(path string) SeccompFilter {
	return SeccompFilter{kind: seccompCustom, customPath: path}
}

// VmmArguments is Firecracker's typed CLI argument set. Build emits
// path-valued fields exactly as given; the jailed executor passes them to
// Firecracker unchanged, so for jailed execution they are the paths as seen
// from inside the chroot.
type VmmArguments struct {
	APISocketPath string
	LogPath       string
	MetricsPath   string
	ConfigPath    string
	BootTimer     bool
	Seccomp       SeccompFilter
	LogLevel      string
}

// Build produces a deterministic, order-stable argv for exec'ing
// firecracker directly (api-socket, config, log, log-level, metrics,
// boot-timer, seccomp — the same field order every call).
func (a VmmArguments) Build() ([]string, error) {
	var argv []string

	if a.APISocketPath == "" {
		return nil, &ArgumentBuildError{Field: "api_socket_path", Reason: "must not be empty"}
	}
	argv = append(argv, "--api-sock", a.APISocketPath)

	if a.ConfigPath != "" {
		argv = append(argv, "--config-file", a.ConfigPath)
	}
	if a.LogPath != "" {
		argv = append(argv, "--log-path", a.LogPath)
	}
	if a.LogLevel != "" {
		argv = append(argv, "--level", a.LogLevel)
	}
	if a.MetricsPath != "" {
		argv = append(argv, "--metrics-path", a.MetricsPath)
	}
	if a.BootTimer {
		argv = append(argv, "--boot-timer")
	}

	switch a.Seccomp.kind {
	case seccompNone:
		argv = append(argv, "--no-seccomp")
	case seccompBasic:
		argv = append(argv, "--seccomp-level", "1")
	case seccompAdvanced:
		argv = append(argv, "--seccomp-level", "2")
	case seccompCustom:
		if a.Seccomp.customPath == "" {
			return nil, &ArgumentBuildError{Field: "seccomp_filter", Reason: "custom filter path must not be empty"}
		}
		argv = append(argv, "--seccomp-filter", a.Seccomp.customPath)
	}

	return argv, nil
}

// CgroupV1Spec is one key/value pair passed as --cgroup to the jailer.
type CgroupV1Spec struct {
	Key   string
	Value string
}

// JailerArguments is a fluent builder for the jailer's argv, grounded on the
// upstream firecracker-go-sdk JailerCommandBuilder shape and extended with
// cgroup v1/v2 selection and resource limits.
type JailerArguments struct {
	jailID        string
	uid           *int
	gid           *int
	execFile      string
	netNSPath     string
	chrootBaseDir string
	cgroupsV1     []CgroupV1Spec
	cgroupsV2     bool
	resourceLimits []ResourceLimit
	daemonize     bool
	pidFileName   string
	numaNode      *int
}

// ResourceLimit is one --resource-limit NAME=VALUE pair (e.g. "fsize" or
// "no-file").
type ResourceLimit struct {
	Name  string
	Value int64
}

func NewJailerArguments(jailID, execFile string) JailerArguments {
	return JailerArguments{jailID: jailID, execFile: execFile}
}

func (j JailerArguments) WithUID(uid int) JailerArguments {
	j.uid = &uid
	return j
}

func (j JailerArguments) WithGID(gid int) JailerArguments {
	j.gid = &gid
	return j
}

func (j JailerArguments) WithNetNS(path string) JailerArguments {
	j.netNSPath = path
	return j
}

func (j JailerArguments) WithChrootBaseDir(path string) JailerArguments {
	j.chrootBaseDir = path
	return j
}

func (j JailerArguments) WithCgroupV1(key, value string) JailerArguments {
	j.cgroupsV1 = append(j.cgroupsV1, CgroupV1Spec{Key: key, Value: value})
	return j
}

func (j JailerArguments) WithCgroupV2(enabled bool) JailerArguments {
	j.cgroupsV2 = enabled
	return j
}

func (j JailerArguments) WithResourceLimit(name string, value int64) JailerArguments {
	j.resourceLimits = append(j.resourceLimits, ResourceLimit{Name: name, Value: value})
	return j
}

func (j JailerArguments) WithDaemonize(enabled bool) JailerArguments {
	j.daemonize = enabled
	return j
}

func (j JailerArguments) WithPIDFileName(name string) JailerArguments {
	j.pidFileName = name
	return j
}

func (j JailerArguments) WithNumaNode(node int) JailerArguments {
	j.numaNode = &node
	return j
}

func (j JailerArguments) JailID() string { return j.jailID }

// Build produces the jailer's argv in a fixed field order: id, exec-file,
// uid, gid, chroot-base-dir, netns, numa-node, cgroup v1 entries, cgroup
// version, resource limits, daemonize, pid-file. The caller appends the "--"
// separator and Firecracker's own argv.
func (j JailerArguments) Build() ([]string, error) {
	if j.jailID == "" {
		return nil, &ArgumentBuildError{Field: "jail_id", Reason: "must not be empty"}
	}
	if !isFilenameSafe(j.jailID) {
		return nil, &ArgumentBuildError{Field: "jail_id", Reason: "must be filename-safe"}
	}
	if j.execFile == "" {
		return nil, &ArgumentBuildError{Field: "exec_file", Reason: "must not be empty"}
	}
	if j.uid == nil {
		return nil, &ArgumentBuildError{Field: "uid", Reason: "must be set"}
	}
	if j.gid == nil {
		return nil, &ArgumentBuildError{Field: "gid", Reason: "must be set"}
	}
	if j.chrootBaseDir == "" {
		return nil, &ArgumentBuildError{Field: "chroot_base_dir", Reason: "must not be empty"}
	}

	argv := []string{
		"--id", j.jailID,
		"--exec-file", j.execFile,
		"--uid", fmt.Sprint(*j.uid),
		"--gid", fmt.Sprint(*j.gid),
		"--chroot-base-dir", j.chrootBaseDir,
	}

	if j.netNSPath != "" {
		argv = append(argv, "--netns", j.netNSPath)
	}
	if j.numaNode != nil {
		argv = append(argv, "--node", fmt.Sprint(*j.numaNode))
	}
	for _, spec := range j.cgroupsV1 {
		argv = append(argv, "--cgroup", fmt.Sprintf("%s=%s", spec.Key, spec.Value))
	}
	if j.cgroupsV2 {
		argv = append(argv, "--cgroup-version", "2")
	}
	for _, limit := range j.resourceLimits {
		argv = append(argv, "--resource-limit", fmt.Sprintf("%s=%d", limit.Name, limit.Value))
	}
	if j.daemonize {
		argv = append(argv, "--daemonize")
	}
	if j.pidFileName != "" {
		argv = append(argv, "--pid-file", j.pidFileName)
	}

	return argv, nil
}

func isFilenameSafe(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

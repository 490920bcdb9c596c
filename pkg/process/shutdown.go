package process

import "os"

// ShutdownMethodKind distinguishes the three ways Shutdown can ask a running
// Firecracker process to exit.
type ShutdownMethodKind int

const (
	MethodCtrlAltDel ShutdownMethodKind = iota
	MethodPauseThenKill
	MethodKill
)

// ShutdownMethod is one entry in the ordered list Shutdown tries in
// sequence. Signal is only consulted when Kind is MethodKill.
type ShutdownMethod struct {
	Kind   ShutdownMethodKind
	Signal os.Signal
}

func CtrlAltDel() ShutdownMethod { return ShutdownMethod{Kind: MethodCtrlAltDel} }
func PauseThenKill() ShutdownMethod { return ShutdownMethod{Kind: MethodPauseThenKill} }
func Kill(signal os.Signal) ShutdownMethod {
	return ShutdownMethod{Kind: MethodKill, Signal: signal}
}

// CrashReason explains why a process ended up in StateCrashed instead of
// StateExited.
type CrashReason int

const (
	CrashShutdownTimeout CrashReason = iota
	CrashUnexpectedExit
)

package process

import (
	"context"
	"time"

	"github.com/pipeops/firecracker-sdk/pkg/runtimeshim"
)

const (
	socketDialInitialBackoff = 5 * time.Millisecond
	socketDialBackoffFactor  = 2
	socketDialBackoffCap     = 200 * time.Millisecond
	socketDialTotalBudget    = 10 * time.Second
)

// waitForSocket polls socketPath through rt with exponential backoff (5ms
// initial, factor 2, capped at 200ms) until a connection succeeds or the
// total budget elapses. Every probe and every backoff sleep runs through rt
// so a Cooperative runtime serializes this onto its one worker goroutine
// like everything else.
func waitForSocket(ctx context.Context, rt runtimeshim.Runtime, socketPath string) error {
	deadline := time.Now().Add(socketDialTotalBudget)
	backoff := socketDialInitialBackoff

	for {
		if err := rt.ProbeUnixSocket(ctx, socketPath); err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return &ProcessError{Kind: ErrAPISocketTimeout}
		}

		if err := rt.Sleep(ctx, backoff); err != nil {
			return &ProcessError{Kind: ErrTransport, Err: err}
		}

		backoff *= socketDialBackoffFactor
		if backoff > socketDialBackoffCap {
			backoff = socketDialBackoffCap
		}
	}
}

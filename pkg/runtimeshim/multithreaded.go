package runtimeshim

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// MultiThreaded runs every task on a fresh goroutine, giving true
// parallelism. It is the default Runtime for production use: the executor
// and process layers see no difference between this and Cooperative beyond
// throughput and scheduling fairness.
type MultiThreaded struct {
	fsops

	// prepareGate bounds how many jailed-prepare resource-materialization
	// steps run concurrently, mirroring the warm-pool concurrency limit the
	// VM manager layer applies above this SDK.
	prepareGate *semaphore.Weighted
}

// NewMultiThreaded returns a MultiThreaded runtime. maxConcurrentPrepare
// bounds simultaneous jailed-prepare resource copies; 0 means unbounded.
func NewMultiThreaded(maxConcurrentPrepare int64) *MultiThreaded {
	var gate *semaphore.Weighted
	if maxConcurrentPrepare > 0 {
		gate = semaphore.NewWeighted(maxConcurrentPrepare)
	}
	rt := &MultiThreaded{prepareGate: gate}
	rt.fsops = fsops{run: rt.run}
	return rt
}

// AcquirePrepareSlot blocks until a jailed-prepare concurrency slot is free,
// or ctx is canceled. Release must be called exactly once on success.
func (rt *MultiThreaded) AcquirePrepareSlot(ctx context.Context) (release func(), err error) {
	if rt.prepareGate == nil {
		return func() {}, nil
	}
	if err := rt.prepareGate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { rt.prepareGate.Release(1) }, nil
}

func (rt *MultiThreaded) run(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rt *MultiThreaded) SpawnTask(fn func(context.Context)) {
	go fn(context.Background())
}

type joinHandle struct {
	cancel context.CancelFunc
	done   chan error

	once sync.Once
	err  error
}

func (j *joinHandle) Join(ctx context.Context) error {
	select {
	case err, ok := <-j.done:
		if ok {
			j.once.Do(func() { j.err = err })
		}
		return j.err
	case <-ctx.Done():
		j.cancel()
		return ctx.Err()
	}
}

func (j *joinHandle) Cancel() { j.cancel() }

func (rt *MultiThreaded) SpawnJoinable(fn func(context.Context) error) JoinHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &joinHandle{cancel: cancel, done: make(chan error, 1)}
	go func() {
		h.done <- fn(ctx)
		close(h.done)
	}()
	return h
}

package runtimeshim

import "context"

// job is a unit of work queued onto the Cooperative runtime's single worker.
type job struct {
	fn   func(context.Context) error
	ctx  context.Context
	done chan error
}

// Cooperative serializes every task onto one dedicated worker goroutine, so
// at most one unit of work runs at a time. It models a single-threaded
// cooperative executor: callers observe the same Runtime interface as
// MultiThreaded, including cancellation, just without parallelism.
type Cooperative struct {
	fsops

	queue chan job
	stop  chan struct{}
}

// NewCooperative starts the worker goroutine and returns a ready Cooperative
// runtime. Close should be called to stop the worker once the runtime is no
// longer needed.
func NewCooperative() *Cooperative {
	rt := &Cooperative{
		queue: make(chan job),
		stop:  make(chan struct{}),
	}
	rt.fsops = fsops{run: rt.run}
	go rt.worker()
	return rt
}

func (rt *Cooperative) worker() {
	for {
		select {
		case j := <-rt.queue:
			j.done <- j.fn(j.ctx)
		case <-rt.stop:
			return
		}
	}
}

// Close stops the worker goroutine. Tasks already queued when Close is
// called are not guaranteed to run.
func (rt *Cooperative) Close() {
	close(rt.stop)
}

func (rt *Cooperative) run(ctx context.Context, fn func(context.Context) error) error {
	j := job{fn: fn, ctx: ctx, done: make(chan error, 1)}
	select {
	case rt.queue <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-rt.stop:
		return context.Canceled
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rt *Cooperative) SpawnTask(fn func(context.Context)) {
	go func() {
		_ = rt.run(context.Background(), func(taskCtx context.Context) error {
			fn(taskCtx)
			return nil
		})
	}()
}

func (rt *Cooperative) SpawnJoinable(fn func(context.Context) error) JoinHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &joinHandle{cancel: cancel, done: make(chan error, 1)}
	go func() {
		h.done <- rt.run(ctx, fn)
		close(h.done)
	}()
	return h
}

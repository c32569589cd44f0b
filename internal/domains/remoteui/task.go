package remoteui

import "context"

// task runs an action callback to completion regardless of whether anyone
// waits for it.
type task struct {
	done chan struct{}
	err  error
}

// startTask runs fn on its own goroutine with a context that is never
// cancelled. finish, when set, observes the outcome before waiters do.
func startTask(ctx context.Context, operation string, fn func(ctx context.Context) error, finish func(err error)) *task {
	t := &task{done: make(chan struct{})}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(t.done)
		t.err = guard(operation, func() error { return fn(runCtx) })
		if finish != nil {
			finish(t.err)
		}
	}()
	return t
}

// wait blocks until the task finishes or ctx is done. The task keeps running
// in the second case.
func (t *task) wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

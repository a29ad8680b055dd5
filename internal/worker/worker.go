package worker

import (
	"context"
	"fmt"
)

// job is one unit of work submitted through Dispatcher.Do.
type job struct {
	ctx    context.Context
	userID string
	fn     func(ctx context.Context) error
	err    error
	done   chan struct{}
}

func newJob(ctx context.Context, userID string, fn func(ctx context.Context) error) *job {
	return &job{ctx: ctx, userID: userID, fn: fn, done: make(chan struct{})}
}

// run executes the job unless its caller already gave up.
func (j *job) run() {
	defer close(j.done)
	if err := j.ctx.Err(); err != nil {
		j.err = err
		return
	}
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("job for user %s panicked: %v", j.userID, r)
		}
	}()
	j.err = j.fn(j.ctx)
}

func (j *job) fail(err error) {
	j.err = err
	close(j.done)
}

// work is the worker loop: run jobs until told to stop with a nil job or
// until the pool no longer wants this worker back.
func (p *jobChannelPool) work(meta *workerMeta) {
	defer p.retire(meta.ch)
	for j := range meta.ch {
		if j == nil {
			return
		}
		j.run()
		if !p.release(meta.ch) {
			return
		}
	}
}

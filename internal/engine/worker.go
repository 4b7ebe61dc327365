package engine

import (
	"context"
	"time"
)

// worker is the loop run by each of the N worker goroutines: pop a task,
// dispatch it, and when the queue runs dry, back off until either new work
// appears or every worker is simultaneously idle.
//
// The live counter is incremented by Reduce before the goroutines start, so
// the quiescence test never observes a pool that is still spawning. A task
// is either queued or held by a live non-idle worker; when the queue is
// empty and idle == live, no future push can occur and the run is over.
func (e *Engine) worker(ctx context.Context) {
	defer e.live.Add(-1)

	backoff := e.opts.BackoffMin

	for {
		if e.done.Load() {
			return
		}

		if ctx.Err() != nil {
			e.fail(ctx.Err())

			return
		}

		item, ok := e.queue.PopMax()
		if ok {
			backoff = e.opts.BackoffMin

			err := e.dispatch(ctx, item.Task)
			if err != nil {
				e.fail(err)

				return
			}

			continue
		}

		if e.quiesce(backoff) {
			return
		}

		backoff = min(backoff*2, e.opts.BackoffMax)
	}
}

// quiesce runs one round of the idle protocol. The worker marks itself
// idle; if every live worker is idle and a final queue check still finds
// nothing, it declares system-wide quiescence and initiates shutdown.
// Otherwise it sleeps the given backoff and returns to running. Returns
// true when the worker should exit.
func (e *Engine) quiesce(backoff time.Duration) bool {
	e.idle.Add(1)

	if e.idle.Load() == e.live.Load() && e.queue.Len() == 0 {
		e.done.Store(true)
		e.idle.Add(-1)

		return true
	}

	time.Sleep(backoff)
	e.idle.Add(-1)

	return e.done.Load()
}

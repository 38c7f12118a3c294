package usecase

import (
	"sync"

	"github.com/gammazero/workerpool"
)

// eventLoop runs submitted functions one at a time in submission order.
// Functions must not call Do on the same loop.
type eventLoop struct {
	pool    *workerpool.WorkerPool
	mu      sync.RWMutex
	stopped bool
}

func newEventLoop() *eventLoop {
	return &eventLoop{pool: workerpool.New(1)}
}

// Do runs fn on the loop and waits for it. It is a no-op once stopped.
func (l *eventLoop) Do(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return
	}
	l.pool.SubmitWait(fn)
}

// Post queues fn without waiting.
func (l *eventLoop) Post(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return
	}
	l.pool.Submit(fn)
}

// Stop runs whatever is queued, then stops the loop.
func (l *eventLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.pool.StopWait()
}

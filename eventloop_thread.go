package reactor

import "sync"

// EventLoopThread pins a fresh EventLoop to a single goroutine for the
// life of that loop, publishing the loop pointer once it is ready to
// accept channels and tasks — spec.md §4.5's "publishes its loop pointer
// under a mutex/condition" step, one thread at a time.
type EventLoopThread struct {
	mu      sync.Mutex
	cond    *sync.Cond
	loop    *EventLoop
	err     error
	initCB  func(*EventLoop)
	opts    []EventLoopOption
	started bool
}

// NewEventLoopThread constructs a thread wrapper. initCB, if non-nil, runs
// once the loop is constructed but before Loop begins dispatching.
func NewEventLoopThread(initCB func(*EventLoop), opts ...EventLoopOption) *EventLoopThread {
	t := &EventLoopThread{initCB: initCB, opts: opts}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// StartLoop spawns the backing goroutine and blocks until that
// goroutine's EventLoop has been constructed and published, or until
// construction failed — in which case it returns the error instead of
// hanging forever waiting for a loop that will never arrive.
func (t *EventLoopThread) StartLoop() (*EventLoop, error) {
	t.mu.Lock()
	if t.started {
		loop, err := t.loop, t.err
		t.mu.Unlock()
		return loop, err
	}
	t.started = true
	t.mu.Unlock()

	go t.runLoop()

	t.mu.Lock()
	for t.loop == nil && t.err == nil {
		t.cond.Wait()
	}
	loop, err := t.loop, t.err
	t.mu.Unlock()
	return loop, err
}

func (t *EventLoopThread) runLoop() {
	loop, err := NewEventLoop(t.opts...)
	if err != nil {
		DefaultLogger.Errorf("reactor: worker loop construction failed: %v", err)
		t.mu.Lock()
		t.err = err
		t.cond.Signal()
		t.mu.Unlock()
		return
	}

	if t.initCB != nil {
		t.initCB(loop)
	}

	t.mu.Lock()
	t.loop = loop
	t.cond.Signal()
	t.mu.Unlock()

	loop.Loop()
}

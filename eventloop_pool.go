package reactor

import (
	"fmt"
	"sync"
)

// EventLoopThreadPool owns the worker loops a TcpServer hands accepted
// connections to, selecting among them round-robin (spec.md §4.5).
type EventLoopThreadPool struct {
	baseLoop  *EventLoop
	threadNum int
	initCB    func(*EventLoop)
	opts      []EventLoopOption

	mu      sync.Mutex
	started bool
	threads []*EventLoopThread
	loops   *Iterator[*EventLoop]
}

// NewEventLoopThreadPool builds a pool bound to baseLoop. With
// threadNum == 0, GetNextLoop always returns baseLoop itself.
func NewEventLoopThreadPool(baseLoop *EventLoop, threadNum int, opts ...EventLoopOption) *EventLoopThreadPool {
	return &EventLoopThreadPool{
		baseLoop:  baseLoop,
		threadNum: threadNum,
		opts:      opts,
	}
}

// SetThreadInitCallback registers a hook invoked once per worker loop,
// on that worker's own goroutine, before it starts dispatching.
func (p *EventLoopThreadPool) SetThreadInitCallback(cb func(*EventLoop)) {
	p.initCB = cb
}

// Start spins up threadNum worker threads, each publishing a running
// EventLoop before Start returns. Calling Start a second time is a no-op
// returning ErrPoolAlreadyStarted.
func (p *EventLoopThreadPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrPoolAlreadyStarted
	}
	p.started = true

	loops := make([]*EventLoop, 0, p.threadNum)
	for i := 0; i < p.threadNum; i++ {
		th := NewEventLoopThread(p.initCB, p.opts...)
		p.threads = append(p.threads, th)
		loop, err := th.StartLoop()
		if err != nil {
			return fmt.Errorf("reactor: start worker loop %d: %w", i, err)
		}
		loops = append(loops, loop)
	}
	p.loops = NewIterator(rotateRight1(loops))
	return nil
}

// rotateRight1 moves the last element to the front so that Iterator's
// "increment then index" Next() yields loops[0] on its very first call
// rather than loops[1] — GetNextLoop's round-robin must start at the
// first worker, matching spec.md's distribution scenario.
func rotateRight1(loops []*EventLoop) []*EventLoop {
	n := len(loops)
	if n == 0 {
		return loops
	}
	out := make([]*EventLoop, n)
	out[0] = loops[n-1]
	copy(out[1:], loops[:n-1])
	return out
}

// GetNextLoop returns the next worker loop in round-robin order, or the
// base loop if the pool has zero worker threads.
func (p *EventLoopThreadPool) GetNextLoop() *EventLoop {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.threadNum == 0 || p.loops == nil || p.loops.Len() == 0 {
		return p.baseLoop
	}
	return p.loops.Next()
}

// GetAllLoops returns a snapshot of the current worker loops, or a
// single-element slice containing the base loop when threadNum is 0.
func (p *EventLoopThreadPool) GetAllLoops() []*EventLoop {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loops == nil || p.loops.Len() == 0 {
		return []*EventLoop{p.baseLoop}
	}
	out := make([]*EventLoop, p.loops.Len())
	copy(out, p.loops.Items)
	return out
}
